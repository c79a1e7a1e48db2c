// Package launch wires the resolver, the artifact stores and the process
// supervisor into one transition graph that goes from a distribution to a
// running server.
package launch

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/tsukumogami/embeddb/internal/config"
	"github.com/tsukumogami/embeddb/internal/distribution"
	"github.com/tsukumogami/embeddb/internal/log"
	"github.com/tsukumogami/embeddb/internal/packageresolver"
	"github.com/tsukumogami/embeddb/internal/process"
	"github.com/tsukumogami/embeddb/internal/store"
	"github.com/tsukumogami/embeddb/internal/transition"
)

// Net is where a server listens.
type Net struct {
	Host string
	Port int
}

// Addr returns host:port.
func (n Net) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// WorkDir is the scratch directory a process runs in, such as a database
// path. It is removed on teardown.
type WorkDir string

// Invocation is what an ArgsFunc builds a command line from.
type Invocation struct {
	Command distribution.Command
	FileSet *store.ExtractedFileSet
	WorkDir WorkDir
	Net     Net
}

// ArgsFunc builds the argument list for the launched executable.
type ArgsFunc func(inv Invocation) []string

// DefaultArgs is the minimal command line for the built-in commands.
func DefaultArgs(inv Invocation) []string {
	switch inv.Command {
	case distribution.Mongod:
		return []string{
			"--dbpath", string(inv.WorkDir),
			"--bind_ip", inv.Net.Host,
			"--port", strconv.Itoa(inv.Net.Port),
		}
	case distribution.Mongos:
		return []string{"--bind_ip", inv.Net.Host, "--port", strconv.Itoa(inv.Net.Port)}
	default:
		return nil
	}
}

// Slot keys of the launch graph.
var (
	LayoutKey       = transition.Of[*config.Config]()
	ArchivesKey     = transition.Of[*store.DownloadCache]()
	FileSetsKey     = transition.Of[*store.ExtractedFileSetStore]()
	DistributionKey = transition.Of[distribution.Distribution]()
	PackageKey      = transition.Of[distribution.Package]()
	ArchiveKey      = transition.Of[*store.CachedArchive]()
	FileSetKey      = transition.Of[*store.ExtractedFileSet]()
	WorkDirKey      = transition.Of[WorkDir]()
	NetKey          = transition.Of[Net]()
	ProcessKey      = transition.Of[*process.Running]()
)

// Server describes one server to launch. The zero values of optional fields
// fall back to the environment configuration.
type Server struct {
	Command      distribution.Command
	Distribution distribution.Distribution

	// BaseDir overrides EMBEDDED_MONGO_ARTIFACTS.
	BaseDir    string
	Downloader store.Downloader
	// Verifier, if set, checks archives before they enter the cache.
	Verifier store.Verifier
	// Origin overrides the download origin.
	Origin       string
	ToolsVersion distribution.Version

	Host string
	// Port 0 allocates a free port.
	Port int

	Args  ArgsFunc
	Env   map[string]string
	Ready process.ReadyFunc

	Stdout, Stderr io.Writer

	StartTimeout time.Duration
	StopTimeout  time.Duration

	Logger log.Logger
}

func (s Server) logger() log.Logger {
	return log.For(s.Logger, "launch")
}

func (s Server) command() distribution.Command {
	if s.Command == "" {
		return distribution.Mongod
	}
	return s.Command
}

// Transitions returns the launch graph, leaves first.
func (s Server) Transitions() []transition.Transition {
	logger := s.logger()
	cmd := s.command()

	return []transition.Transition{
		transition.Start(LayoutKey, func(context.Context) (transition.State[*config.Config], error) {
			layout, err := s.layout()
			if err != nil {
				return transition.State[*config.Config]{}, err
			}
			return transition.StateOf(layout), layout.EnsureDirectories()
		}),

		transition.Derive(ArchivesKey, LayoutKey, func(_ context.Context, layout *config.Config) (transition.State[*store.DownloadCache], error) {
			if s.Downloader == nil {
				return transition.State[*store.DownloadCache]{}, fmt.Errorf("no downloader configured")
			}
			opts := []store.DownloadCacheOption{store.WithDownloadLogger(logger)}
			if s.Verifier != nil {
				opts = append(opts, store.WithVerifier(s.Verifier))
			}
			return transition.StateOf(store.NewDownloadCache(layout.ArchivesDir, s.Downloader, opts...)), nil
		}),

		transition.Derive(FileSetsKey, LayoutKey, func(_ context.Context, layout *config.Config) (transition.State[*store.ExtractedFileSetStore], error) {
			return transition.StateOf(store.NewExtractedFileSetStore(layout.FileSetsDir, store.WithFileSetLogger(logger))), nil
		}),

		transition.Provide(DistributionKey, s.Distribution),

		transition.Derive(PackageKey, DistributionKey, func(_ context.Context, d distribution.Distribution) (transition.State[distribution.Package], error) {
			var opts []packageresolver.Option
			if s.Origin != "" {
				opts = append(opts, packageresolver.WithOrigin(s.Origin))
			}
			if !s.ToolsVersion.IsZero() {
				opts = append(opts, packageresolver.WithToolsVersion(s.ToolsVersion))
			}
			r, err := packageresolver.New(cmd, opts...)
			if err != nil {
				return transition.State[distribution.Package]{}, err
			}
			pkg, err := r.Resolve(d)
			if err != nil {
				return transition.State[distribution.Package]{}, err
			}
			logger.Info("resolved package", "distribution", d.String(), "url", log.SanitizeURL(pkg.URL))
			return transition.StateOf(pkg), nil
		}),

		transition.Derive2(ArchiveKey, ArchivesKey, PackageKey, func(ctx context.Context, c *store.DownloadCache, pkg distribution.Package) (transition.State[*store.CachedArchive], error) {
			a, err := c.Fetch(ctx, pkg)
			return transition.StateOf(a), err
		}),

		transition.Derive3(FileSetKey, FileSetsKey, ArchiveKey, PackageKey, func(ctx context.Context, fs *store.ExtractedFileSetStore, a *store.CachedArchive, pkg distribution.Package) (transition.State[*store.ExtractedFileSet], error) {
			set, err := fs.Extract(ctx, a, pkg)
			return transition.StateOf(set), err
		}),

		transition.Start(WorkDirKey, func(context.Context) (transition.State[WorkDir], error) {
			dir, err := os.MkdirTemp("", "embeddb-"+string(cmd)+"-")
			if err != nil {
				return transition.State[WorkDir]{}, fmt.Errorf("failed to create working directory: %w", err)
			}
			return transition.State[WorkDir]{
				Value: WorkDir(dir),
				Teardown: func(context.Context) error {
					return os.RemoveAll(dir)
				},
			}, nil
		}),

		transition.Start(NetKey, func(context.Context) (transition.State[Net], error) {
			n := Net{Host: s.Host, Port: s.Port}
			if n.Host == "" {
				n.Host = "127.0.0.1"
			}
			if n.Port == 0 {
				port, err := process.FreePort(n.Host)
				if err != nil {
					return transition.State[Net]{}, err
				}
				n.Port = port
			}
			return transition.StateOf(n), nil
		}),

		transition.Derive3(ProcessKey, FileSetKey, WorkDirKey, NetKey, func(ctx context.Context, fs *store.ExtractedFileSet, dir WorkDir, n Net) (transition.State[*process.Running], error) {
			return s.startProcess(ctx, cmd, fs, dir, n)
		}),
	}
}

func (s Server) layout() (*config.Config, error) {
	if s.BaseDir != "" {
		return config.ForHome(s.BaseDir), nil
	}
	return config.DefaultConfig()
}

func (s Server) startProcess(ctx context.Context, cmd distribution.Command, fs *store.ExtractedFileSet, dir WorkDir, n Net) (transition.State[*process.Running], error) {
	exe, ok := fs.Path(cmd.Executable(s.Distribution.Platform.OS))
	if !ok {
		var err error
		if exe, err = fs.Executable(); err != nil {
			return transition.State[*process.Running]{}, err
		}
	}

	args := s.Args
	if args == nil {
		args = DefaultArgs
	}
	ready := s.Ready
	if ready == nil && (cmd == distribution.Mongod || cmd == distribution.Mongos) {
		ready = process.WaitForPort(n.Host, n.Port, 0)
	}

	r, err := process.Start(ctx, process.Config{
		Executable:   exe,
		Args:         args(Invocation{Command: cmd, FileSet: fs, WorkDir: dir, Net: n}),
		Env:          s.Env,
		WorkDir:      string(dir),
		Stdout:       s.Stdout,
		Stderr:       s.Stderr,
		StartTimeout: s.StartTimeout,
		StopTimeout:  s.StopTimeout,
		Ready:        ready,
		Logger:       s.logger(),
	})
	if err != nil {
		return transition.State[*process.Running]{}, err
	}
	return transition.State[*process.Running]{Value: r, Teardown: r.Stop}, nil
}

// Graph validates the launch graph.
func (s Server) Graph() (*transition.Graph, error) {
	return transition.NewGraph(s.Transitions(), transition.WithLogger(s.logger()))
}

// Explain renders the construction plan of a running server.
func (s Server) Explain() (string, error) {
	g, err := s.Graph()
	if err != nil {
		return "", err
	}
	return g.Explain(ProcessKey.ID())
}
