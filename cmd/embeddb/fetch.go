package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/embeddb/internal/config"
	"github.com/tsukumogami/embeddb/internal/launch"
	"github.com/tsukumogami/embeddb/internal/log"
	"github.com/tsukumogami/embeddb/internal/userconfig"
)

var fetchFlags distFlags

var fetchCmd = &cobra.Command{
	Use:   "fetch <version>",
	Short: "Download and extract a package into the cache",
	Long: `Resolve, download and extract the package for a version without
starting it. Prints the path of the cached executable.

Running fetch again, or from several processes at once, downloads the
archive only once.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newServer(&fetchFlags, args[0])
		if err != nil {
			return err
		}

		fs, pkg, err := launch.FileSet(cmd.Context(), s)
		if err != nil {
			return err
		}
		exe, ok := fs.Path(s.Command.Executable(s.Distribution.Platform.OS))
		if !ok {
			if exe, err = fs.Executable(); err != nil {
				return err
			}
		}

		printInfof("Cached %s\n", pkg.Path)
		// The path goes to stdout even with --quiet so scripts can use it.
		fmt.Println(exe)
		return nil
	},
}

func init() {
	addDistFlags(fetchCmd, &fetchFlags)
}

// newServer builds a launch description from flags and the settings file.
func newServer(f *distFlags, version string) (launch.Server, error) {
	cfg, settings, err := loadSettings()
	if err != nil {
		return launch.Server{}, err
	}
	return serverFor(f, cfg, settings, version)
}

func serverFor(f *distFlags, cfg *config.Config, settings *userconfig.Config, version string) (launch.Server, error) {
	command, err := f.parseCommand()
	if err != nil {
		return launch.Server{}, err
	}
	d, err := f.distribution(version)
	if err != nil {
		return launch.Server{}, err
	}
	tools, err := f.resolvedToolsVersion(settings)
	if err != nil {
		return launch.Server{}, err
	}
	origin := f.resolvedOrigin(settings)
	dl, verifier, err := newDownloader(origin, settings)
	if err != nil {
		return launch.Server{}, err
	}

	return launch.Server{
		Command:      command,
		Distribution: d,
		BaseDir:      cfg.HomeDir,
		Downloader:   dl,
		Verifier:     verifier,
		Origin:       origin,
		ToolsVersion: tools,
		StartTimeout: config.GetStartTimeout(),
		StopTimeout:  config.GetStopTimeout(),
		Logger:       log.Default(),
	}, nil
}
