package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/embeddb/internal/config"
	"github.com/tsukumogami/embeddb/internal/distribution"
	"github.com/tsukumogami/embeddb/internal/download"
	"github.com/tsukumogami/embeddb/internal/errmsg"
	"github.com/tsukumogami/embeddb/internal/log"
	"github.com/tsukumogami/embeddb/internal/platform"
	"github.com/tsukumogami/embeddb/internal/store"
	"github.com/tsukumogami/embeddb/internal/userconfig"
)

// commandFlag is the --command value of the running subcommand, used in
// error suggestions.
var commandFlag = string(distribution.Mongod)

// printInfo prints an informational message unless quiet mode is enabled
func printInfo(a ...interface{}) {
	if !quietFlag {
		fmt.Println(a...)
	}
}

// printInfof prints a formatted informational message unless quiet mode is enabled
func printInfof(format string, a ...interface{}) {
	if !quietFlag {
		fmt.Printf(format, a...)
	}
}

// printJSON marshals the given value to JSON and prints it to stdout
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		exitWithCode(ExitGeneral)
	}
}

// printError prints an error to stderr with suggestions if available.
func printError(err error) {
	fmt.Fprintln(os.Stderr, errmsg.Format(err, &errmsg.ErrorContext{Command: commandFlag}))
}

// distFlags selects what to resolve. Unset platform fields default to the
// host.
type distFlags struct {
	command      string
	os           string
	arch         string
	osVersion    string
	toolsVersion string
	origin       string
}

func addDistFlags(cmd *cobra.Command, f *distFlags) {
	cmd.Flags().StringVarP(&f.command, "command", "c", string(distribution.Mongod), "Executable to resolve (mongod, mongos, mongo, mongodump, mongorestore, mongoimport)")
	cmd.Flags().StringVar(&f.os, "os", "", "Target operating system (default: host)")
	cmd.Flags().StringVar(&f.arch, "arch", "", "Target architecture, e.g. x86_64 or aarch64 (default: host)")
	cmd.Flags().StringVar(&f.osVersion, "os-version", "", "Target OS release, e.g. centos7 or ubuntu20.04 (default: host)")
	cmd.Flags().StringVar(&f.toolsVersion, "tools-version", "", "Database tools release for tool commands")
	cmd.Flags().StringVar(&f.origin, "origin", "", "Download origin (overrides "+config.EnvDownloadOrigin+")")
}

func (f *distFlags) parseCommand() (distribution.Command, error) {
	c, err := distribution.ParseCommand(f.command)
	if err != nil {
		return "", &usageError{err}
	}
	commandFlag = string(c)
	return c, nil
}

// platform returns the host platform with any flag overrides applied. An
// explicit --os clears the detected OS release unless --os-version is
// given too.
func (f *distFlags) platform() (distribution.Platform, error) {
	p, err := platform.Detect()
	if err != nil && (f.os == "" || f.arch == "") {
		return p, fmt.Errorf("failed to detect platform, pass --os and --arch: %w", err)
	}

	if f.os != "" {
		osName, err := distribution.ParseOS(f.os)
		if err != nil {
			return p, &usageError{err}
		}
		if osName != p.OS {
			p.OSVersion = ""
		}
		p.OS = osName
	}
	if f.arch != "" {
		cpu, bits, err := parseArch(f.arch)
		if err != nil {
			return p, &usageError{err}
		}
		p.CPU, p.BitSize = cpu, bits
	}
	if f.osVersion != "" {
		p.OSVersion = distribution.OSVersion(strings.ToLower(f.osVersion))
	}
	return p, nil
}

// distribution builds the resolution key for version.
func (f *distFlags) distribution(version string) (distribution.Distribution, error) {
	v, err := distribution.ParseVersion(version)
	if err != nil {
		return distribution.Distribution{}, &usageError{err}
	}
	p, err := f.platform()
	if err != nil {
		return distribution.Distribution{}, err
	}
	return distribution.Of(v, p), nil
}

// resolvedToolsVersion returns --tools-version, falling back to the settings file.
func (f *distFlags) resolvedToolsVersion(settings *userconfig.Config) (distribution.Version, error) {
	raw := f.toolsVersion
	if raw == "" {
		raw = settings.ToolsVersion
	}
	v, err := distribution.ParseVersion(raw)
	if err != nil {
		return distribution.Version{}, &usageError{fmt.Errorf("invalid tools version: %w", err)}
	}
	return v, nil
}

// resolvedOrigin returns --origin, falling back to the env and settings.
func (f *distFlags) resolvedOrigin(settings *userconfig.Config) string {
	if f.origin != "" {
		return strings.TrimRight(f.origin, "/")
	}
	return settings.Origin()
}

// parseArch maps an architecture name to a CPU family and word size.
func parseArch(s string) (distribution.CPU, distribution.BitSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86_64", "amd64", "x64":
		return distribution.X86, distribution.B64, nil
	case "i386", "i686", "386", "x86":
		return distribution.X86, distribution.B32, nil
	case "aarch64", "arm64":
		return distribution.ARM, distribution.B64, nil
	case "arm", "armv7":
		return distribution.ARM, distribution.B32, nil
	default:
		return "", 0, fmt.Errorf("unknown architecture: %q", s)
	}
}

// loadSettings reads config.toml of the artifacts directory.
func loadSettings() (*config.Config, *userconfig.Config, error) {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return nil, nil, err
	}
	settings, err := userconfig.LoadFrom(cfg.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, settings, nil
}

// newDownloader returns the HTTP downloader and, when signature checks are
// enabled, a verifier using the configured key file.
func newDownloader(origin string, settings *userconfig.Config) (*download.HTTPDownloader, store.Verifier, error) {
	dl := download.NewHTTPDownloader(
		download.WithAllowHTTP(strings.HasPrefix(origin, "http://")),
		download.WithProgress(os.Stderr),
		download.WithLogger(log.Default()),
	)
	if !settings.VerifySignatures {
		return dl, nil, nil
	}
	if settings.SigningKeyFile == "" {
		return nil, nil, &usageError{fmt.Errorf("verify_signatures is set but signing_key_file is empty")}
	}
	v, err := download.LoadSignatureVerifier(settings.SigningKeyFile, dl)
	if err != nil {
		return nil, nil, err
	}
	log.Default().Debug("signature verification enabled", "keys", len(v.Fingerprints()))
	return dl, v, nil
}
