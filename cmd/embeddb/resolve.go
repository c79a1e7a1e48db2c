package main

import (
	"github.com/spf13/cobra"

	"github.com/tsukumogami/embeddb/internal/distribution"
	"github.com/tsukumogami/embeddb/internal/packageresolver"
	"github.com/tsukumogami/embeddb/internal/userconfig"
)

var resolveFlags distFlags

var resolveCmd = &cobra.Command{
	Use:   "resolve <version>",
	Short: "Print the package a version resolves to",
	Long: `Resolve a version and platform to a downloadable package without
downloading anything.

Examples:
  embeddb resolve 4.0.12 --os linux --arch x86_64 --os-version centos7
  embeddb resolve 4.4.0 --command mongodump --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		_, settings, err := loadSettings()
		if err != nil {
			return err
		}
		r, d, err := newResolver(&resolveFlags, settings, args[0])
		if err != nil {
			return err
		}
		pkg, err := r.Resolve(d)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(packageJSON(d, pkg))
			return nil
		}
		printInfof("Distribution: %s\n", d)
		printInfof("Archive:      %s (%s)\n", pkg.Path, pkg.ArchiveType)
		printInfof("URL:          %s\n", pkg.URL)
		for _, f := range pkg.Files {
			printInfof("  %-10s %s\n", f.Type, f.Name)
		}
		return nil
	},
}

func init() {
	addDistFlags(resolveCmd, &resolveFlags)
	resolveCmd.Flags().Bool("json", false, "Output in JSON format")
}

// newResolver builds the resolver and the resolution key from flags.
func newResolver(f *distFlags, settings *userconfig.Config, version string) (*packageresolver.Resolver, distribution.Distribution, error) {
	command, err := f.parseCommand()
	if err != nil {
		return nil, distribution.Distribution{}, err
	}
	d, err := f.distribution(version)
	if err != nil {
		return nil, distribution.Distribution{}, err
	}
	tools, err := f.resolvedToolsVersion(settings)
	if err != nil {
		return nil, distribution.Distribution{}, err
	}
	r, err := packageresolver.New(command,
		packageresolver.WithOrigin(f.resolvedOrigin(settings)),
		packageresolver.WithToolsVersion(tools),
	)
	if err != nil {
		return nil, distribution.Distribution{}, err
	}
	return r, d, nil
}

type fileJSON struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type resolvedJSON struct {
	Distribution string     `json:"distribution"`
	ArchiveType  string     `json:"archive_type"`
	Path         string     `json:"path"`
	URL          string     `json:"url"`
	Files        []fileJSON `json:"files"`
}

func packageJSON(d distribution.Distribution, pkg distribution.Package) resolvedJSON {
	out := resolvedJSON{
		Distribution: d.String(),
		ArchiveType:  string(pkg.ArchiveType),
		Path:         pkg.Path,
		URL:          pkg.URL,
		Files:        make([]fileJSON, 0, len(pkg.Files)),
	}
	for _, f := range pkg.Files {
		out.Files = append(out.Files, fileJSON{Type: string(f.Type), Name: f.Name})
	}
	return out
}
