package packageresolver

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tsukumogami/embeddb/internal/distribution"
)

//go:embed rules/*.toml
var embeddedRules embed.FS

// ruleTable is the on-disk form of one rules/<os>.toml file.
type ruleTable struct {
	Rules []ruleSpec `toml:"rule"`
}

type ruleSpec struct {
	Name       string   `toml:"name"`
	Tools      bool     `toml:"tools"` // applies to database tool commands only
	OS         string   `toml:"os"`
	CPU        string   `toml:"cpu"`
	BitSize    int      `toml:"bit_size"`
	OSVersions []string `toml:"os_versions"`
	Versions   []string `toml:"versions"`
	Archive    string   `toml:"archive"`
	URL        string   `toml:"url"`
	Fail       string   `toml:"fail"` // catch-all message; excludes archive and url
}

// ForCommand returns the built-in rules for command.
func ForCommand(command distribution.Command) (*Rules, error) {
	return Load(embeddedRules, command)
}

// Load reads every rules/*.toml file in fsys and assembles the rule list
// for command. Rule order inside a file is preserved. For tool commands the
// tool rules of all files come first, followed by the server rules.
func Load(fsys fs.FS, command distribution.Command) (*Rules, error) {
	var toolRules, serverRules []Rule

	err := fs.WalkDir(fsys, "rules", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".toml") {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read rule table %s: %w", path, err)
		}

		var table ruleTable
		md, err := toml.Decode(string(data), &table)
		if err != nil {
			return fmt.Errorf("failed to parse rule table %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("rule table %s: unknown keys %v", path, undecoded)
		}

		for i, spec := range table.Rules {
			rule, err := spec.build(command)
			if err != nil {
				return fmt.Errorf("rule table %s: rule %d (%s): %w", path, i+1, spec.Name, err)
			}
			if spec.Tools {
				toolRules = append(toolRules, rule)
			} else {
				serverRules = append(serverRules, rule)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	if !command.IsTool() {
		return NewRules(command, serverRules...), nil
	}
	return NewRules(command, append(toolRules, serverRules...)...), nil
}

func (s ruleSpec) build(command distribution.Command) (Rule, error) {
	if s.OS == "" {
		return Rule{}, fmt.Errorf("os is required")
	}
	osName, err := distribution.ParseOS(s.OS)
	if err != nil {
		return Rule{}, err
	}

	match := DistributionMatch{Platform: PlatformMatch{OS: osName}}
	if s.CPU != "" {
		if match.Platform.CPU, err = distribution.ParseCPU(s.CPU); err != nil {
			return Rule{}, err
		}
	}
	switch s.BitSize {
	case 0:
	case 32, 64:
		match.Platform.BitSize = distribution.BitSize(s.BitSize)
	default:
		return Rule{}, fmt.Errorf("invalid bit_size %d", s.BitSize)
	}
	for _, v := range s.OSVersions {
		match.Platform.OSVersions = append(match.Platform.OSVersions, distribution.OSVersion(v))
	}
	for _, v := range s.Versions {
		r, err := distribution.ParseVersionRange(v)
		if err != nil {
			return Rule{}, err
		}
		match.Ranges = append(match.Ranges, r)
	}

	if s.Fail != "" {
		if s.URL != "" || s.Archive != "" {
			return Rule{}, fmt.Errorf("fail rules cannot declare url or archive")
		}
		return Rule{Name: s.Name, Match: match, Finder: FailFinder{Message: s.Fail}}, nil
	}

	if s.URL == "" {
		return Rule{}, fmt.Errorf("url is required")
	}
	if len(s.Versions) == 0 {
		return Rule{}, fmt.Errorf("versions are required for package rules")
	}
	archive, err := distribution.ParseArchiveType(s.Archive)
	if err != nil {
		return Rule{}, err
	}

	return Rule{
		Name:  s.Name,
		Match: match,
		Finder: URLTemplateFinder{
			ArchiveType: archive,
			Template:    s.URL,
			Files: []distribution.FileEntry{
				{Type: distribution.Executable, Name: command.Executable(osName)},
			},
		},
	}, nil
}
