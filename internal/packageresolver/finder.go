package packageresolver

import (
	"strings"

	"github.com/tsukumogami/embeddb/internal/distribution"
)

// PackageFinder produces the package for a Distribution that already
// matched a rule's predicate. A nil package with a nil error means "no
// package here", and resolution moves on to the next rule.
type PackageFinder interface {
	PackageFor(d distribution.Distribution) (*distribution.Package, error)
	Describe() string
}

// URLTemplateFinder substitutes {version} and {tools.version} into a
// path template.
type URLTemplateFinder struct {
	ArchiveType distribution.ArchiveType
	Template    string
	Files       []distribution.FileEntry
}

// PackageFor implements PackageFinder.
func (f URLTemplateFinder) PackageFor(d distribution.Distribution) (*distribution.Package, error) {
	path := f.Template
	if strings.Contains(path, "{tools.version}") {
		if d.ToolsVersion.IsZero() {
			return nil, &MissingToolsVersionError{Distribution: d, Template: f.Template}
		}
		path = strings.ReplaceAll(path, "{tools.version}", d.ToolsVersion.String())
	}
	path = strings.ReplaceAll(path, "{version}", d.Version.String())

	return &distribution.Package{
		ArchiveType: f.ArchiveType,
		Path:        path,
		Files:       append([]distribution.FileEntry(nil), f.Files...),
	}, nil
}

// Describe implements PackageFinder.
func (f URLTemplateFinder) Describe() string {
	return f.Template + " (" + string(f.ArchiveType) + ")"
}

// FailFinder terminates resolution with an UnsupportedDistributionError.
// It is used by catch-all rules at the end of each OS table.
type FailFinder struct {
	Message string
}

// PackageFor implements PackageFinder.
func (f FailFinder) PackageFor(d distribution.Distribution) (*distribution.Package, error) {
	return nil, &UnsupportedDistributionError{Distribution: d, Reason: f.Message}
}

// Describe implements PackageFinder.
func (f FailFinder) Describe() string {
	return "fail: " + f.Message
}
