package distribution

import "fmt"

// ArchiveType identifies the container format of a downloaded package.
type ArchiveType string

const (
	ZIP  ArchiveType = "zip"
	TGZ  ArchiveType = "tgz"
	TBZ2 ArchiveType = "tbz2"
	TXZ  ArchiveType = "txz"
	TZST ArchiveType = "tzst"
	TLZ  ArchiveType = "tlz"
)

// ParseArchiveType accepts the short names above and the usual file
// suffixes ("tar.gz", "tar.xz", ...).
func ParseArchiveType(s string) (ArchiveType, error) {
	switch s {
	case "zip":
		return ZIP, nil
	case "tgz", "tar.gz":
		return TGZ, nil
	case "tbz2", "tar.bz2":
		return TBZ2, nil
	case "txz", "tar.xz":
		return TXZ, nil
	case "tzst", "tar.zst":
		return TZST, nil
	case "tlz", "tar.lz":
		return TLZ, nil
	default:
		return "", fmt.Errorf("unsupported archive type: %q", s)
	}
}

// FileType is the role a file plays once extracted.
type FileType string

const (
	Executable FileType = "executable"
	Library    FileType = "library"
)

// FileEntry declares a file that must be present in an archive. Files are
// located by base name anywhere inside the archive.
type FileEntry struct {
	Type FileType
	Name string
}

// Package describes one downloadable archive and the files it must
// contain.
type Package struct {
	ArchiveType ArchiveType

	// Path is the archive location relative to the download origin, with
	// placeholders already substituted.
	Path string

	// URL is Path resolved against the download origin. Empty until a
	// resolver with an origin fills it in.
	URL string

	Files []FileEntry
}

// WithOrigin returns a copy of p with URL set to origin + Path.
func (p Package) WithOrigin(origin string) Package {
	p.URL = origin + p.Path
	p.Files = append([]FileEntry(nil), p.Files...)
	return p
}

func (p Package) String() string {
	loc := p.URL
	if loc == "" {
		loc = p.Path
	}
	return fmt.Sprintf("%s (%s)", loc, p.ArchiveType)
}
