package distribution

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a release version of a server or tools distribution.
// Ordering uses the numeric triple only; the qualifier is kept for
// display and download paths but never affects comparisons.
type Version struct {
	Major     uint64
	Minor     uint64
	Patch     uint64
	Qualifier string
}

// ParseVersion parses strings such as "4.2.13", "v5.0" or "4.4.0-rc7".
// Missing minor or patch components default to zero.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version string")
	}

	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}

	qualifier := sv.Prerelease()
	if meta := sv.Metadata(); meta != "" {
		if qualifier != "" {
			qualifier += "+" + meta
		} else {
			qualifier = "+" + meta
		}
	}

	return Version{
		Major:     sv.Major(),
		Minor:     sv.Minor(),
		Patch:     sv.Patch(),
		Qualifier: qualifier,
	}, nil
}

// MustParseVersion is like ParseVersion but panics on error. Intended for
// literals in tests and static tables.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 comparing the numeric triples of v and o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpUint(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint(v.Minor, o.Minor)
	default:
		return cmpUint(v.Patch, o.Patch)
	}
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return v == Version{}
}

// String returns the version as it appears in download paths.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	switch {
	case v.Qualifier == "":
		return s
	case strings.HasPrefix(v.Qualifier, "+"):
		return s + v.Qualifier
	default:
		return s + "-" + v.Qualifier
	}
}

// VersionRange is an inclusive [Min, Max] interval.
type VersionRange struct {
	Min Version
	Max Version
}

// NewVersionRange returns the range [min, max]. It fails when min sorts
// after max.
func NewVersionRange(min, max Version) (VersionRange, error) {
	if min.Compare(max) > 0 {
		return VersionRange{}, fmt.Errorf("invalid version range: %s is greater than %s", min, max)
	}
	return VersionRange{Min: min, Max: max}, nil
}

// ParseVersionRange parses "4.2.5-4.2.16" or a single version "3.3.1",
// which denotes a range containing exactly that version. Range bounds
// cannot carry qualifiers.
func ParseVersionRange(s string) (VersionRange, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	if !found {
		hi = lo
	}

	min, err := ParseVersion(lo)
	if err != nil {
		return VersionRange{}, fmt.Errorf("invalid version range %q: %w", s, err)
	}
	max, err := ParseVersion(hi)
	if err != nil {
		return VersionRange{}, fmt.Errorf("invalid version range %q: %w", s, err)
	}
	if min.Qualifier != "" || max.Qualifier != "" {
		return VersionRange{}, fmt.Errorf("invalid version range %q: bounds must be plain versions", s)
	}

	return NewVersionRange(min, max)
}

// Contains reports whether min <= v <= max by numeric triple.
func (r VersionRange) Contains(v Version) bool {
	return r.Min.Compare(v) <= 0 && v.Compare(r.Max) <= 0
}

func (r VersionRange) String() string {
	if r.Min.Compare(r.Max) == 0 {
		return r.Min.String()
	}
	return r.Min.String() + "-" + r.Max.String()
}
