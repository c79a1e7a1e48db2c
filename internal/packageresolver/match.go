// Package packageresolver maps a Distribution to the package that has to
// be downloaded for it. Rules are evaluated in authored order and the first
// rule whose predicate matches and whose finder yields a package wins.
package packageresolver

import (
	"fmt"
	"strings"

	"github.com/tsukumogami/embeddb/internal/distribution"
)

// PlatformMatch is a predicate over a Platform. Zero-valued fields match
// anything.
type PlatformMatch struct {
	OS         distribution.OS
	CPU        distribution.CPU
	BitSize    distribution.BitSize
	OSVersions []distribution.OSVersion
}

// Matches reports whether p satisfies every constrained field.
func (m PlatformMatch) Matches(p distribution.Platform) bool {
	if m.OS != "" && m.OS != p.OS {
		return false
	}
	if m.CPU != "" && m.CPU != p.CPU {
		return false
	}
	if m.BitSize != 0 && m.BitSize != p.BitSize {
		return false
	}
	if len(m.OSVersions) > 0 {
		for _, v := range m.OSVersions {
			if v == p.OSVersion {
				return true
			}
		}
		return false
	}
	return true
}

func (m PlatformMatch) String() string {
	var parts []string
	if m.OS != "" {
		parts = append(parts, "os="+string(m.OS))
	}
	if m.CPU != "" {
		parts = append(parts, "cpu="+string(m.CPU))
	}
	if m.BitSize != 0 {
		parts = append(parts, fmt.Sprintf("bits=%d", m.BitSize))
	}
	if len(m.OSVersions) > 0 {
		vs := make([]string, len(m.OSVersions))
		for i, v := range m.OSVersions {
			vs[i] = string(v)
		}
		parts = append(parts, "version="+strings.Join(vs, "|"))
	}
	if len(parts) == 0 {
		return "any platform"
	}
	return strings.Join(parts, " ")
}

// DistributionMatch matches when the version falls in any of Ranges and
// the platform predicate holds. An empty Ranges list matches every
// version.
type DistributionMatch struct {
	Ranges   []distribution.VersionRange
	Platform PlatformMatch
}

// Matches reports whether d satisfies the predicate.
func (m DistributionMatch) Matches(d distribution.Distribution) bool {
	if !m.Platform.Matches(d.Platform) {
		return false
	}
	if len(m.Ranges) == 0 {
		return true
	}
	for _, r := range m.Ranges {
		if r.Contains(d.Version) {
			return true
		}
	}
	return false
}

func (m DistributionMatch) String() string {
	if len(m.Ranges) == 0 {
		return "any version, " + m.Platform.String()
	}
	rs := make([]string, len(m.Ranges))
	for i, r := range m.Ranges {
		rs[i] = r.String()
	}
	return strings.Join(rs, ", ") + "; " + m.Platform.String()
}
