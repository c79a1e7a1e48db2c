package packageresolver

import (
	"fmt"

	"github.com/tsukumogami/embeddb/internal/distribution"
)

// UnsupportedDistributionError is returned when no rule yields a package.
type UnsupportedDistributionError struct {
	Command      distribution.Command
	Distribution distribution.Distribution
	Reason       string // set by catch-all rules
}

// Error implements the error interface
func (e *UnsupportedDistributionError) Error() string {
	p := e.Distribution.Platform
	msg := fmt.Sprintf("unsupported distribution: version %s, os %s, arch %s",
		e.Distribution.Version, p.OS, p.Architecture())
	if p.OSVersion != "" {
		msg += ", os version " + string(p.OSVersion)
	}
	if e.Command != "" {
		msg = string(e.Command) + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Suggestion returns an actionable hint for the user.
func (e *UnsupportedDistributionError) Suggestion() string {
	return "Run 'embeddb explain' to list the versions available for each platform"
}

// MissingToolsVersionError is returned when a tools package is selected
// but the Distribution carries no tools version.
type MissingToolsVersionError struct {
	Distribution distribution.Distribution
	Template     string
}

func (e *MissingToolsVersionError) Error() string {
	return fmt.Sprintf("tools version required to resolve %s for %s", e.Template, e.Distribution)
}
