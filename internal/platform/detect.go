// Package platform detects the host platform used as the default
// resolution target.
package platform

import (
	"fmt"
	"runtime"

	"github.com/tsukumogami/embeddb/internal/distribution"
)

// Detect returns the Platform of the running host. On Linux the
// distribution release is read from /etc/os-release.
func Detect() (distribution.Platform, error) {
	return detect(runtime.GOOS, runtime.GOARCH, "/etc/os-release")
}

func detect(goos, goarch, osReleasePath string) (distribution.Platform, error) {
	osName, err := distribution.ParseOS(goos)
	if err != nil {
		return distribution.Platform{}, err
	}

	cpu, bits, err := archOf(goarch)
	if err != nil {
		return distribution.Platform{}, err
	}

	p := distribution.Platform{OS: osName, CPU: cpu, BitSize: bits}
	if osName == distribution.Linux {
		p.OSVersion, err = detectOSVersion(osReleasePath)
		if err != nil {
			return distribution.Platform{}, fmt.Errorf("failed to detect linux distribution: %w", err)
		}
	}
	return p, nil
}

func archOf(goarch string) (distribution.CPU, distribution.BitSize, error) {
	switch goarch {
	case "amd64":
		return distribution.X86, distribution.B64, nil
	case "386":
		return distribution.X86, distribution.B32, nil
	case "arm64":
		return distribution.ARM, distribution.B64, nil
	case "arm":
		return distribution.ARM, distribution.B32, nil
	default:
		return "", 0, fmt.Errorf("unsupported architecture: %s", goarch)
	}
}
