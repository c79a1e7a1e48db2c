// Package buildinfo reports what embeddb binary is running, from Go build
// metadata.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// Info describes the running build.
type Info struct {
	// Version is the module tag for go install builds, otherwise
	// "dev-<hash>[-dirty]", "dev" or "unknown".
	Version   string
	GoVersion string
	Revision  string
	Modified  bool
	Time      string
}

// Read returns the build metadata of the running binary.
func Read() Info {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{Version: "unknown"}
	}
	return fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) Info {
	out := Info{GoVersion: info.GoVersion}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.Revision = setting.Value
		case "vcs.modified":
			out.Modified = setting.Value == "true"
		case "vcs.time":
			out.Time = setting.Value
		}
	}

	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		out.Version = info.Main.Version
		return out
	}

	switch {
	case out.Revision == "":
		out.Version = "dev"
	default:
		rev := out.Revision
		// 12 characters, the usual git short hash
		if len(rev) > 12 {
			rev = rev[:12]
		}
		out.Version = "dev-" + rev
		if out.Modified {
			out.Version += "-dirty"
		}
	}
	return out
}

// Version returns Read().Version.
func Version() string {
	return Read().Version
}

// String renders the version line printed by --version.
func (i Info) String() string {
	parts := []string{i.Version}
	if i.GoVersion != "" {
		parts = append(parts, i.GoVersion)
	}
	if i.Time != "" {
		parts = append(parts, "built "+i.Time)
	}
	return strings.Join(parts, ", ")
}
