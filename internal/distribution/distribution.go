// Package distribution defines the query key used to pick a downloadable
// package: a version plus the platform it has to run on.
package distribution

import (
	"fmt"
	"strings"
)

// OS identifies an operating system family.
type OS string

const (
	Windows OS = "windows"
	Linux   OS = "linux"
	OSX     OS = "osx"
	Solaris OS = "solaris"
	FreeBSD OS = "freebsd"
)

// ParseOS accepts the names used in rule tables and on the command line,
// plus the GOOS spellings.
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win":
		return Windows, nil
	case "linux":
		return Linux, nil
	case "osx", "darwin", "macos":
		return OSX, nil
	case "solaris", "sunos", "illumos":
		return Solaris, nil
	case "freebsd":
		return FreeBSD, nil
	default:
		return "", fmt.Errorf("unknown operating system: %q", s)
	}
}

// CPU identifies a processor family. Word size is carried separately.
type CPU string

const (
	X86 CPU = "x86"
	ARM CPU = "arm"
)

// ParseCPU accepts CPU family names and GOARCH spellings.
func ParseCPU(s string) (CPU, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86", "amd64", "386", "i386", "x86_64":
		return X86, nil
	case "arm", "arm64", "aarch64":
		return ARM, nil
	default:
		return "", fmt.Errorf("unknown cpu type: %q", s)
	}
}

// BitSize is the word size of the target platform.
type BitSize int

const (
	B32 BitSize = 32
	B64 BitSize = 64
)

// OSVersion narrows an OS to a specific release, such as a Linux
// distribution. The empty value means "unknown or irrelevant".
type OSVersion string

const (
	CentOS6    OSVersion = "centos6"
	CentOS7    OSVersion = "centos7"
	CentOS8    OSVersion = "centos8"
	Ubuntu1804 OSVersion = "ubuntu18.04"
	Ubuntu2004 OSVersion = "ubuntu20.04"
)

// Platform describes the machine an artifact must run on.
type Platform struct {
	OS        OS
	CPU       CPU
	BitSize   BitSize
	OSVersion OSVersion
}

// Architecture renders the CPU and word size the way download paths do.
func (p Platform) Architecture() string {
	switch {
	case p.CPU == X86 && p.BitSize == B64:
		return "x86_64"
	case p.CPU == X86:
		return "i386"
	case p.CPU == ARM && p.BitSize == B64:
		return "aarch64"
	default:
		return string(p.CPU) + fmt.Sprint(int(p.BitSize))
	}
}

func (p Platform) String() string {
	s := string(p.OS) + "/" + p.Architecture()
	if p.OSVersion != "" {
		s += " (" + string(p.OSVersion) + ")"
	}
	return s
}

// Distribution is the full resolution key: what to download, for where.
type Distribution struct {
	Version Version

	// ToolsVersion is the database tools release. Only tool commands use it.
	ToolsVersion Version

	Platform Platform
}

// Of returns a Distribution with no tools version.
func Of(v Version, p Platform) Distribution {
	return Distribution{Version: v, Platform: p}
}

func (d Distribution) String() string {
	s := d.Version.String() + " on " + d.Platform.String()
	if !d.ToolsVersion.IsZero() {
		s += " [tools " + d.ToolsVersion.String() + "]"
	}
	return s
}

// Command names an executable shipped in a distribution.
type Command string

const (
	Mongod       Command = "mongod"
	Mongos       Command = "mongos"
	Mongo        Command = "mongo"
	MongoDump    Command = "mongodump"
	MongoRestore Command = "mongorestore"
	MongoImport  Command = "mongoimport"
)

// Commands lists every known command.
var Commands = []Command{Mongod, Mongos, Mongo, MongoDump, MongoRestore, MongoImport}

// ParseCommand returns the Command named s.
func ParseCommand(s string) (Command, error) {
	for _, c := range Commands {
		if string(c) == strings.ToLower(strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown command: %q", s)
}

// IsTool reports whether the command ships in the database tools package
// rather than the server package.
func (c Command) IsTool() bool {
	switch c {
	case MongoDump, MongoRestore, MongoImport:
		return true
	}
	return false
}

// Executable returns the file name of the command's binary on os.
func (c Command) Executable(os OS) string {
	if os == Windows {
		return string(c) + ".exe"
	}
	return string(c)
}
