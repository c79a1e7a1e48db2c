package platform

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/tsukumogami/embeddb/internal/distribution"
)

// OSRelease contains parsed values from /etc/os-release.
type OSRelease struct {
	ID              string   // Canonical distro identifier (e.g., "ubuntu", "centos")
	IDLike          []string // Parent/similar distros (e.g., ["debian"] for Ubuntu)
	VersionID       string   // Version number (e.g., "20.04")
	VersionCodename string   // Codename (e.g., "focal")
}

// rhelLike are distro IDs that publish RHEL-compatible releases. Their
// major version selects the matching rhelNN server build.
var rhelLike = map[string]bool{
	"rhel": true, "centos": true, "rocky": true, "almalinux": true, "ol": true,
}

// ParseOSRelease parses the /etc/os-release file format.
// Returns an error if the file cannot be read or parsed.
func ParseOSRelease(path string) (*OSRelease, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	release := &OSRelease{}
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		// Remove quotes from value
		value = strings.Trim(value, `"'`)

		switch key {
		case "ID":
			release.ID = value
		case "ID_LIKE":
			// ID_LIKE is space-separated
			release.IDLike = strings.Fields(value)
		case "VERSION_ID":
			release.VersionID = value
		case "VERSION_CODENAME":
			release.VersionCodename = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return release, nil
}

// OSVersion maps a parsed os-release to the distribution sub-version used
// by the rule tables. Unknown distros map to the empty OSVersion, which
// selects the generic Linux packages.
func (r *OSRelease) OSVersion() distribution.OSVersion {
	major, _, _ := strings.Cut(r.VersionID, ".")

	if r.isRHELLike() {
		switch major {
		case "6":
			return distribution.CentOS6
		case "7":
			return distribution.CentOS7
		case "8", "9":
			return distribution.CentOS8
		}
		return ""
	}

	if r.ID == "ubuntu" || r.ID == "linuxmint" || r.ID == "pop" {
		switch r.ubuntuBase() {
		case "18.04":
			return distribution.Ubuntu1804
		case "20.04", "22.04", "24.04":
			return distribution.Ubuntu2004
		}
	}
	return ""
}

func (r *OSRelease) isRHELLike() bool {
	if rhelLike[r.ID] {
		return true
	}
	for _, like := range r.IDLike {
		if like == "rhel" {
			return true
		}
	}
	return false
}

// ubuntuBase returns the Ubuntu release a derivative is built on, using
// the codename for derivatives that number releases differently.
func (r *OSRelease) ubuntuBase() string {
	if r.ID == "ubuntu" || r.ID == "pop" {
		return r.VersionID
	}
	switch r.VersionCodename {
	case "tara", "tessa", "tina", "tricia":
		return "18.04"
	case "ulyana", "ulyssa", "uma", "una":
		return "20.04"
	}
	return ""
}

// DetectOSVersion returns the OS sub-version for the current Linux system.
// Returns the empty OSVersion and nil error if /etc/os-release is missing.
func DetectOSVersion() (distribution.OSVersion, error) {
	return detectOSVersion("/etc/os-release")
}

func detectOSVersion(path string) (distribution.OSVersion, error) {
	osRelease, err := ParseOSRelease(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return osRelease.OSVersion(), nil
}
