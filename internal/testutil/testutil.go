// Package testutil holds fixtures shared by package and functional tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"sort"
	"testing"

	"github.com/tsukumogami/embeddb/internal/config"
	"github.com/tsukumogami/embeddb/internal/distribution"
)

// Entry is one regular file of a test archive.
type Entry struct {
	Body string
	Mode int64 // 0644 if zero
}

// TGZ builds a gzipped tarball. Entries are written in name order so
// "first match wins" tests are deterministic.
func TGZ(entries map[string]Entry) ([]byte, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		e := entries[name]
		mode := e.Mode
		if mode == 0 {
			mode = 0644
		}
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: mode, Size: int64(len(e.Body)), Typeflag: tar.TypeReg}); err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(e.Body)); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MongodArchive is a tgz laid out like a Linux server release, with script
// as bin/mongod.
func MongodArchive(version, script string) ([]byte, error) {
	root := "mongodb-linux-x86_64-rhel70-" + version
	return TGZ(map[string]Entry{
		root + "/README":     {Body: "readme"},
		root + "/bin/mongod": {Body: script, Mode: 0755},
	})
}

// CentOS7 returns a 64-bit x86 CentOS 7 distribution of version.
func CentOS7(version string) distribution.Distribution {
	return distribution.Of(distribution.MustParseVersion(version), distribution.Platform{
		OS:        distribution.Linux,
		CPU:       distribution.X86,
		BitSize:   distribution.B64,
		OSVersion: distribution.CentOS7,
	})
}

// NewTestLayout returns an artifacts layout rooted in a test temp dir, with
// its directories created.
func NewTestLayout(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.ForHome(t.TempDir())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("failed to create layout: %v", err)
	}
	return cfg
}
