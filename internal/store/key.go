// Package store implements the two content-addressed artifact stores: the
// download cache for archives and the extracted file set store. Both are
// addressed by a CacheKey derived from the package, guarded by key-scoped
// file locks, and publish entries by atomic rename so that no reader ever
// observes a partially written entry.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/tsukumogami/embeddb/internal/distribution"
)

// CacheKey is the stable identity of a package. It names the archive in
// <base>/archives and the directory in <base>/fileSets.
type CacheKey string

// KeyOf hashes the archive type, the resolved URL and the declared file
// entries of pkg. The path is used when no URL has been resolved.
func KeyOf(pkg distribution.Package) CacheKey {
	loc := pkg.URL
	if loc == "" {
		loc = pkg.Path
	}

	h := sha256.New()
	fmt.Fprintf(h, "archive=%s\n", pkg.ArchiveType)
	fmt.Fprintf(h, "url=%s\n", loc)
	for _, f := range pkg.Files {
		fmt.Fprintf(h, "file=%s:%s\n", f.Type, f.Name)
	}
	return CacheKey(hex.EncodeToString(h.Sum(nil)))
}

// Short returns an abbreviated key for log output.
func (k CacheKey) Short() string {
	if len(k) > 12 {
		return string(k[:12])
	}
	return string(k)
}

// hashingWriter computes a sha256 over everything written through it and
// records whether the underlying writer failed, which separates local
// write errors from network errors.
type hashingWriter struct {
	w        io.Writer
	h        hash.Hash
	n        int64
	writeErr error
}

func newHashingWriter(w io.Writer) *hashingWriter {
	return &hashingWriter{w: w, h: sha256.New()}
}

func (hw *hashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	hw.n += int64(n)
	if err != nil {
		hw.writeErr = err
	}
	return n, err
}

func (hw *hashingWriter) SHA256() string {
	return hex.EncodeToString(hw.h.Sum(nil))
}
