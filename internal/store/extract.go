package store

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"

	"github.com/tsukumogami/embeddb/internal/distribution"
)

// Extractor copies the declared file entries out of an archive into a flat
// destination directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath string, kind distribution.ArchiveType, dest string, files []distribution.FileEntry) error
}

// ArchiveExtractor is the default Extractor. Entries are matched by base
// name anywhere in the archive; the first match of each name wins.
type ArchiveExtractor struct{}

// Extract implements Extractor.
func (ArchiveExtractor) Extract(ctx context.Context, archivePath string, kind distribution.ArchiveType, dest string, files []distribution.FileEntry) error {
	wanted := make(map[string]bool, len(files))
	for _, f := range files {
		wanted[f.Name] = true
	}

	if kind == distribution.ZIP {
		return extractZip(ctx, archivePath, dest, wanted)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	var r io.Reader
	switch kind {
	case distribution.TGZ:
		gzr, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzr.Close()
		r = gzr
	case distribution.TXZ:
		xzr, err := xz.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to create xz reader: %w", err)
		}
		r = xzr
	case distribution.TBZ2:
		r = bzip2.NewReader(file)
	case distribution.TZST:
		zr, err := zstd.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case distribution.TLZ:
		lr, err := lzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to create lzip reader: %w", err)
		}
		r = lr
	default:
		return fmt.Errorf("unsupported archive type: %q", kind)
	}

	return extractTar(ctx, tar.NewReader(r), dest, wanted)
}

func extractTar(ctx context.Context, tr *tar.Reader, dest string, wanted map[string]bool) error {
	for len(wanted) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		// Insecure names are harmless here since entries are written flat.
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Base(strings.TrimPrefix(header.Name, "./"))
		if !wanted[name] {
			continue
		}
		if err := writeEntry(dest, name, tr, os.FileMode(header.Mode).Perm()); err != nil {
			return err
		}
		delete(wanted, name)
	}
	return nil
}

func extractZip(ctx context.Context, archivePath, dest string, wanted map[string]bool) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if len(wanted) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !f.Mode().IsRegular() {
			continue
		}

		name := path.Base(strings.TrimPrefix(f.Name, "./"))
		if !wanted[name] {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open file in zip: %w", err)
		}
		err = writeEntry(dest, name, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
		delete(wanted, name)
	}
	return nil
}

// writeEntry writes one archive member to dest/name.
func writeEntry(dest, name string, r io.Reader, mode os.FileMode) error {
	target := filepath.Join(dest, name)

	// SECURITY: entry names come from the archive
	if !isPathWithinDirectory(target, dest) || target == filepath.Clean(dest) {
		return fmt.Errorf("archive entry escapes destination directory: %s", name)
	}

	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return &writeFailure{fmt.Errorf("failed to create file: %w", err)}
	}
	if err := copyEntry(out, r, name); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return &writeFailure{err}
	}
	return nil
}

// copyEntry copies one member body to out. A failure on the out side is a
// *writeFailure; a failure reading r is reported as an archive error.
func copyEntry(out io.Writer, r io.Reader, name string) error {
	ew := &errWriter{w: out}
	if _, err := io.Copy(ew, r); err != nil {
		if ew.err != nil {
			return &writeFailure{fmt.Errorf("failed to write file: %w", ew.err)}
		}
		return fmt.Errorf("failed to read %s from archive: %w", name, err)
	}
	return nil
}

// errWriter remembers the first error returned by w.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	n, err := ew.w.Write(p)
	if err != nil && ew.err == nil {
		ew.err = err
	}
	return n, err
}

// writeFailure marks an extraction error caused by the local filesystem
// rather than by the archive contents.
type writeFailure struct {
	err error
}

func (w *writeFailure) Error() string { return w.err.Error() }
func (w *writeFailure) Unwrap() error { return w.err }

// isPathWithinDirectory checks if targetPath is safely contained within basePath
func isPathWithinDirectory(targetPath, basePath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}

	// The separator keeps /tmp/foo from matching /tmp/foobar
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}
