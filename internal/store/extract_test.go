package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsukumogami/embeddb/internal/distribution"
)

func writeArchive(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "archive")
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func TestArchiveExtractorFormats(t *testing.T) {
	files := []archiveFile{
		{name: "pkg/README", content: "readme"},
		{name: "pkg/bin/mongod", content: "server", mode: 0755},
		{name: "pkg/lib/libssl.so", content: "lib"},
	}
	entries := []distribution.FileEntry{
		{Type: distribution.Executable, Name: "mongod"},
		{Type: distribution.Library, Name: "libssl.so"},
	}

	tests := []struct {
		kind distribution.ArchiveType
		data []byte
	}{
		{distribution.TGZ, tgzBytes(t, files...)},
		{distribution.TXZ, txzBytes(t, files...)},
		{distribution.TZST, tzstBytes(t, files...)},
		{distribution.ZIP, zipBytes(t, files...)},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			dest := t.TempDir()
			err := ArchiveExtractor{}.Extract(context.Background(), writeArchive(t, tt.data), tt.kind, dest, entries)
			require.NoError(t, err)

			got, err := os.ReadFile(filepath.Join(dest, "mongod"))
			require.NoError(t, err)
			require.Equal(t, "server", string(got))

			got, err = os.ReadFile(filepath.Join(dest, "libssl.so"))
			require.NoError(t, err)
			require.Equal(t, "lib", string(got))

			_, err = os.Stat(filepath.Join(dest, "README"))
			require.True(t, os.IsNotExist(err), "undeclared entries must not be extracted")
		})
	}
}

func TestArchiveExtractorFlattensTraversal(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "dest")
	require.NoError(t, os.MkdirAll(dest, 0755))

	data := tgzBytes(t, archiveFile{name: "../../evil/mongod", content: "payload"})
	err := ArchiveExtractor{}.Extract(context.Background(), writeArchive(t, data), distribution.TGZ, dest,
		[]distribution.FileEntry{{Type: distribution.Executable, Name: "mongod"}})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dest, "mongod"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(dest), "evil"))
	require.True(t, os.IsNotExist(err), "entries must never be written outside dest")
}

func TestArchiveExtractorFirstMatchWins(t *testing.T) {
	dest := t.TempDir()
	data := tgzBytes(t,
		archiveFile{name: "a/bin/mongod", content: "first"},
		archiveFile{name: "b/bin/mongod", content: "second"},
	)
	err := ArchiveExtractor{}.Extract(context.Background(), writeArchive(t, data), distribution.TGZ, dest,
		[]distribution.FileEntry{{Type: distribution.Executable, Name: "mongod"}})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dest, "mongod"))
	require.NoError(t, err)
	require.Equal(t, "first", string(got))
}

func TestArchiveExtractorUnsupportedType(t *testing.T) {
	err := ArchiveExtractor{}.Extract(context.Background(), writeArchive(t, []byte("x")), "rar", t.TempDir(), nil)
	require.Error(t, err)
}

func TestIsPathWithinDirectory(t *testing.T) {
	base := t.TempDir()
	require.True(t, isPathWithinDirectory(filepath.Join(base, "mongod"), base))
	require.False(t, isPathWithinDirectory(filepath.Join(base, "..", "x"), base))
	require.False(t, isPathWithinDirectory(base+"bar", base))
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestCopyEntryClassifiesFailures(t *testing.T) {
	diskFull := errors.New("no space left on device")
	err := copyEntry(failingWriter{diskFull}, strings.NewReader("binary"), "mongod")
	var wf *writeFailure
	require.ErrorAs(t, err, &wf)
	require.ErrorIs(t, err, diskFull)

	truncated := errors.New("unexpected EOF")
	err = copyEntry(&bytes.Buffer{}, failingReader{truncated}, "mongod")
	require.ErrorIs(t, err, truncated)
	require.False(t, errors.As(err, &wf), "read errors are archive errors")
	require.Contains(t, err.Error(), "mongod")

	var buf bytes.Buffer
	require.NoError(t, copyEntry(&buf, strings.NewReader("binary"), "mongod"))
	require.Equal(t, "binary", buf.String())
}
