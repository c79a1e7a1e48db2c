package store

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/tsukumogami/embeddb/internal/distribution"
)

type archiveFile struct {
	name    string
	content string
	mode    int64
}

func buildTar(t *testing.T, w io.Writer, files []archiveFile) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, f := range files {
		mode := f.mode
		if mode == 0 {
			mode = 0644
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     f.name,
			Mode:     mode,
			Size:     int64(len(f.content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}

func tgzBytes(t *testing.T, files ...archiveFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	buildTar(t, gz, files)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func txzBytes(t *testing.T, files ...archiveFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	buildTar(t, xw, files)
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

func tzstBytes(t *testing.T, files ...archiveFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	buildTar(t, zw, files)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, files ...archiveFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func mongodPackage(url string, kind distribution.ArchiveType) distribution.Package {
	return distribution.Package{
		ArchiveType: kind,
		Path:        "/linux/mongodb-linux-x86_64-4.0.12.tgz",
		URL:         url,
		Files:       []distribution.FileEntry{{Type: distribution.Executable, Name: "mongod"}},
	}
}

// fakeDownloader serves fixed bodies and counts calls.
type fakeDownloader struct {
	mu     sync.Mutex
	bodies map[string][]byte
	delay  time.Duration
	err    error
	calls  atomic.Int32
}

func newFakeDownloader(bodies map[string][]byte) *fakeDownloader {
	return &fakeDownloader{bodies: bodies}
}

func (d *fakeDownloader) Download(ctx context.Context, url string, w io.Writer) error {
	d.calls.Add(1)
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	body, ok := d.bodies[url]
	d.mu.Unlock()
	if !ok {
		return errors.New("404 not found")
	}
	_, err := w.Write(body)
	return err
}

// countingExtractor wraps an Extractor and counts calls.
type countingExtractor struct {
	inner Extractor
	calls atomic.Int32
}

func (e *countingExtractor) Extract(ctx context.Context, archivePath string, kind distribution.ArchiveType, dest string, files []distribution.FileEntry) error {
	e.calls.Add(1)
	return e.inner.Extract(ctx, archivePath, kind, dest, files)
}

// gatedExtractor blocks each extraction until gate is closed or ctx ends.
type gatedExtractor struct {
	inner Extractor
	gate  <-chan struct{}
	calls atomic.Int32
}

func (e *gatedExtractor) Extract(ctx context.Context, archivePath string, kind distribution.ArchiveType, dest string, files []distribution.FileEntry) error {
	e.calls.Add(1)
	select {
	case <-e.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.inner.Extract(ctx, archivePath, kind, dest, files)
}

// waiting reports how many callers are waiting on key.
func (g *flightGroup) waiting(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if call, ok := g.calls[key]; ok {
		return call.waiters
	}
	return 0
}
