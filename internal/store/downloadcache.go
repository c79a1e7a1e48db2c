package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsukumogami/embeddb/internal/distribution"
	"github.com/tsukumogami/embeddb/internal/log"
)

// Downloader performs the network GET for an archive, streaming the body
// into w.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) error
}

// Verifier checks a fully downloaded archive before it is published.
type Verifier interface {
	Verify(ctx context.Context, pkg distribution.Package, archivePath string) error
}

// CachedArchive is a published, immutable archive in the download cache.
type CachedArchive struct {
	Key    CacheKey
	Path   string
	Size   int64
	SHA256 string // empty if the metadata sidecar is missing
}

// archiveMeta is stored next to each archive as <key>.json.
type archiveMeta struct {
	URL      string    `json:"url"`
	Archive  string    `json:"archive"`
	SHA256   string    `json:"sha256"`
	Size     int64     `json:"size"`
	CachedAt time.Time `json:"cached_at"`
}

// DownloadCache stores downloaded archives under <dir>/<key>.
type DownloadCache struct {
	dir        string
	downloader Downloader
	verifier   Verifier
	logger     log.Logger
	group      flightGroup
}

// DownloadCacheOption configures a DownloadCache.
type DownloadCacheOption func(*DownloadCache)

// WithVerifier sets a Verifier that runs before an archive is published.
func WithVerifier(v Verifier) DownloadCacheOption {
	return func(c *DownloadCache) {
		c.verifier = v
	}
}

// WithDownloadLogger sets the logger of the download cache.
func WithDownloadLogger(l log.Logger) DownloadCacheOption {
	return func(c *DownloadCache) {
		c.logger = l
	}
}

// NewDownloadCache creates a download cache rooted at dir, which is
// typically <base>/archives.
func NewDownloadCache(dir string, downloader Downloader, opts ...DownloadCacheOption) *DownloadCache {
	c := &DownloadCache{dir: dir, downloader: downloader}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.For(c.logger, "archives")
	return c
}

// Dir returns the cache directory.
func (c *DownloadCache) Dir() string {
	return c.dir
}

// Fetch returns the cached archive for pkg, downloading it first if no
// entry is published yet. A hit performs no network access.
func (c *DownloadCache) Fetch(ctx context.Context, pkg distribution.Package) (*CachedArchive, error) {
	key := KeyOf(pkg)
	logger := c.logger.With("key", key.Short())

	if archive, ok := c.lookup(key); ok {
		logger.Debug("archive cache hit", "path", archive.Path)
		return archive, nil
	}

	v, err := c.group.Do(ctx, string(key), func(ctx context.Context) (any, error) {
		return c.fetchLocked(ctx, key, pkg, logger)
	})
	if err != nil {
		return nil, err
	}
	archive := *v.(*CachedArchive)
	return &archive, nil
}

func (c *DownloadCache) archivePath(key CacheKey) string {
	return filepath.Join(c.dir, string(key))
}

func (c *DownloadCache) metaPath(key CacheKey) string {
	return filepath.Join(c.dir, string(key)+".json")
}

// lookup returns the published entry for key, if any.
func (c *DownloadCache) lookup(key CacheKey) (*CachedArchive, bool) {
	path := c.archivePath(key)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}

	archive := &CachedArchive{Key: key, Path: path, Size: info.Size()}
	if meta, err := readArchiveMeta(c.metaPath(key)); err == nil && meta.Size == info.Size() {
		archive.SHA256 = meta.SHA256
	}
	return archive, true
}

func (c *DownloadCache) fetchLocked(ctx context.Context, key CacheKey, pkg distribution.Package, logger log.Logger) (*CachedArchive, error) {
	url := pkg.URL
	if url == "" {
		url = pkg.Path
	}
	safeURL := log.SanitizeURL(url)

	writeErr := func(msg string, err error) error {
		return &Error{Type: ErrTypeCacheWrite, Key: key, URL: safeURL, Message: msg, Err: err}
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, writeErr("failed to create cache directory", err)
	}

	logger.Debug("waiting for archive lock")
	lock, err := acquireLock(ctx, filepath.Join(c.dir, string(key)+".lock"))
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, writeErr("failed to lock cache entry", err)
	}
	defer lock.Release()

	// Another process may have published while we waited.
	if archive, ok := c.lookup(key); ok {
		logger.Debug("archive published by another process", "path", archive.Path)
		return archive, nil
	}

	removeStale(c.dir, string(key)+".*.tmp", logger)

	tmp, err := os.CreateTemp(c.dir, string(key)+".*.tmp")
	if err != nil {
		return nil, writeErr("failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	published := false
	defer func() {
		if !published {
			os.Remove(tmpPath)
		}
	}()

	logger.Info("downloading archive", "url", safeURL)
	hw := newHashingWriter(tmp)
	if err := c.downloader.Download(ctx, url, hw); err != nil {
		tmp.Close()
		if hw.writeErr != nil {
			return nil, writeErr("failed to write archive", hw.writeErr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Error{Type: ErrTypeDownloadFailed, Key: key, URL: safeURL, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, writeErr("failed to flush archive", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, writeErr("failed to close archive", err)
	}
	if hw.n == 0 {
		return nil, &Error{Type: ErrTypeDownloadFailed, Key: key, URL: safeURL, Message: "empty response body"}
	}

	if c.verifier != nil {
		if err := c.verifier.Verify(ctx, pkg, tmpPath); err != nil {
			return nil, &Error{Type: ErrTypeVerification, Key: key, URL: safeURL, Err: err}
		}
	}

	meta := archiveMeta{
		URL:      safeURL,
		Archive:  string(pkg.ArchiveType),
		SHA256:   hw.SHA256(),
		Size:     hw.n,
		CachedAt: time.Now(),
	}
	if err := writeArchiveMeta(c.metaPath(key), &meta); err != nil {
		return nil, writeErr("failed to write metadata", err)
	}

	path := c.archivePath(key)
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, writeErr("failed to publish archive", err)
	}
	published = true

	logger.Info("archive cached", "path", path, "size", hw.n)
	return &CachedArchive{Key: key, Path: path, Size: hw.n, SHA256: meta.SHA256}, nil
}

// CacheInfo returns information about the cache contents
type CacheInfo struct {
	EntryCount int
	TotalSize  int64
}

// Info counts published archives and their total size.
func (c *DownloadCache) Info() (*CacheInfo, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &CacheInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	info := &CacheInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !isEntryName(entry.Name()) {
			continue
		}
		info.EntryCount++
		if fi, err := entry.Info(); err == nil {
			info.TotalSize += fi.Size()
		}
	}
	return info, nil
}

// Clear removes all cached archives with their metadata and temp files.
// Lock files are left in place since other processes may hold them.
func (c *DownloadCache) Clear() error {
	return clearDir(c.dir)
}

// isEntryName reports whether name is a published entry rather than a
// sidecar, lock or temp file.
func isEntryName(name string) bool {
	return !strings.Contains(name, ".")
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".lock") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// removeStale deletes temp entries left behind by crashed writers. It is
// only called while holding the key lock.
func removeStale(dir, pattern string, logger log.Logger) {
	matches, _ := filepath.Glob(filepath.Join(dir, pattern))
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			logger.Warn("failed to remove stale temp entry", "path", m, "error", err)
			continue
		}
		logger.Debug("removed stale temp entry", "path", m)
	}
}

func readArchiveMeta(path string) (*archiveMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta archiveMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// writeArchiveMeta writes metadata atomically
func writeArchiveMeta(path string, meta *archiveMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
