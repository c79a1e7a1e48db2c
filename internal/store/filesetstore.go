package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tsukumogami/embeddb/internal/distribution"
	"github.com/tsukumogami/embeddb/internal/log"
)

// ExtractedFileSet is a published directory holding the declared files of
// a package.
type ExtractedFileSet struct {
	Key   CacheKey
	Dir   string
	Files map[string]string // entry name -> absolute path
	Types map[string]distribution.FileType
}

// Path returns the absolute path of the named entry.
func (fs *ExtractedFileSet) Path(name string) (string, bool) {
	p, ok := fs.Files[name]
	return p, ok
}

// Executable returns the path of the first declared executable, in name
// order.
func (fs *ExtractedFileSet) Executable() (string, error) {
	names := make([]string, 0, len(fs.Types))
	for name, t := range fs.Types {
		if t == distribution.Executable {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("file set %s declares no executable", fs.Key.Short())
	}
	sort.Strings(names)
	return fs.Files[names[0]], nil
}

// ExtractedFileSetStore stores extracted packages under <dir>/<key>/.
type ExtractedFileSetStore struct {
	dir       string
	extractor Extractor
	logger    log.Logger
	group     flightGroup
}

// FileSetOption configures an ExtractedFileSetStore.
type FileSetOption func(*ExtractedFileSetStore)

// WithExtractor replaces the archive extractor.
func WithExtractor(e Extractor) FileSetOption {
	return func(s *ExtractedFileSetStore) {
		s.extractor = e
	}
}

// WithFileSetLogger sets the logger of the file set store.
func WithFileSetLogger(l log.Logger) FileSetOption {
	return func(s *ExtractedFileSetStore) {
		s.logger = l
	}
}

// NewExtractedFileSetStore creates a store rooted at dir, which is
// typically <base>/fileSets.
func NewExtractedFileSetStore(dir string, opts ...FileSetOption) *ExtractedFileSetStore {
	s := &ExtractedFileSetStore{dir: dir, extractor: ArchiveExtractor{}}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.For(s.logger, "filesets")
	return s
}

// Dir returns the store directory.
func (s *ExtractedFileSetStore) Dir() string {
	return s.dir
}

// Extract returns the file set of pkg, extracting archive first if no
// complete entry is published. The key comes from pkg, so a hit never
// touches the archive.
func (s *ExtractedFileSetStore) Extract(ctx context.Context, archive *CachedArchive, pkg distribution.Package) (*ExtractedFileSet, error) {
	key := KeyOf(pkg)
	logger := s.logger.With("key", key.Short())

	if fs, ok := s.lookup(key, pkg); ok {
		logger.Debug("file set cache hit", "dir", fs.Dir)
		return fs, nil
	}

	if _, err := s.group.Do(ctx, string(key), func(ctx context.Context) (any, error) {
		return s.extractLocked(ctx, key, archive, pkg, logger)
	}); err != nil {
		return nil, err
	}
	return s.fileSetOf(key, pkg), nil
}

func (s *ExtractedFileSetStore) fileSetOf(key CacheKey, pkg distribution.Package) *ExtractedFileSet {
	dir := filepath.Join(s.dir, string(key))
	fs := &ExtractedFileSet{
		Key:   key,
		Dir:   dir,
		Files: make(map[string]string, len(pkg.Files)),
		Types: make(map[string]distribution.FileType, len(pkg.Files)),
	}
	for _, f := range pkg.Files {
		fs.Files[f.Name] = filepath.Join(dir, f.Name)
		fs.Types[f.Name] = f.Type
	}
	return fs
}

// lookup returns the published entry for key if every declared file is
// present.
func (s *ExtractedFileSetStore) lookup(key CacheKey, pkg distribution.Package) (*ExtractedFileSet, bool) {
	fs := s.fileSetOf(key, pkg)
	info, err := os.Stat(fs.Dir)
	if err != nil || !info.IsDir() {
		return nil, false
	}
	if missing := missingEntries(fs); len(missing) > 0 {
		return nil, false
	}
	return fs, true
}

func missingEntries(fs *ExtractedFileSet) []string {
	var missing []string
	for name, p := range fs.Files {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func (s *ExtractedFileSetStore) extractLocked(ctx context.Context, key CacheKey, archive *CachedArchive, pkg distribution.Package, logger log.Logger) (any, error) {
	writeErr := func(msg string, err error) error {
		return &Error{Type: ErrTypeCacheWrite, Key: key, Message: msg, Err: err}
	}

	if archive == nil {
		return nil, fmt.Errorf("no archive to extract for %s", key.Short())
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, writeErr("failed to create file set directory", err)
	}

	logger.Debug("waiting for file set lock")
	lock, err := acquireLock(ctx, filepath.Join(s.dir, string(key)+".lock"))
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, writeErr("failed to lock file set", err)
	}
	defer lock.Release()

	if _, ok := s.lookup(key, pkg); ok {
		logger.Debug("file set published by another process")
		return nil, nil
	}

	removeStale(s.dir, string(key)+".*.tmp", logger)

	tmpDir, err := os.MkdirTemp(s.dir, string(key)+".*.tmp")
	if err != nil {
		return nil, writeErr("failed to create temp directory", err)
	}
	published := false
	defer func() {
		if !published {
			os.RemoveAll(tmpDir)
		}
	}()

	logger.Info("extracting archive", "archive", archive.Path)
	if err := s.extractor.Extract(ctx, archive.Path, pkg.ArchiveType, tmpDir, pkg.Files); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var wf *writeFailure
		if errors.As(err, &wf) {
			return nil, writeErr("failed to write extracted file", err)
		}
		return nil, &Error{Type: ErrTypeMalformedArchive, Key: key, Err: err}
	}

	staged := &ExtractedFileSet{Key: key, Files: map[string]string{}}
	for _, f := range pkg.Files {
		staged.Files[f.Name] = filepath.Join(tmpDir, f.Name)
	}
	if missing := missingEntries(staged); len(missing) > 0 {
		return nil, &Error{
			Type:    ErrTypeMalformedArchive,
			Key:     key,
			Message: fmt.Sprintf("archive %s is missing declared entries %v", filepath.Base(archive.Path), missing),
		}
	}

	for _, f := range pkg.Files {
		if f.Type != distribution.Executable {
			continue
		}
		if err := os.Chmod(filepath.Join(tmpDir, f.Name), 0755); err != nil {
			return nil, writeErr("failed to mark executable", err)
		}
	}

	final := filepath.Join(s.dir, string(key))
	// An incomplete directory under the final name can only come from
	// outside interference; the lock guarantees nobody else is publishing.
	if err := os.RemoveAll(final); err != nil {
		return nil, writeErr("failed to remove incomplete file set", err)
	}
	if err := os.Rename(tmpDir, final); err != nil {
		return nil, writeErr("failed to publish file set", err)
	}
	published = true

	logger.Info("file set extracted", "dir", final)
	return nil, nil
}

// Info counts published file sets and their total size.
func (s *ExtractedFileSetStore) Info() (*CacheInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &CacheInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read file set directory: %w", err)
	}

	info := &CacheInfo{}
	for _, entry := range entries {
		if !entry.IsDir() || !isEntryName(entry.Name()) {
			continue
		}
		info.EntryCount++
		_ = filepath.WalkDir(filepath.Join(s.dir, entry.Name()), func(_ string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if fi, err := d.Info(); err == nil {
				info.TotalSize += fi.Size()
			}
			return nil
		})
	}
	return info, nil
}

// Clear removes all extracted file sets and temp directories.
func (s *ExtractedFileSetStore) Clear() error {
	return clearDir(s.dir)
}
