package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// lockPollInterval is how often a busy lock is retried.
const lockPollInterval = 25 * time.Millisecond

var errLockBusy = errors.New("lock is held by another process")

// fileLock is an exclusive advisory lock on a lock file. It serializes
// writers of one cache key across goroutines and processes.
type fileLock struct {
	file *os.File
}

// acquireLock blocks until the lock at path is held or ctx is done.
func acquireLock(ctx context.Context, path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		err := tryLock(f)
		if err == nil {
			return &fileLock{file: f}, nil
		}
		if !errors.Is(err, errLockBusy) {
			f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release unlocks and closes the lock file. The file itself stays in place
// so that every process keeps locking the same inode.
func (l *fileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(unlockErr, closeErr)
}
