package eventlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockTimeout is returned when a file lock cannot be obtained in time.
var ErrLockTimeout = errors.New("lock timeout")

const (
	minLockBackoff = 10 * time.Millisecond
	maxLockBackoff = 500 * time.Millisecond
)

// FileLock is an advisory lock held on a lock file.
type FileLock struct {
	file *os.File
}

// LockPath returns the lock file guarding the log at path.
func LockPath(path string) string {
	return path + ".lock"
}

// AcquireLock takes an advisory lock on lockPath, creating the file if needed.
// Readers pass exclusive=false, writers exclusive=true.
//
// The lock is first tried without blocking; on contention it is retried with
// exponential backoff until timeout elapses or ctx is cancelled.
func AcquireLock(ctx context.Context, lockPath string, exclusive bool, timeout time.Duration) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	ok, err := tryLock(file, exclusive)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}
	if ok {
		return &FileLock{file: file}, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := minLockBackoff
	for {
		select {
		case <-lockCtx.Done():
			file.Close()
			return nil, fmt.Errorf("%w after %v: %w", ErrLockTimeout, timeout, lockCtx.Err())
		case <-time.After(backoff):
			ok, err := tryLock(file, exclusive)
			if err != nil {
				file.Close()
				return nil, fmt.Errorf("flock: %w", err)
			}
			if ok {
				return &FileLock{file: file}, nil
			}
			backoff *= 2
			if backoff > maxLockBackoff {
				backoff = maxLockBackoff
			}
		}
	}
}

// Release unlocks and closes the lock file. Safe to call on nil.
func (l *FileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	unlock(l.file)
	l.file.Close()
	l.file = nil
}
