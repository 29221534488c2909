package runlock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Compile-time interface satisfaction check.
var _ Locker = (*FileLock)(nil)

// FileLock is the local provider's run lock, an advisory flock on a file
// next to the landing directory. The kernel releases it if the process
// dies, so no lease expiry is needed.
type FileLock struct {
	fl *flock.Flock
}

// NewFileLock creates a lock on the given file, creating parent directories
// as needed.
func NewFileLock(path string) (*FileLock, error) {
	if path == "" {
		return nil, fmt.Errorf("lock file path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	return &FileLock{fl: flock.New(path)}, nil
}

// Acquire attempts to take the lock without blocking.
func (l *FileLock) Acquire(_ context.Context) (bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", l.fl.Path(), err)
	}
	return ok, nil
}

// Release unlocks the file.
func (l *FileLock) Release(_ context.Context) error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.fl.Path(), err)
	}
	return nil
}
