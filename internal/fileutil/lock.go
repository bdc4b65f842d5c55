package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DirLock is an exclusive advisory lock on a lock file. It serializes the
// mutating registry operations of every process sharing a storage root.
// flock locks belong to the open file description, so two DirLocks on the
// same path exclude each other inside one process as well.
type DirLock struct {
	path string
	file *os.File
}

func NewDirLock(path string) *DirLock {
	return &DirLock{path: path}
}

// Lock blocks until the lock is held.
func (l *DirLock) Lock() error {
	if l.file != nil {
		return fmt.Errorf("[DirLock.Lock] lock %s already held", l.path)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("[DirLock.Lock] failed to create directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("[DirLock.Lock] failed to open %s: %w", l.path, err)
	}
	for {
		err = unix.Flock(int(file.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		file.Close()
		return fmt.Errorf("[DirLock.Lock] flock %s: %w", l.path, err)
	}

	l.file = file
	return nil
}

// Unlock releases the lock. The lock file is left in place.
func (l *DirLock) Unlock() error {
	if l.file == nil {
		return fmt.Errorf("[DirLock.Unlock] lock %s not held", l.path)
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("[DirLock.Unlock] flock %s: %w", l.path, err)
	}
	return closeErr
}

// WithLock runs fn while holding an exclusive lock on path.
func WithLock(path string, fn func() error) (err error) {
	l := NewDirLock(path)
	if err := l.Lock(); err != nil {
		return err
	}
	defer func() {
		if unlockErr := l.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}()
	return fn()
}
