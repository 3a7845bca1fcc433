package store

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockFileName is skipped by ListStoredIDs like every other dot-file.
const lockFileName = ".facerec.lock"

// ErrLocked is returned when another process holds the directory lock.
var ErrLocked = errors.New("faces directory is locked by another process")

// DirLock is an exclusive advisory lock on the faces directory. The server
// holds it while it runs so offline commands cannot change the directory
// behind its catalog.
type DirLock struct {
	fl *flock.Flock
}

// Lock takes the directory lock without waiting. The directory must exist.
func (s *Store) Lock() (*DirLock, error) {
	fl := flock.New(filepath.Join(s.dir, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: locking %s: %w", ErrIO, s.dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, s.dir)
	}
	return &DirLock{fl: fl}, nil
}

// Unlock releases the lock. The lock file stays in place.
func (l *DirLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("%w: unlocking: %w", ErrIO, err)
	}
	return nil
}
