// Package store keeps one image file per known identity inside a single
// directory. The directory is the only persistent record of identities.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/facerec/internal/imageutil"
)

var (
	// ErrNotFound is returned when no image is stored for an id.
	ErrNotFound = errors.New("not found")
	// ErrIO wraps filesystem failures (disk full, permission denied, ...).
	ErrIO = errors.New("i/o error")
	// ErrInvalidIdentifier is returned for ids that cannot be used as file names.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrStaleFile is returned by Save when the new image is in place but an
	// older image of the same id under another extension could not be removed.
	ErrStaleFile = errors.New("stale image left behind")
)

// Store manages the on-disk image files. It does no locking of its own;
// callers serialize operations on the same id.
type Store struct {
	dir string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the store directory if it does not exist yet.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrIO, s.dir, err)
	}
	return nil
}

// Save writes data as the image for id, replacing any previous image.
// The file extension is derived from the image format, not from the upload name.
// The write goes through a temporary file and a rename so a concurrent reader
// never sees a half-written image.
func (s *Store) Save(id string, data []byte) (string, error) {
	id, err := NormalizeID(id)
	if err != nil {
		return "", err
	}
	ext, err := imageutil.Format(data)
	if err != nil {
		return "", err
	}

	name := id + "." + ext
	target := filepath.Join(s.dir, name)
	tmp := filepath.Join(s.dir, "."+uuid.NewString()+".tmp")

	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: writing %s: %w", ErrIO, name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: renaming to %s: %w", ErrIO, name, err)
	}

	// Drop images of the same id stored under another extension. The new
	// image is already in place, so failures here do not undo the save and
	// LoadBytes keeps preferring the newest file.
	others, err := s.files(id)
	if err != nil {
		return name, fmt.Errorf("%w: %w", ErrStaleFile, err)
	}
	var staleErr error
	for _, other := range others {
		if other == name {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, other)); err != nil && !os.IsNotExist(err) {
			staleErr = errors.Join(staleErr, fmt.Errorf("removing %s: %w", other, err))
		}
	}
	if staleErr != nil {
		return name, fmt.Errorf("%w: %w", ErrStaleFile, staleErr)
	}

	return name, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Delete removes every image stored for id.
func (s *Store) Delete(id string) error {
	id, err := NormalizeID(id)
	if err != nil {
		return err
	}
	names, err := s.files(id)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: no image for %q", ErrNotFound, id)
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("%w: deleting %s: %w", ErrIO, name, err)
		}
	}
	return nil
}

// ListStoredIDs returns the sorted ids derived from picture files on disk.
func (s *Store) ListStoredIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, s.dir, err)
	}

	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !isImageEntry(e) {
			continue
		}
		id := idFromFilename(e.Name())
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// LoadBytes reads the stored image for id. When several images exist for
// the same id the most recently modified wins, ties broken by file name.
func (s *Store) LoadBytes(id string) ([]byte, error) {
	id, err := NormalizeID(id)
	if err != nil {
		return nil, err
	}
	names, err := s.files(id)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no image for %q", ErrNotFound, id)
	}
	name := s.newest(names)
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, name, err)
		}
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, name, err)
	}
	return data, nil
}

// newest returns the most recently modified of the sorted names.
func (s *Store) newest(names []string) string {
	best := names[0]
	var bestTime time.Time
	for _, name := range names {
		info, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		if info.ModTime().After(bestTime) {
			best, bestTime = name, info.ModTime()
		}
	}
	return best
}

// Exists reports whether at least one image is stored for id.
func (s *Store) Exists(id string) (bool, error) {
	id, err := NormalizeID(id)
	if err != nil {
		return false, err
	}
	names, err := s.files(id)
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// files returns the sorted names of picture files belonging to id.
func (s *Store) files(id string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if isImageEntry(e) && idFromFilename(e.Name()) == id {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func isImageEntry(e os.DirEntry) bool {
	return !e.IsDir() && !strings.HasPrefix(e.Name(), ".") && imageutil.IsPicture(e.Name())
}
