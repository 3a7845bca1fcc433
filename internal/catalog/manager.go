package catalog

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/kozaktomas/facerec/internal/embedding"
	"github.com/kozaktomas/facerec/internal/facematch"
	"github.com/kozaktomas/facerec/internal/store"
)

const (
	// lockStripes is the number of mutexes serializing mutations by id.
	lockStripes = 64

	// DefaultCandidates is the number of nearest entries Candidates returns per face.
	DefaultCandidates = 5

	defaultBootstrapConcurrency = 4
)

// ImageStore is the persistence the manager keeps in step with the catalog.
// *store.Store implements it.
type ImageStore interface {
	Save(id string, data []byte) (string, error)
	Delete(id string) error
	ListStoredIDs() ([]string, error)
	LoadBytes(id string) ([]byte, error)
}

// ManagerOptions configures a Manager. Zero values select defaults.
type ManagerOptions struct {
	BootstrapConcurrency int
	Logger               *slog.Logger
}

// Manager owns the catalog and coordinates every change to it with the
// image store, so that an id is in the catalog exactly when an image for it
// is on disk. Add and Remove on the same id never interleave; operations on
// different ids run concurrently.
type Manager struct {
	catalog     *Catalog
	store       ImageStore
	extractor   embedding.Extractor
	engine      *facematch.Engine
	logger      *slog.Logger
	concurrency int

	locks [lockStripes]sync.Mutex
}

// NewManager wires a manager around an existing catalog.
func NewManager(cat *Catalog, st ImageStore, ex embedding.Extractor, engine *facematch.Engine, opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BootstrapConcurrency <= 0 {
		opts.BootstrapConcurrency = defaultBootstrapConcurrency
	}
	return &Manager{
		catalog:     cat,
		store:       st,
		extractor:   ex,
		engine:      engine,
		logger:      opts.Logger,
		concurrency: opts.BootstrapConcurrency,
	}
}

// Catalog returns the managed catalog for read access.
func (m *Manager) Catalog() *Catalog {
	return m.catalog
}

// Tolerance returns the match threshold applied by Recognize and Identify.
func (m *Manager) Tolerance() float64 {
	return m.engine.Tolerance()
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &m.locks[h.Sum32()%lockStripes]
}

// validateID checks presence and shape of an id and returns its canonical form.
func validateID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: id", ErrMissingParameter)
	}
	return store.NormalizeID(id)
}

// List returns the sorted ids currently in the catalog.
func (m *Manager) List() []string {
	return m.catalog.List()
}

// Add enrolls or replaces the identity id with the face found in image.
//
// The embedding is extracted before anything is touched, so a picture with
// no face, several faces or undecodable bytes leaves catalog and disk as they
// were. The file is then written and finally the embedding committed.
func (m *Manager) Add(ctx context.Context, id string, image []byte) ([]string, error) {
	id, err := validateID(id)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: file", ErrMissingParameter)
	}

	x, err := embedding.ExtractSingle(ctx, m.extractor, image)
	if err != nil {
		return nil, fmt.Errorf("extracting face for %q: %w", id, err)
	}
	if err := extractionError(x); err != nil {
		return nil, err
	}
	if err := m.catalog.CheckDim(x.Embedding); err != nil {
		return nil, err
	}

	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	name, err := m.store.Save(id, image)
	switch {
	case errors.Is(err, store.ErrStaleFile):
		// The new image is on disk and wins on reload, so commit its embedding.
		m.logger.Warn("older image of the face could not be removed",
			"id", id, "file", name, "error", err)
	case err != nil:
		return nil, fmt.Errorf("saving image for %q: %w", id, err)
	}

	if err := m.catalog.Put(id, x.Embedding); err != nil {
		// Only reachable if another enrollment fixed a different dimension in
		// the meantime. Drop the identity entirely rather than leave the new
		// file next to a stale embedding.
		m.catalog.Remove(id)
		if delErr := m.store.Delete(id); delErr != nil {
			m.logger.Error("failed to remove image after rejected commit",
				"id", id, "file", name, "error", delErr)
		}
		return nil, fmt.Errorf("committing %q: %w", id, err)
	}

	m.logger.Info("face enrolled", "id", id, "file", name, "dim", len(x.Embedding))
	return m.catalog.List(), nil
}

// Remove deletes the identity id. The catalog is authoritative: once the
// entry is gone the id no longer matches, so a failure to delete the file
// is logged and not rolled back.
func (m *Manager) Remove(id string) ([]string, error) {
	id, err := validateID(id)
	if err != nil {
		return nil, err
	}

	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if !m.catalog.Remove(id) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	if err := m.store.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			m.logger.Warn("face removed but its image was already missing", "id", id)
		} else {
			m.logger.Error("face removed from catalog but image could not be deleted",
				"id", id, "error", err)
		}
	} else {
		m.logger.Info("face removed", "id", id)
	}

	return m.catalog.List(), nil
}

// Encode returns the embedding of the single face in image without touching the catalog.
func (m *Manager) Encode(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: file", ErrMissingParameter)
	}
	x, err := embedding.ExtractSingle(ctx, m.extractor, image)
	if err != nil {
		return nil, fmt.Errorf("extracting face: %w", err)
	}
	if err := extractionError(x); err != nil {
		return nil, err
	}
	return x.Embedding, nil
}

// extractAll returns every face embedding found in image.
func (m *Manager) extractAll(ctx context.Context, image []byte) ([][]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: file", ErrMissingParameter)
	}
	queries, err := m.extractor.Extract(ctx, image)
	if err != nil {
		if errors.Is(err, embedding.ErrDecode) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return nil, fmt.Errorf("extracting faces: %w", err)
	}
	return queries, nil
}

// Recognize reports which roster entries appear in image.
func (m *Manager) Recognize(ctx context.Context, image []byte, roster []facematch.Entry) (facematch.Result, error) {
	queries, err := m.extractAll(ctx, image)
	if err != nil {
		return facematch.Result{}, err
	}
	return m.engine.Match(queries, roster), nil
}

// Identify reports which catalog identities appear in image. Every detected
// face is compared with every catalog entry under the same rules as Recognize.
func (m *Manager) Identify(ctx context.Context, image []byte) (facematch.Result, error) {
	queries, err := m.extractAll(ctx, image)
	if err != nil {
		return facematch.Result{}, err
	}
	return m.engine.Match(queries, m.catalog.Roster()), nil
}

// Candidates returns, for every face in image, the k catalog entries the
// HNSW graph finds nearest, whether or not they are within tolerance. The
// search is approximate: use Identify to decide who is in the picture.
func (m *Manager) Candidates(ctx context.Context, image []byte, k int) (facematch.Result, error) {
	if k <= 0 {
		k = DefaultCandidates
	}
	queries, err := m.extractAll(ctx, image)
	if err != nil {
		return facematch.Result{}, err
	}

	result := facematch.Result{Count: len(queries), Faces: []facematch.Face{}}
	for qi, q := range queries {
		for _, n := range m.catalog.Nearest(q, k) {
			result.Faces = append(result.Faces, facematch.Face{Query: qi, ID: n.ID, Dist: n.Dist})
		}
	}
	return result, nil
}
