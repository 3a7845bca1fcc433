package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/facerec/internal/embedding"
	"golang.org/x/sync/errgroup"
)

// SkippedFile is a stored image that could not be loaded into the catalog.
type SkippedFile struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BootstrapReport summarizes a bootstrap run.
type BootstrapReport struct {
	Loaded   []string      `json:"loaded"`
	Skipped  []SkippedFile `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// ProgressFunc is called once per processed file. It may be called from
// several goroutines, but never concurrently.
type ProgressFunc func(id string, err error)

// Bootstrap rebuilds the catalog from the images on disk. A file that cannot
// be turned into exactly one embedding is logged and skipped so one bad
// picture does not keep the rest of the catalog offline. An unreadable
// directory, an unreachable embedding server or a cancelled context fail the
// whole run instead: those say nothing about the pictures, and skipping
// every file would silently start the service with an empty catalog.
//
// Bootstrap must finish before the manager accepts Add or Remove calls.
func (m *Manager) Bootstrap(ctx context.Context, progress ProgressFunc) (*BootstrapReport, error) {
	start := time.Now()

	ids, err := m.store.ListStoredIDs()
	if err != nil {
		return nil, fmt.Errorf("listing stored faces: %w", err)
	}
	m.logger.Info("generating encodings for stored faces", "files", len(ids))

	report := &BootstrapReport{Loaded: []string{}, Skipped: []SkippedFile{}}
	var mu sync.Mutex

	record := func(id string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedFile{ID: id, Reason: err.Error()})
			m.logger.Warn("skipping stored face", "id", id, "error", err)
		} else {
			report.Loaded = append(report.Loaded, id)
		}
		if progress != nil {
			progress(id, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := m.loadOne(gctx, id)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			if errors.Is(err, embedding.ErrUnavailable) {
				return fmt.Errorf("loading %q: %w", id, err)
			}
			record(id, err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("bootstrap interrupted: %w", err)
	}

	slices.Sort(report.Loaded)
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].ID < report.Skipped[j].ID })
	report.Duration = time.Since(start)

	m.logger.Info("catalog ready",
		"loaded", len(report.Loaded), "skipped", len(report.Skipped), "duration", report.Duration)
	return report, nil
}

// loadOne extracts and commits the stored image of a single id.
func (m *Manager) loadOne(ctx context.Context, id string) error {
	data, err := m.store.LoadBytes(id)
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}
	x, err := embedding.ExtractSingle(ctx, m.extractor, data)
	if err != nil {
		return fmt.Errorf("extracting face: %w", err)
	}
	if err := extractionError(x); err != nil {
		return err
	}
	return m.catalog.Put(id, x.Embedding)
}
