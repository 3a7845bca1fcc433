// Package catalog holds the in-memory catalog of known face embeddings and
// the manager that keeps it coherent with the image files on disk.
package catalog

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/facerec/internal/facematch"
)

// HNSW graph parameters for Nearest.
const (
	hnswMaxNeighbors = 16
	hnswEfSearch     = 64
)

// Neighbor is a catalog entry returned by a nearest-neighbour search.
type Neighbor struct {
	ID   string
	Dist float64
}

// Catalog maps identity ids to embeddings. Reads share a lock, writes are
// exclusive. Embeddings are copied on the way in and out.
//
// Alongside the map the catalog keeps an HNSW graph over the same vectors for
// Nearest, an approximate search that may miss the true nearest entry. New
// ids are inserted incrementally; overwrites and removals rebuild the graph.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string][]float32
	dim     int
	graph   *hnsw.Graph[string]
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		entries: make(map[string][]float32),
		graph:   newGraph(),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.EfSearch = hnswEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Get returns a copy of the embedding stored for id.
func (c *Catalog) Get(id string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	emb, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(emb), true
}

// List returns a sorted snapshot of the known ids. Never nil.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Dim returns the embedding dimensionality, 0 while the catalog has never held an entry.
func (c *Catalog) Dim() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dim
}

// CheckDim reports whether emb could be stored without a dimension mismatch.
func (c *Catalog) CheckDim(emb []float32) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checkDimLocked(emb)
}

func (c *Catalog) checkDimLocked(emb []float32) error {
	if len(emb) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}
	if c.dim != 0 && len(emb) != c.dim {
		return fmt.Errorf("%w: got %d, catalog holds %d", ErrDimensionMismatch, len(emb), c.dim)
	}
	return nil
}

// Put inserts or overwrites the embedding for id. The first stored embedding
// fixes the catalog dimensionality.
func (c *Catalog) Put(id string, emb []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkDimLocked(emb); err != nil {
		return err
	}
	c.dim = len(emb)

	_, existed := c.entries[id]
	c.entries[id] = slices.Clone(emb)
	if existed {
		c.rebuildGraphLocked()
	} else {
		c.graph.Add(hnsw.MakeNode(id, c.entries[id]))
	}
	return nil
}

// Remove deletes id and reports whether it was present.
func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; !ok {
		return false
	}
	delete(c.entries, id)
	c.rebuildGraphLocked()
	return true
}

func (c *Catalog) rebuildGraphLocked() {
	g := newGraph()
	for id, emb := range c.entries {
		g.Add(hnsw.MakeNode(id, emb))
	}
	c.graph = g
}

// Roster returns the whole catalog as match candidates, sorted by id.
func (c *Catalog) Roster() []facematch.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	roster := make([]facematch.Entry, 0, len(c.entries))
	for id, emb := range c.entries {
		roster = append(roster, facematch.Entry{ID: id, Encoding: slices.Clone(emb)})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })
	return roster
}

// Nearest returns up to k entries the graph finds closest to query, nearest
// first. Distances are exact euclidean distances, but the graph only selects
// candidates and may skip closer entries.
func (c *Catalog) Nearest(query []float32, k int) []Neighbor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if k <= 0 || len(c.entries) == 0 || len(query) != c.dim {
		return nil
	}

	nodes := c.graph.Search(query, k)
	neighbors := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		emb, ok := c.entries[n.Key]
		if !ok {
			continue
		}
		neighbors = append(neighbors, Neighbor{ID: n.Key, Dist: facematch.EuclideanDistance(query, emb)})
	}
	sort.SliceStable(neighbors, func(i, j int) bool { return neighbors[i].Dist < neighbors[j].Dist })
	return neighbors
}
