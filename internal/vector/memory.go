package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/kbase/internal/models"
)

// MemoryIndex is an in-memory vector index using brute-force cosine search.
// Contents are lost on Close.
type MemoryIndex struct {
	name       string
	dimensions int
	entries    map[string]models.IndexEntry
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory collection with the given dimension.
func NewMemoryIndex(name string, dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if name == "" {
		name = DefaultCollection
	}
	return &MemoryIndex{
		name:       name,
		dimensions: dimensions,
		entries:    make(map[string]models.IndexEntry),
	}, nil
}

// Upsert validates the whole batch, then stores copies of every entry.
func (m *MemoryIndex) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{IDs: entryIDs(entries), Err: err}
	}
	if err := validateEntries(entries, m.dimensions); err != nil {
		return &WriteError{IDs: entryIDs(entries), Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		vec := make([]float32, m.dimensions)
		copy(vec, e.Vector)
		m.entries[e.ID] = models.IndexEntry{
			ID:       e.ID,
			Vector:   vec,
			Text:     e.Text,
			Metadata: copyMetadata(e.Metadata),
		}
	}
	return nil
}

// Query scores every entry and returns the k closest.
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, k int) ([]models.QueryHit, error) {
	if err := validateQuery(vector, k, m.dimensions); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := make([]models.QueryHit, 0, len(m.entries))
	for _, e := range m.entries {
		hits = append(hits, models.QueryHit{
			ID:       e.ID,
			Text:     e.Text,
			Metadata: copyMetadata(e.Metadata),
			Distance: CosineDistance(vector, e.Vector),
		})
	}
	return topK(hits, k), nil
}

// Count returns the number of entries.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Name returns the collection name.
func (m *MemoryIndex) Name() string { return m.name }

// Close drops all entries.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]models.IndexEntry)
	return nil
}
