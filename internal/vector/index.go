// Package vector stores chunk embeddings and answers nearest-neighbor queries.
package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kbase/internal/models"
)

// SpaceCosine is the only supported distance space. It is recorded when a
// collection is created; reopening a collection under another space or dimension
// fails with ErrSpaceMismatch, so changing either means rebuilding the collection.
const SpaceCosine = "cosine"

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "knowledge_base"

// VectorIndex persists IndexEntries and answers similarity queries.
type VectorIndex interface {
	// Upsert inserts or overwrites entries by ID. A batch is applied atomically:
	// on failure a *WriteError is returned and none of the batch is visible.
	Upsert(ctx context.Context, entries []models.IndexEntry) error
	// Query returns up to k hits by ascending cosine distance. An empty index
	// yields an empty result.
	Query(ctx context.Context, vector []float32, k int) ([]models.QueryHit, error)
	Count(ctx context.Context) (int, error)
	Name() string
	Close() error
}

// WriteError reports a failed Upsert batch.
type WriteError struct {
	IDs []string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%v: %d entries [%s]: %v", models.ErrIndexWrite, len(e.IDs), strings.Join(e.IDs, ", "), e.Err)
}

// Unwrap exposes both ErrIndexWrite and the underlying cause.
func (e *WriteError) Unwrap() []error {
	return []error{models.ErrIndexWrite, e.Err}
}

func entryIDs(entries []models.IndexEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// validateEntries checks IDs and dimensions before anything is written.
func validateEntries(entries []models.IndexEntry, dimensions int) error {
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry has empty id")
		}
		if len(e.Vector) != dimensions {
			return fmt.Errorf("entry %s: vector dimension mismatch: got %d, expected %d", e.ID, len(e.Vector), dimensions)
		}
	}
	return nil
}

func validateQuery(vector []float32, k, dimensions int) error {
	if k <= 0 {
		return fmt.Errorf("%w: got %d", models.ErrInvalidK, k)
	}
	if len(vector) != dimensions {
		return fmt.Errorf("%w: query dimension mismatch: got %d, expected %d", models.ErrIndexQuery, len(vector), dimensions)
	}
	return nil
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
