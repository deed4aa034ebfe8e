package vector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperjump/kbase/internal/storage"
)

// IndexType selects a VectorIndex backend.
type IndexType string

const (
	// IndexTypeSQLite stores vectors in a SQLite database. Durable; the default.
	IndexTypeSQLite IndexType = "sqlite"
	// IndexTypeBolt stores vectors in a bbolt file.
	IndexTypeBolt IndexType = "bolt"
	// IndexTypeMemory keeps vectors in process memory. Good for tests.
	IndexTypeMemory IndexType = "memory"
)

// Options configures NewVectorIndex.
type Options struct {
	Type       string
	Path       string
	Collection string
	Dimensions int
	// DB, when set, is used by the sqlite backend instead of opening Path.
	DB *sql.DB
}

// NewVectorIndex creates a vector index of the requested type.
// Supported types: "sqlite" (default), "bolt", "memory".
func NewVectorIndex(ctx context.Context, opts Options) (VectorIndex, error) {
	switch IndexType(opts.Type) {
	case IndexTypeSQLite, "":
		db := opts.DB
		owns := false
		if db == nil {
			if opts.Path == "" {
				return nil, fmt.Errorf("sqlite index requires a path")
			}
			var err error
			if db, err = storage.OpenDB(opts.Path); err != nil {
				return nil, err
			}
			owns = true
		}
		idx, err := NewSQLiteIndex(ctx, db, opts.Collection, opts.Dimensions)
		if err != nil {
			if owns {
				_ = db.Close()
			}
			return nil, err
		}
		idx.ownsDB = owns
		return idx, nil
	case IndexTypeBolt:
		if opts.Path == "" {
			return nil, fmt.Errorf("bolt index requires a path")
		}
		return NewBoltIndex(opts.Path, opts.Collection, opts.Dimensions)
	case IndexTypeMemory:
		return NewMemoryIndex(opts.Collection, opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: sqlite, bolt, memory)", opts.Type)
	}
}
