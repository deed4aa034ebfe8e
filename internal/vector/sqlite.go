package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperjump/kbase/internal/models"
)

// SQLiteIndex stores a collection in SQLite and searches it by brute force.
// The database may be shared with other stores.
type SQLiteIndex struct {
	db         *sql.DB
	name       string
	dimensions int
	ownsDB     bool
}

// NewSQLiteIndex opens (or creates) collection name in db. An existing collection
// must have been created with the cosine space and the same dimensions.
func NewSQLiteIndex(ctx context.Context, db *sql.DB, name string, dimensions int) (*SQLiteIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if name == "" {
		name = DefaultCollection
	}
	if err := initVectorSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to initialize vector schema: %w", err)
	}
	idx := &SQLiteIndex{db: db, name: name, dimensions: dimensions}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func initVectorSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS vector_collections (
		name TEXT PRIMARY KEY,
		space TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS vector_entries (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		vector BLOB NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES vector_collections(name)
	);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteIndex) ensureCollection(ctx context.Context) error {
	var space string
	var dims int
	err := s.db.QueryRowContext(ctx,
		`SELECT space, dimensions FROM vector_collections WHERE name = ?`, s.name,
	).Scan(&space, &dims)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO vector_collections (name, space, dimensions) VALUES (?, ?, ?)`,
			s.name, SpaceCosine, s.dimensions)
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", s.name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read collection %s: %w", s.name, err)
	}
	if space != SpaceCosine || dims != s.dimensions {
		return fmt.Errorf("%w: collection %s has space=%s dimensions=%d, requested space=%s dimensions=%d",
			models.ErrSpaceMismatch, s.name, space, dims, SpaceCosine, s.dimensions)
	}
	return nil
}

// Upsert writes the batch in a single transaction.
func (s *SQLiteIndex) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := entryIDs(entries)
	if err := validateEntries(entries, s.dimensions); err != nil {
		return &WriteError{IDs: ids, Err: err}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &WriteError{IDs: ids, Err: err}
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_entries (collection, id, vector, content, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, id) DO UPDATE SET
			vector = excluded.vector,
			content = excluded.content,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return &WriteError{IDs: ids, Err: err}
	}
	defer stmt.Close()
	for _, e := range entries {
		meta, err := encodeMetadata(e.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return &WriteError{IDs: ids, Err: fmt.Errorf("entry %s: %w", e.ID, err)}
		}
		if _, err := stmt.ExecContext(ctx, s.name, e.ID, float32SliceToBytes(e.Vector), e.Text, string(meta)); err != nil {
			_ = tx.Rollback()
			return &WriteError{IDs: ids, Err: fmt.Errorf("entry %s: %w", e.ID, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &WriteError{IDs: ids, Err: err}
	}
	return nil
}

// Query scans the collection and returns the k closest entries.
func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, k int) ([]models.QueryHit, error) {
	if err := validateQuery(vector, k, s.dimensions); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vector, content, metadata FROM vector_entries WHERE collection = ?`, s.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIndexQuery, err)
	}
	defer rows.Close()

	var hits []models.QueryHit
	for rows.Next() {
		var id, content string
		var blob []byte
		var meta sql.NullString
		if err := rows.Scan(&id, &blob, &content, &meta); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrIndexQuery, err)
		}
		metadata, err := decodeMetadata([]byte(meta.String))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s: %v", models.ErrIndexQuery, id, err)
		}
		hits = append(hits, models.QueryHit{
			ID:       id,
			Text:     content,
			Metadata: metadata,
			Distance: CosineDistance(vector, bytesToFloat32Slice(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIndexQuery, err)
	}
	return topK(hits, k), nil
}

// Count returns the number of entries in the collection.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vector_entries WHERE collection = ?`, s.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrIndexQuery, err)
	}
	return n, nil
}

// Name returns the collection name.
func (s *SQLiteIndex) Name() string { return s.name }

// Close closes the database only when the index opened it.
func (s *SQLiteIndex) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
