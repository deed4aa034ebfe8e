package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/kbase/internal/models"
	"go.etcd.io/bbolt"
)

var bucketCollections = []byte("collections")

type boltCollection struct {
	Space      string `json:"space"`
	Dimensions int    `json:"dimensions"`
}

type boltEntry struct {
	Vector   []byte         `json:"vector"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BoltIndex stores a collection in a bbolt file, one bucket per collection.
type BoltIndex struct {
	db         *bbolt.DB
	name       string
	bucket     []byte
	dimensions int
}

// NewBoltIndex opens (or creates) the bolt file at path and the named collection in it.
func NewBoltIndex(path, name string, dimensions int) (*BoltIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if name == "" {
		name = DefaultCollection
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt index: %w", err)
	}
	idx := &BoltIndex{db: db, name: name, bucket: []byte("entries:" + name), dimensions: dimensions}

	err = db.Update(func(tx *bbolt.Tx) error {
		cols, err := tx.CreateBucketIfNotExists(bucketCollections)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(idx.bucket); err != nil {
			return err
		}
		if data := cols.Get([]byte(name)); data != nil {
			var col boltCollection
			if err := json.Unmarshal(data, &col); err != nil {
				return fmt.Errorf("read collection %s: %w", name, err)
			}
			if col.Space != SpaceCosine || col.Dimensions != dimensions {
				return fmt.Errorf("%w: collection %s has space=%s dimensions=%d, requested space=%s dimensions=%d",
					models.ErrSpaceMismatch, name, col.Space, col.Dimensions, SpaceCosine, dimensions)
			}
			return nil
		}
		data, err := json.Marshal(boltCollection{Space: SpaceCosine, Dimensions: dimensions})
		if err != nil {
			return err
		}
		return cols.Put([]byte(name), data)
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// Upsert writes the batch in one bolt transaction.
func (b *BoltIndex) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := entryIDs(entries)
	if err := ctx.Err(); err != nil {
		return &WriteError{IDs: ids, Err: err}
	}
	if err := validateEntries(entries, b.dimensions); err != nil {
		return &WriteError{IDs: ids, Err: err}
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		for _, e := range entries {
			data, err := json.Marshal(boltEntry{
				Vector:   float32SliceToBytes(e.Vector),
				Text:     e.Text,
				Metadata: e.Metadata,
			})
			if err != nil {
				return fmt.Errorf("entry %s: %w", e.ID, err)
			}
			if err := bucket.Put([]byte(e.ID), data); err != nil {
				return fmt.Errorf("entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return &WriteError{IDs: ids, Err: err}
	}
	return nil
}

// Query scans the collection bucket and returns the k closest entries.
func (b *BoltIndex) Query(ctx context.Context, vector []float32, k int) ([]models.QueryHit, error) {
	if err := validateQuery(vector, k, b.dimensions); err != nil {
		return nil, err
	}
	var hits []models.QueryHit
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).ForEach(func(key, value []byte) error {
			var e struct {
				Vector   []byte          `json:"vector"`
				Text     string          `json:"text"`
				Metadata json.RawMessage `json:"metadata"`
			}
			if err := json.Unmarshal(value, &e); err != nil {
				return fmt.Errorf("entry %s: %w", key, err)
			}
			metadata, err := decodeMetadata(e.Metadata)
			if err != nil {
				return fmt.Errorf("entry %s: %w", key, err)
			}
			hits = append(hits, models.QueryHit{
				ID:       string(key),
				Text:     e.Text,
				Metadata: metadata,
				Distance: CosineDistance(vector, bytesToFloat32Slice(e.Vector)),
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIndexQuery, err)
	}
	return topK(hits, k), nil
}

// Count returns the number of entries in the collection.
func (b *BoltIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := b.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(b.bucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrIndexQuery, err)
	}
	return n, nil
}

// Name returns the collection name.
func (b *BoltIndex) Name() string { return b.name }

// Close closes the bolt file.
func (b *BoltIndex) Close() error {
	return b.db.Close()
}
