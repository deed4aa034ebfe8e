// Package models defines core data structures for documents, chunks, index entries, and stream events.
package models

import (
	"fmt"
	"strconv"
)

// Metadata keys written on every index entry.
const (
	MetaSource      = "source"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
)

// UnknownSource is used when a document carries no source metadata.
const UnknownSource = "unknown"

// Document is raw text handed to ingestion. It is not retained after chunking.
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Source returns the document's source identifier, or UnknownSource.
func (d *Document) Source() string {
	if d == nil || d.Metadata == nil {
		return UnknownSource
	}
	if s, ok := d.Metadata[MetaSource].(string); ok && s != "" {
		return s
	}
	return UnknownSource
}

// Chunk is a bounded, possibly overlapping substring of a document.
// ChunkIndex is always in [0, TotalChunks).
type Chunk struct {
	Text          string         `json:"text"`
	SourceID      string         `json:"source_id"`
	ChunkIndex    int            `json:"chunk_index"`
	TotalChunks   int            `json:"total_chunks"`
	ExtraMetadata map[string]any `json:"extra_metadata,omitempty"`
}

// ID returns the stable identifier of the chunk.
func (c *Chunk) ID() string {
	return ChunkID(c.SourceID, c.ChunkIndex)
}

// ChunkID derives the index entry ID for chunk index of source.
// Re-ingesting a source overwrites entries with the same index.
func ChunkID(source string, index int) string {
	return source + "_" + strconv.Itoa(index)
}

// DocumentStat records one successfully ingested document.
type DocumentStat struct {
	Filename   string `json:"filename"`
	TextLength int    `json:"text_length"`
	ChunkCount int    `json:"chunks"`
}

// ProcessingStats aggregates DocumentStats.
type ProcessingStats struct {
	TotalDocuments      int     `json:"total_documents"`
	TotalTextLength     int     `json:"total_text_length"`
	TotalChunks         int     `json:"total_chunks"`
	AverageTextLength   float64 `json:"average_text_length"`
	AverageChunksPerDoc float64 `json:"average_chunks_per_doc"`
}

// SummarizeStats computes totals and averages. Averages are zero when stats is empty.
func SummarizeStats(stats []DocumentStat) ProcessingStats {
	var out ProcessingStats
	out.TotalDocuments = len(stats)
	for _, s := range stats {
		out.TotalTextLength += s.TextLength
		out.TotalChunks += s.ChunkCount
	}
	if out.TotalDocuments > 0 {
		out.AverageTextLength = float64(out.TotalTextLength) / float64(out.TotalDocuments)
		out.AverageChunksPerDoc = float64(out.TotalChunks) / float64(out.TotalDocuments)
	}
	return out
}

// CollectionStats describes the vector collection.
type CollectionStats struct {
	TotalDocuments int    `json:"total_documents"`
	CollectionName string `json:"collection_name"`
}

// ValidateMetadata returns ErrInvalidMetadata if any value is not a scalar
// (string, bool, integer or float).
func ValidateMetadata(m map[string]any) error {
	for k, v := range m {
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return fmt.Errorf("%w: key %q has non-scalar value of type %T", ErrInvalidMetadata, k, v)
		}
	}
	return nil
}
