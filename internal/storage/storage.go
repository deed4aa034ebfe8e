// Package storage persists per-document processing statistics and owns the
// shared SQLite database handle.
package storage

import (
	"context"

	"github.com/hyperjump/kbase/internal/models"
)

// Storage records one DocumentStat per successfully ingested document.
type Storage interface {
	AddDocumentStat(ctx context.Context, stat models.DocumentStat) error
	// ListDocumentStats returns all stats in ingestion order.
	ListDocumentStats(ctx context.Context) ([]models.DocumentStat, error)
	// GetDocumentStat returns the first stat recorded for filename, or ErrDocumentNotFound.
	GetDocumentStat(ctx context.Context, filename string) (*models.DocumentStat, error)
	Close() error
}
