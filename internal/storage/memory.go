package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/kbase/internal/models"
)

// MemoryStorage keeps stats for the lifetime of the process.
type MemoryStorage struct {
	mu    sync.RWMutex
	stats []models.DocumentStat
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) AddDocumentStat(ctx context.Context, stat models.DocumentStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, stat)
	return nil
}

func (m *MemoryStorage) ListDocumentStats(ctx context.Context) ([]models.DocumentStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.DocumentStat, len(m.stats))
	copy(out, m.stats)
	return out, nil
}

func (m *MemoryStorage) GetDocumentStat(ctx context.Context, filename string) (*models.DocumentStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.stats {
		if s.Filename == filename {
			stat := s
			return &stat, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, filename)
}

func (m *MemoryStorage) Close() error { return nil }
