package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kbase/internal/embedding"
	"github.com/hyperjump/kbase/internal/extract"
	"github.com/hyperjump/kbase/internal/models"
	"github.com/hyperjump/kbase/internal/storage"
	"github.com/hyperjump/kbase/internal/vector"
	"go.uber.org/zap"
)

// Indexer drives chunking, embedding, and vector writes for new documents and
// records one DocumentStat per successful ingestion.
type Indexer struct {
	chunker     *Chunker
	embedder    embedding.Embedder
	vectorIndex vector.VectorIndex
	stats       storage.Storage
	extractor   *extract.Extractor
	batchSize   int
	locks       *sourceLocks
	logger      *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithExtractor sets the extractor used by IngestFile and IngestBytes.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// WithBatchSize sets how many chunks are sent to the embedder per call.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) { idx.batchSize = n }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	chunker *Chunker,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	stats storage.Storage,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		chunker:     chunker,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		stats:       stats,
		extractor:   extract.NewExtractor(),
		batchSize:   embedding.DefaultBatchSize,
		locks:       newSourceLocks(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest chunks doc, embeds every chunk, and upserts the entries. Entry metadata
// is source, chunk_index, total_chunks, plus extra; extra cannot override those
// keys. Nothing is recorded unless the whole document was written. Concurrent
// ingestions of the same source run one at a time.
//
// The index and the stats store are separate stores with no shared transaction.
// If recording the stat fails after the upsert, the error is returned and the
// chunks stay searchable without a stat; ingesting the same source again
// overwrites them and records the stat.
func (idx *Indexer) Ingest(ctx context.Context, doc *models.Document, extra map[string]any) (*models.DocumentStat, error) {
	if doc == nil {
		return nil, models.ErrEmptyContent
	}
	if err := models.ValidateMetadata(extra); err != nil {
		return nil, err
	}
	source := doc.Source()
	release := idx.locks.lock(source)
	defer release()

	chunks, err := idx.chunker.Chunk(source, doc.Text, extra)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", source, err)
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := embedding.EncodeAll(ctx, idx.embedder, texts, idx.batchSize)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", source, err)
	}

	entries := make([]models.IndexEntry, len(chunks))
	for i, ch := range chunks {
		entries[i] = models.IndexEntry{
			ID:       ch.ID(),
			Vector:   vectors[i],
			Text:     ch.Text,
			Metadata: entryMetadata(ch),
		}
	}
	if err := idx.vectorIndex.Upsert(ctx, entries); err != nil {
		return nil, fmt.Errorf("index %s: %w", source, err)
	}

	stat := models.DocumentStat{
		Filename:   source,
		TextLength: utf8.RuneCountInString(doc.Text),
		ChunkCount: len(chunks),
	}
	if err := idx.stats.AddDocumentStat(ctx, stat); err != nil {
		return nil, fmt.Errorf("record stats for %s: %w", source, err)
	}
	idx.logger.Info("document ingested",
		zap.String("source", source),
		zap.Int("text_length", stat.TextLength),
		zap.Int("chunks", stat.ChunkCount))
	return &stat, nil
}

func entryMetadata(ch *models.Chunk) map[string]any {
	meta := make(map[string]any, len(ch.ExtraMetadata)+3)
	for k, v := range ch.ExtraMetadata {
		meta[k] = v
	}
	meta[models.MetaSource] = ch.SourceID
	meta[models.MetaChunkIndex] = ch.ChunkIndex
	meta[models.MetaTotalChunks] = ch.TotalChunks
	return meta
}

// IngestBytes extracts text from content by filename's extension and ingests it
// with filename as the source.
func (idx *Indexer) IngestBytes(ctx context.Context, content []byte, filename string) (*models.DocumentStat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	text, err := idx.extractor.ExtractBytes(content, ext)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	doc := &models.Document{
		Text:     text,
		Metadata: map[string]any{models.MetaSource: filename},
	}
	extra := map[string]any{
		"filename": filename,
		"type":     strings.TrimPrefix(ext, "."),
	}
	return idx.Ingest(ctx, doc, extra)
}

// IngestFile reads the file at path and ingests it under its base name. If
// allowedExts is non-empty, the extension must be in the list (case-insensitive).
func (idx *Indexer) IngestFile(ctx context.Context, path string, allowedExts []string) (*models.DocumentStat, error) {
	idx.logger.Debug("indexer ingesting file", zap.String("path", path))
	ext := strings.ToLower(filepath.Ext(path))
	if len(allowedExts) > 0 && !ExtensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("%w: extension %q not in allowed list", extract.ErrUnsupportedFormat, ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.IngestBytes(ctx, content, filepath.Base(path))
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and leading dots.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// Documents returns every recorded DocumentStat in ingestion order.
func (idx *Indexer) Documents(ctx context.Context) ([]models.DocumentStat, error) {
	return idx.stats.ListDocumentStats(ctx)
}

// Document returns the first stat recorded for filename.
func (idx *Indexer) Document(ctx context.Context, filename string) (*models.DocumentStat, error) {
	return idx.stats.GetDocumentStat(ctx, filename)
}

// ProcessingStats summarizes all recorded documents.
func (idx *Indexer) ProcessingStats(ctx context.Context) (models.ProcessingStats, error) {
	stats, err := idx.stats.ListDocumentStats(ctx)
	if err != nil {
		return models.ProcessingStats{}, err
	}
	return models.SummarizeStats(stats), nil
}

// CollectionStats reports the vector collection's size and name.
func (idx *Indexer) CollectionStats(ctx context.Context) (models.CollectionStats, error) {
	n, err := idx.vectorIndex.Count(ctx)
	if err != nil {
		return models.CollectionStats{}, err
	}
	return models.CollectionStats{TotalDocuments: n, CollectionName: idx.vectorIndex.Name()}, nil
}
