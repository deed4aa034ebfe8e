package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kbase/internal/config"
	"github.com/hyperjump/kbase/internal/embedding"
	"github.com/hyperjump/kbase/internal/generation"
	"github.com/hyperjump/kbase/internal/indexer"
	"github.com/hyperjump/kbase/internal/llm/openai"
	"github.com/hyperjump/kbase/internal/models"
	"github.com/hyperjump/kbase/internal/rag"
	"github.com/hyperjump/kbase/internal/retrieval"
	"github.com/hyperjump/kbase/internal/storage"
	"github.com/hyperjump/kbase/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	DB          *sql.DB
	Storage     storage.Storage
	Embedder    embedding.Embedder
	VectorIndex vector.VectorIndex
	Indexer     *indexer.Indexer
	Service     *rag.Service
}

func (c *Components) Close() {
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// Retrying rate-limited calls is a policy of this binary, not of the pipeline.
	client := openai.New(cfg.Generation.BaseURL, cfg.Generation.APIKey,
		openai.WithRetries(3, 200*time.Millisecond),
		openai.WithLogger(logger))

	c.Embedder, err = embedding.New(embedding.Options{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		ModelPath:  cfg.Embedding.ModelPath,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
		Remote:     client,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	if cfg.Vector.Backend == string(vector.IndexTypeSQLite) {
		if c.DB, err = storage.OpenDB(cfg.Storage.IndexPath); err != nil {
			return nil, fmt.Errorf("failed to open index database: %w", err)
		}
	}
	c.VectorIndex, err = vector.NewVectorIndex(ctx, vector.Options{
		Type:       cfg.Vector.Backend,
		Path:       cfg.Storage.IndexPath,
		Collection: cfg.Vector.Collection,
		Dimensions: c.Embedder.Dimensions(),
		DB:         c.DB,
	})
	if err != nil {
		// A collection built with another space or dimension must be rebuilt, not hidden.
		if errors.Is(err, models.ErrSpaceMismatch) || cfg.Vector.Backend == string(vector.IndexTypeMemory) {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
		logger.Warn("failed to create vector index, falling back to memory",
			zap.String("requested_type", cfg.Vector.Backend),
			zap.Error(err))
		c.VectorIndex, err = vector.NewMemoryIndex(cfg.Vector.Collection, c.Embedder.Dimensions())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}
	logger.Info("vector index initialized",
		zap.String("type", cfg.Vector.Backend),
		zap.String("collection", c.VectorIndex.Name()),
		zap.String("path", cfg.Storage.IndexPath))

	if cfg.Storage.PersistStats && c.DB != nil {
		if c.Storage, err = storage.NewSQLiteStorageFromDB(c.DB); err != nil {
			return nil, fmt.Errorf("failed to initialize stats storage: %w", err)
		}
	} else {
		c.Storage = storage.NewMemoryStorage()
	}

	chunker, err := indexer.NewChunker(cfg.Search.ChunkSize, cfg.Search.Overlap())
	if err != nil {
		return nil, err
	}
	c.Indexer = indexer.NewIndexer(chunker, c.Embedder, c.VectorIndex, c.Storage,
		indexer.WithLogger(logger),
		indexer.WithBatchSize(cfg.Embedding.BatchSize))

	retriever := retrieval.NewOrchestrator(c.Embedder, c.VectorIndex,
		retrieval.WithDefaultK(cfg.Search.DefaultK),
		retrieval.WithLogger(logger))

	backend := generation.NewBackend(generation.Settings{
		APIKey:      cfg.Generation.APIKey,
		Model:       cfg.Generation.Model,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	}, client)
	if !backend.Configured() {
		logger.Warn("no OpenAI API key configured; answers will show retrieved context only")
	}
	engine := generation.NewEngine(backend, generation.WithLogger(logger))

	c.Service = rag.NewService(c.Indexer, retriever, engine, rag.WithLogger(logger))
	return c, nil
}
