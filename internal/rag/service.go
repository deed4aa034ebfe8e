// Package rag wires ingestion, retrieval and generation into the request-facing
// question-answering service.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kbase/internal/generation"
	"github.com/hyperjump/kbase/internal/indexer"
	"github.com/hyperjump/kbase/internal/models"
	"github.com/hyperjump/kbase/internal/retrieval"
	"go.uber.org/zap"
)

// Service answers questions over the knowledge base and accepts new documents.
type Service struct {
	indexer   *indexer.Indexer
	retriever *retrieval.Orchestrator
	engine    *generation.Engine
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a service from its three pipeline stages.
func NewService(idx *indexer.Indexer, retriever *retrieval.Orchestrator, engine *generation.Engine, opts ...Option) *Service {
	s := &Service{
		indexer:   idx,
		retriever: retriever,
		engine:    engine,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Indexer returns the ingestion stage.
func (s *Service) Indexer() *indexer.Indexer { return s.indexer }

// GenerationConfigured reports whether answers come from a model.
func (s *Service) GenerationConfigured() bool { return s.engine.Configured() }

// Ingest adds text to the knowledge base under source.
func (s *Service) Ingest(ctx context.Context, text, source string, extra map[string]any) (*models.DocumentStat, error) {
	doc := &models.Document{Text: text, Metadata: map[string]any{models.MetaSource: source}}
	return s.indexer.Ingest(ctx, doc, extra)
}

// IngestBytes extracts and ingests an uploaded file.
func (s *Service) IngestBytes(ctx context.Context, content []byte, filename string) (*models.DocumentStat, error) {
	return s.indexer.IngestBytes(ctx, content, filename)
}

func (s *Service) retrieve(ctx context.Context, question string, k int) (string, *models.Retrieval, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return "", nil, models.ErrEmptyQuestion
	}
	if k < 0 {
		return "", nil, fmt.Errorf("%w: %d", models.ErrInvalidK, k)
	}
	r, err := s.retriever.Retrieve(ctx, q, k)
	if err != nil {
		return "", nil, err
	}
	return q, r, nil
}

// Query answers question from the k closest chunks (k == 0 uses the default).
// Generation failures are reported inside the answer text, not as an error.
func (s *Service) Query(ctx context.Context, question string, k int) (*models.Answer, error) {
	q, r, err := s.retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}
	answer := &models.Answer{
		Response: s.engine.Answer(ctx, q, r.Context),
		Sources:  r.Sources,
	}
	s.logger.Info("question answered",
		zap.Int("hits", len(r.Hits)),
		zap.Strings("sources", r.Sources))
	return answer, nil
}

// QueryStream retrieves context for question and starts streaming the answer.
// Sources are known before the first token.
func (s *Service) QueryStream(ctx context.Context, question string, k int) ([]string, <-chan models.StreamEvent, error) {
	q, r, err := s.retrieve(ctx, question, k)
	if err != nil {
		return nil, nil, err
	}
	return r.Sources, s.engine.AnswerStream(ctx, q, r.Context), nil
}
