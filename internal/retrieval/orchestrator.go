// Package retrieval turns a question into ranked context from the vector index.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kbase/internal/embedding"
	"github.com/hyperjump/kbase/internal/models"
	"github.com/hyperjump/kbase/internal/vector"
	"go.uber.org/zap"
)

// DefaultK is the number of chunks retrieved when the caller does not choose.
const DefaultK = 5

// NoContextFound is the context used when the index returns nothing.
const NoContextFound = "No relevant context found."

const contextSeparator = "\n\n"

// Orchestrator encodes questions and queries the vector index.
type Orchestrator struct {
	embedder    embedding.Embedder
	vectorIndex vector.VectorIndex
	defaultK    int
	logger      *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a logger for retrieval events.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDefaultK sets the k used when Retrieve is called with k <= 0.
func WithDefaultK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.defaultK = k
		}
	}
}

// NewOrchestrator creates an orchestrator over embedder and vectorIndex.
func NewOrchestrator(embedder embedding.Embedder, vectorIndex vector.VectorIndex, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		embedder:    embedder,
		vectorIndex: vectorIndex,
		defaultK:    DefaultK,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DefaultK returns the k used for non-positive requests.
func (o *Orchestrator) DefaultK() int { return o.defaultK }

// Retrieve returns the k chunks closest to question, closest first. Context is
// their texts joined by a blank line, or NoContextFound when the index is empty.
// Sources holds each hit's source in the same order, duplicates kept.
func (o *Orchestrator) Retrieve(ctx context.Context, question string, k int) (*models.Retrieval, error) {
	if k <= 0 {
		k = o.defaultK
	}
	vec, err := o.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := o.vectorIndex.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", o.vectorIndex.Name(), err)
	}

	r := &models.Retrieval{Hits: hits, Sources: make([]string, len(hits))}
	if len(hits) == 0 {
		r.Context = NoContextFound
	} else {
		texts := make([]string, len(hits))
		for i, h := range hits {
			texts[i] = h.Text
			r.Sources[i] = h.Source()
		}
		r.Context = strings.Join(texts, contextSeparator)
	}
	o.logger.Debug("retrieved context",
		zap.Int("k", k),
		zap.Int("hits", len(hits)),
		zap.Strings("sources", r.Sources))
	return r, nil
}
