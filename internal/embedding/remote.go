package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kbase/internal/llm"
	"github.com/hyperjump/kbase/internal/models"
)

// RemoteEmbedder delegates to an embeddings API such as OpenAI's /embeddings.
type RemoteEmbedder struct {
	client     llm.Embedder
	model      string
	dimensions int
}

// NewRemoteEmbedder returns an embedder calling client with model. Every returned
// vector must have the given dimensions.
func NewRemoteEmbedder(client llm.Embedder, model string, dimensions int) *RemoteEmbedder {
	return &RemoteEmbedder{client: client, model: model, dimensions: dimensions}
}

func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for i, t := range texts {
		// Whitespace is embedded as is; chunks made of blank runs are valid input.
		if t == "" {
			return nil, fmt.Errorf("%w: text %d is empty", models.ErrEncoding, i)
		}
	}
	vecs, err := e.client.Embeddings(ctx, e.model, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEncoding, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", models.ErrEncoding, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", models.ErrEncoding, i, len(v), e.dimensions)
		}
	}
	return vecs, nil
}

func (e *RemoteEmbedder) Dimensions() int { return e.dimensions }

func (e *RemoteEmbedder) Close() error { return nil }
