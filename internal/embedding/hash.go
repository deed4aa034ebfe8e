package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kbase/internal/models"
	"github.com/hyperjump/kbase/pkg/utils"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// HashEmbedder is a deterministic bag-of-words embedder. Each token is hashed into
// one of dimensions buckets and the count vector is L2-normalized, so texts that
// share words have positive cosine similarity. It needs no model files.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the normalized token-count vector of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", models.ErrEncoding)
	}
	emb := make([]float32, e.dimensions)
	tokens := Tokens(text)
	if len(tokens) == 0 {
		// Whitespace-only chunks still need a usable vector.
		tokens = []string{text}
	}
	for _, tok := range tokens {
		emb[HashToken(tok)%uint32(e.dimensions)]++
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}
