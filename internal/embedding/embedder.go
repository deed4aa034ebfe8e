// Package embedding maps text to fixed-dimension vectors.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations hold no
// per-request state and are safe for concurrent use. Identical text always
// yields the identical vector for a given embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
