package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kbase/internal/models"
)

// DefaultBatchSize is the number of texts sent to an embedder per call.
const DefaultBatchSize = 32

// EncodeAll embeds texts in batches of batchSize and returns one vector per text in
// input order. Any failure, a missing vector, a wrong dimension, or an all-zero
// vector is reported as ErrEncoding; no partial result is returned.
func EncodeAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			if errors.Is(err, models.ErrEncoding) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", models.ErrEncoding, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", models.ErrEncoding, len(vecs), end-start)
		}
		for i, v := range vecs {
			if err := checkVector(v, e.Dimensions()); err != nil {
				return nil, fmt.Errorf("%w: text %d: %v", models.ErrEncoding, start+i, err)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func checkVector(v []float32, dims int) error {
	if len(v) != dims {
		return fmt.Errorf("vector has %d dimensions, want %d", len(v), dims)
	}
	for _, x := range v {
		if x != 0 {
			return nil
		}
	}
	return errors.New("zero vector")
}
