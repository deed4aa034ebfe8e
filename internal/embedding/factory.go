package embedding

import (
	"fmt"

	"github.com/hyperjump/kbase/internal/llm"
	"go.uber.org/zap"
)

// Provider names accepted by New.
const (
	ProviderHash   = "hash"
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
)

// Options selects and configures an embedder.
type Options struct {
	Provider   string
	Model      string
	ModelPath  string
	Dimensions int
	MaxTokens  int
	CacheSize  int
	// Remote is required for ProviderOpenAI.
	Remote llm.Embedder
}

// New builds the configured embedder. An ONNX model that fails to load falls back
// to the hash embedder with a warning. A positive CacheSize wraps the result in an LRU cache.
func New(opts Options, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var e Embedder
	switch opts.Provider {
	case "", ProviderHash:
		e = NewHashEmbedder(opts.Dimensions)
	case ProviderONNX:
		onnx, err := NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens)
		if err != nil {
			logger.Warn("failed to load ONNX model, falling back to hash embedder",
				zap.String("model_path", opts.ModelPath),
				zap.Error(err))
			e = NewHashEmbedder(opts.Dimensions)
		} else {
			e = onnx
		}
	case ProviderOpenAI:
		if opts.Remote == nil {
			return nil, fmt.Errorf("embedding provider %q requires a client", opts.Provider)
		}
		e = NewRemoteEmbedder(opts.Remote, opts.Model, opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
	if opts.CacheSize > 0 {
		e = NewCachedEmbedder(e, opts.CacheSize)
	}
	logger.Info("embedder initialized",
		zap.String("provider", opts.Provider),
		zap.Int("dimensions", e.Dimensions()))
	return e, nil
}
