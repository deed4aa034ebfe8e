// Package generation produces answers from a question and retrieved context.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kbase/internal/llm"
	"github.com/hyperjump/kbase/internal/models"
)

// Generation defaults.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// PlaceholderAPIKey is the sample key shipped in example env files. It counts as
// no key at all.
const PlaceholderAPIKey = "your_openai_api_key_here"

// Settings selects and tunes the generation backend.
type Settings struct {
	APIKey    string
	Model     string
	MaxTokens int
	// Temperature is nil for DefaultTemperature; 0 is a valid setting.
	Temperature *float32
}

// Configured reports whether s carries a usable credential.
func (s Settings) Configured() bool {
	key := strings.TrimSpace(s.APIKey)
	return key != "" && key != PlaceholderAPIKey
}

// Backend generates text for a question over context.
type Backend interface {
	// Complete returns the whole answer.
	Complete(ctx context.Context, question, kbContext string) (string, error)
	// Stream returns the answer as an ordered token stream.
	Stream(ctx context.Context, question, kbContext string) (llm.ChatStream, error)
	// Configured reports whether answers come from a model.
	Configured() bool
}

// NewBackend returns a ConfiguredBackend when s has a usable key and provider is
// non-nil, and an UnconfiguredBackend otherwise.
func NewBackend(s Settings, provider llm.ChatProvider) Backend {
	if !s.Configured() || provider == nil {
		return UnconfiguredBackend{}
	}
	return NewConfiguredBackend(provider, s)
}

// ConfiguredBackend calls a chat model with the knowledge-base prompt.
type ConfiguredBackend struct {
	provider    llm.ChatProvider
	model       string
	maxTokens   int
	temperature float32
}

// NewConfiguredBackend wraps provider. Unset settings take the package defaults.
func NewConfiguredBackend(provider llm.ChatProvider, s Settings) *ConfiguredBackend {
	b := &ConfiguredBackend{
		provider:    provider,
		model:       s.Model,
		maxTokens:   s.MaxTokens,
		temperature: DefaultTemperature,
	}
	if s.Temperature != nil {
		b.temperature = *s.Temperature
	}
	if b.model == "" {
		b.model = DefaultModel
	}
	if b.maxTokens <= 0 {
		b.maxTokens = DefaultMaxTokens
	}
	return b
}

func (b *ConfiguredBackend) request(question, kbContext string, stream bool) llm.ChatRequest {
	return llm.ChatRequest{
		Model:       b.model,
		Messages:    Messages(question, kbContext),
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
		Stream:      stream,
	}
}

// Complete returns the trimmed model answer.
func (b *ConfiguredBackend) Complete(ctx context.Context, question, kbContext string) (string, error) {
	stream, err := b.provider.Chat(ctx, b.request(question, kbContext, false))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}
	text, err := llm.Collect(stream)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}
	return strings.TrimSpace(text), nil
}

// Stream opens a streaming completion.
func (b *ConfiguredBackend) Stream(ctx context.Context, question, kbContext string) (llm.ChatStream, error) {
	stream, err := b.provider.Chat(ctx, b.request(question, kbContext, true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}
	return stream, nil
}

// Configured is always true.
func (b *ConfiguredBackend) Configured() bool { return true }

// UnconfiguredBackend answers with FallbackResponse and never fails.
type UnconfiguredBackend struct{}

func (UnconfiguredBackend) Complete(_ context.Context, question, kbContext string) (string, error) {
	return FallbackResponse(question, kbContext), nil
}

// Stream yields the fallback text as a single delta.
func (UnconfiguredBackend) Stream(_ context.Context, question, kbContext string) (llm.ChatStream, error) {
	return llm.StaticStream(FallbackResponse(question, kbContext)), nil
}

func (UnconfiguredBackend) Configured() bool { return false }
