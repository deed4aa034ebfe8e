// Package llm defines chat and embedding provider abstractions.
package llm

import (
	"context"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single chat completion call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	Stream      bool
}

// ChatProvider provides chat completion APIs.
type ChatProvider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatStream, error)
}

// Embedder provides embedding generation APIs.
type Embedder interface {
	Embeddings(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// ChatStream yields tokens in generation order, or a single final message if non-streaming.
// After Recv reports done or an error, the stream yields nothing further.
type ChatStream interface {
	Recv() (delta string, done bool, err error)
	Close() error
}

// StaticStream returns a stream that yields s once and then reports done.
func StaticStream(s string) ChatStream {
	return &staticStream{s: s}
}

type staticStream struct{ s string }

func (s *staticStream) Recv() (string, bool, error) {
	if s.s == "" {
		return "", true, nil
	}
	v := s.s
	s.s = ""
	return v, false, nil
}

func (s *staticStream) Close() error { return nil }

// Collect drains stream and returns the concatenated deltas. The stream is closed.
func Collect(stream ChatStream) (string, error) {
	defer stream.Close()
	var b strings.Builder
	for {
		delta, done, err := stream.Recv()
		if err != nil {
			return b.String(), err
		}
		b.WriteString(delta)
		if done {
			return b.String(), nil
		}
	}
}
