package generation

import (
	"context"

	"github.com/hyperjump/kbase/internal/llm"
	"github.com/hyperjump/kbase/internal/models"
	"go.uber.org/zap"
)

// Engine answers questions through a Backend.
type Engine struct {
	backend Backend
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for generation failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine over backend.
func NewEngine(backend Backend, opts ...Option) *Engine {
	e := &Engine{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Configured reports whether the backend calls a model.
func (e *Engine) Configured() bool { return e.backend.Configured() }

// Answer returns the backend's answer. It never fails: a backend error is
// returned as an apology text that includes the error.
func (e *Engine) Answer(ctx context.Context, question, kbContext string) string {
	text, err := e.backend.Complete(ctx, question, kbContext)
	if err != nil {
		e.logger.Error("generation failed", zap.Error(err))
		return ErrorResponse(err)
	}
	return text
}

// AnswerStream starts generation and returns its events. The channel carries
// content events in backend order, then exactly one done or error event, and is
// then closed. Once ctx is cancelled no further events are sent and the backend
// stream is closed.
func (e *Engine) AnswerStream(ctx context.Context, question, kbContext string) <-chan models.StreamEvent {
	events := make(chan models.StreamEvent)
	go func() {
		defer close(events)
		send := func(ev models.StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		stream, err := e.backend.Stream(ctx, question, kbContext)
		if err != nil {
			e.logger.Error("generation stream failed", zap.Error(err))
			if ctx.Err() == nil {
				send(models.ErrorEvent(err.Error()))
			}
			return
		}
		defer stream.Close()
		e.pump(ctx, stream, send)
	}()
	return events
}

func (e *Engine) pump(ctx context.Context, stream llm.ChatStream, send func(models.StreamEvent) bool) {
	for {
		if ctx.Err() != nil {
			return
		}
		delta, done, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("generation stream failed", zap.Error(err))
			send(models.ErrorEvent(err.Error()))
			return
		}
		if delta != "" && !send(models.ContentEvent(delta)) {
			return
		}
		if done {
			send(models.DoneEvent())
			return
		}
	}
}
