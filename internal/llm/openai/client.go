// Package openai implements llm.ChatProvider and llm.Embedder against an
// OpenAI-compatible HTTP API.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kbase/internal/llm"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public OpenAI endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// DefaultTimeout bounds blocking calls and the wait for response headers.
const DefaultTimeout = 60 * time.Second

type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout bounds non-streaming requests end to end. Streams are bounded
// only by the caller's context once headers have arrived.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries makes requests answered with 429 or 5xx try again, up to
// maxAttempts in total. Requests are sent once by default.
func WithRetries(maxAttempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 1 {
			c.maxAttempts = maxAttempts
		}
		c.backoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for baseURL. An empty baseURL uses DefaultBaseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		timeout:     DefaultTimeout,
		maxAttempts: 1,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		// No overall client timeout: it would also cut off streamed bodies.
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = c.timeout
		c.http = &http.Client{Transport: transport}
	}
	return c
}

type chatStream struct {
	body io.ReadCloser
	r    *bufio.Reader
	done bool
}

func (s *chatStream) Recv() (string, bool, error) {
	if s.done {
		return "", true, nil
	}
	for {
		line, err := s.r.ReadString('\n')
		if err != nil && line == "" {
			s.done = true
			if errors.Is(err, io.EOF) {
				return "", true, nil
			}
			return "", true, err
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			if err != nil {
				s.done = true
				return "", true, nil
			}
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			s.done = true
			return "", true, nil
		}
		var evt struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if jerr := json.Unmarshal([]byte(payload), &evt); jerr != nil {
			s.done = true
			return "", true, fmt.Errorf("chat stream: malformed event: %w", jerr)
		}
		if evt.Error != nil {
			s.done = true
			return "", true, fmt.Errorf("chat stream: %s", evt.Error.Message)
		}
		if len(evt.Choices) > 0 && evt.Choices[0].Delta.Content != "" {
			return evt.Choices[0].Delta.Content, false, nil
		}
	}
}

func (s *chatStream) Close() error { return s.body.Close() }

// Chat implements llm.ChatProvider.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatStream, error) {
	if !req.Stream {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	body := map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
		"stream":      req.Stream,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	resp, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat http %d: %s", resp.StatusCode, string(data))
	}
	if req.Stream {
		return &chatStream{body: resp.Body, r: bufio.NewReader(resp.Body)}, nil
	}
	defer resp.Body.Close()
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("chat response has no choices")
	}
	return llm.StaticStream(out.Choices[0].Message.Content), nil
}

// Embeddings implements llm.Embedder.
func (c *Client) Embeddings(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.post(ctx, "/embeddings", map[string]any{"model": model, "input": inputs})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings http %d: %s", resp.StatusCode, string(data))
	}
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(out.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(out.Data), len(inputs))
	}
	res := make([][]float32, len(inputs))
	for i, d := range out.Data {
		idx := d.Index
		if idx < 0 || idx >= len(res) || res[idx] != nil {
			idx = i
		}
		res[idx] = d.Embedding
	}
	return res, nil
}

// post sends a JSON body. With WithRetries, 429 and 5xx responses are retried.
func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var resp *http.Response
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err = c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode/100 != 5 {
			return resp, nil
		}
		if attempt == c.maxAttempts-1 {
			break
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.logger.Debug("retrying request", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt+1)):
		}
	}
	return resp, nil
}
