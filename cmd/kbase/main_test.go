package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/kbase/internal/config"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"what are cats", "-k", "3"},
			expected: []string{"-k", "3", "what are cats"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "3", "what are cats"},
			expected: []string{"-k", "3", "what are cats"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what are cats"},
			expected: []string{"what are cats"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"a.pdf", "b.md", "--debug"},
			expected: []string{"--debug", "a.pdf", "b.md"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"cats"}, "cats"},
		{"multiple words", []string{"what", "are", "cats"}, "what are cats"},
		{"quoted phrase", []string{"what are cats"}, "what are cats"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinQuestion(tt.args); got != tt.expected {
				t.Errorf("joinQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  index_path: "./kbase.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestReadSSE(t *testing.T) {
	body := strings.Join([]string{
		`data: {"type":"sources","sources":["a.txt","b.txt"]}`,
		``,
		`data: {"type":"content","content":"Cats "}`,
		``,
		`: keepalive`,
		`data: {"type":"content","content":"purr."}`,
		``,
		`data: {"type":"done"}`,
		``,
	}, "\n")
	var events []sseEvent
	err := readSSE(strings.NewReader(body), func(ev sseEvent) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if !reflect.DeepEqual(events[0].Sources, []string{"a.txt", "b.txt"}) {
		t.Errorf("sources = %v", events[0].Sources)
	}
	if events[1].Content+events[2].Content != "Cats purr." {
		t.Errorf("content = %q", events[1].Content+events[2].Content)
	}
	if events[3].Type != "done" {
		t.Errorf("last event = %+v", events[3])
	}
}

func TestReadSSE_invalidEvent(t *testing.T) {
	err := readSSE(strings.NewReader("data: {not json}\n\n"), func(sseEvent) error { return nil })
	if err == nil {
		t.Error("expected error for malformed event")
	}
}

func TestEndpoint(t *testing.T) {
	got, err := endpoint("http://localhost:8000/", "/chat")
	if err != nil || got != "http://localhost:8000/chat" {
		t.Errorf("endpoint = %q, %v", got, err)
	}
	if _, err := endpoint("localhost", "/chat"); err == nil {
		t.Error("expected error for URL without scheme")
	}
}

func TestAskViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Message string `json:"message"`
			K       int    `json:"k"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Message == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "question is empty"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": "answer to " + req.Message,
			"sources":  []string{"a.txt"},
		})
	}))
	defer ts.Close()

	answer, err := askViaHTTP(ts.URL, "cats", 2)
	if err != nil {
		t.Fatal(err)
	}
	if answer.Response != "answer to cats" || len(answer.Sources) != 1 {
		t.Errorf("answer = %+v", answer)
	}

	_, err = askViaHTTP(ts.URL, "", 0)
	if err == nil || !strings.Contains(err.Error(), "question is empty") {
		t.Errorf("err = %v, want server error message", err)
	}
}

func TestAskStreamViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"type\":\"sources\",\"sources\":[\"a.txt\"]}\n\n"))
		_, _ = w.Write([]byte("data: {\"type\":\"content\",\"content\":\"hi\"}\n\n"))
		_, _ = w.Write([]byte("data: {\"type\":\"done\"}\n\n"))
	}))
	defer ts.Close()

	var types []string
	err := askStreamViaHTTP(ts.URL, "cats", 0, func(ev sseEvent) error {
		types = append(types, ev.Type)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(types, []string{"sources", "content", "done"}) {
		t.Errorf("event types = %v", types)
	}
}

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("KBASE_INDEX_PATH", "")
	t.Setenv("CHROMA_PERSIST_DIRECTORY", "")
	cfg := config.Default()
	cfg.Vector.Backend = backend
	cfg.Storage.IndexPath = filepath.Join(t.TempDir(), "kbase.db")
	cfg.Storage.PersistStats = true
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimensions = 64
	cfg.Generation.APIKey = ""
	return cfg
}

func TestInitializeComponents(t *testing.T) {
	for _, backend := range []string{"sqlite", "bolt", "memory"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			c, err := initializeComponents(context.Background(), cfg, zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()

			ctx := context.Background()
			if _, err := c.Service.Ingest(ctx, "Cats are small furry mammals that purr.", "cats.txt", nil); err != nil {
				t.Fatal(err)
			}
			answer, err := c.Service.Query(ctx, "What are cats?", 1)
			if err != nil {
				t.Fatal(err)
			}
			if len(answer.Sources) != 1 || answer.Sources[0] != "cats.txt" {
				t.Errorf("sources = %v", answer.Sources)
			}
			if c.Service.GenerationConfigured() {
				t.Error("generation should not be configured without an API key")
			}
			stats, err := directStats(ctx, cfg, c)
			if err != nil {
				t.Fatal(err)
			}
			if stats.Processing.TotalDocuments != 1 || stats.Collection.TotalDocuments != 1 {
				t.Errorf("stats = %+v", stats)
			}
		})
	}
}

func TestInitializeComponents_statsPersistAcrossRestart(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	ctx := context.Background()

	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Service.Ingest(ctx, "Dogs are loyal companions.", "dogs.txt", nil); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	docs, err := c.Indexer.Documents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Filename != "dogs.txt" {
		t.Errorf("documents after restart = %+v", docs)
	}
	n, err := c.VectorIndex.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count after restart = %d, %v", n, err)
	}
}

func TestInitializeComponents_dimensionMismatch(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	ctx := context.Background()
	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	c.Close()

	cfg.Embedding.Dimensions = 32
	if _, err := initializeComponents(ctx, cfg, zap.NewNop()); err == nil {
		t.Error("expected error reopening a collection with different dimensions")
	}
}
