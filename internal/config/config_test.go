package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "KBASE_INDEX_PATH", "CHROMA_PERSIST_DIRECTORY", "KBASE_DEBUG"} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  index_path: "./data/index.db"
search:
  chunk_size: 500
  chunk_overlap: 50
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr = %s", cfg.Server.Addr())
	}
	want := filepath.Join(filepath.Dir(path), "data", "index.db")
	if cfg.Storage.IndexPath != want {
		t.Errorf("IndexPath = %q, want %q", cfg.Storage.IndexPath, want)
	}
	if cfg.Search.ChunkSize != 500 || cfg.Search.Overlap() != 50 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_errors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(writeConfig(t, "search:\n  chunk_size: 100\n  chunk_overlap: 100\n")); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoad_envFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("OPENAI_API_KEY")
	path := writeConfig(t, "debug: false\n")
	env := "OPENAI_API_KEY=sk-from-dotenv\nKBASE_DEBUG=true\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(env), 0600); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv("KBASE_DEBUG")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generation.APIKey != "sk-from-dotenv" {
		t.Errorf("APIKey = %q", cfg.Generation.APIKey)
	}
	if !cfg.Debug {
		t.Error("KBASE_DEBUG from .env not applied")
	}
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("CHROMA_PERSIST_DIRECTORY", "/tmp/chroma")

	cfg := Default()
	if cfg.Generation.APIKey != "sk-env" || cfg.Generation.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("generation = %+v", cfg.Generation)
	}
	if cfg.Storage.IndexPath != filepath.Join("/tmp/chroma", defaultIndexFile) {
		t.Errorf("IndexPath = %q", cfg.Storage.IndexPath)
	}

	t.Setenv("KBASE_INDEX_PATH", "/srv/kbase.db")
	if cfg := Default(); cfg.Storage.IndexPath != "/srv/kbase.db" {
		t.Errorf("KBASE_INDEX_PATH should win, got %q", cfg.Storage.IndexPath)
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Server.Port != 8000 || len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Vector.Backend != "sqlite" || cfg.Vector.Collection != "knowledge_base" || cfg.Vector.Space != "cosine" {
		t.Errorf("vector = %+v", cfg.Vector)
	}
	if cfg.Search.ChunkSize != 1000 || cfg.Search.Overlap() != 200 || cfg.Search.DefaultK != 5 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Generation.Model != "gpt-3.5-turbo" || cfg.Generation.MaxTokens != 1000 || *cfg.Generation.Temperature != 0.7 {
		t.Errorf("generation = %+v", cfg.Generation)
	}
	if len(cfg.Upload.Extensions) != 1 || cfg.Upload.Extensions[0] != ".pdf" {
		t.Errorf("upload = %+v", cfg.Upload)
	}
	if cfg.Watch.Recursive != nil {
		t.Error("recursive should stay nil without directories")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestApplyDefaults_Embedding(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantProv string
		wantMod  string
		wantDims int
	}{
		{"unset tries onnx", "", "onnx", "all-MiniLM-L6-v2", 384},
		{"onnx", "onnx", "onnx", "all-MiniLM-L6-v2", 384},
		{"hash", "hash", "hash", "all-MiniLM-L6-v2", 384},
		{"openai", "openai", "openai", "text-embedding-3-small", 1536},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Embedding: EmbeddingConfig{Provider: tt.provider}}
			ApplyDefaults(&cfg)
			e := cfg.Embedding
			if e.Provider != tt.wantProv || e.Model != tt.wantMod || e.Dimensions != tt.wantDims {
				t.Errorf("embedding = %+v, want provider=%s model=%s dims=%d", e, tt.wantProv, tt.wantMod, tt.wantDims)
			}
			if !strings.HasSuffix(e.ModelPath, "all-MiniLM-L6-v2.onnx") {
				t.Errorf("ModelPath = %q", e.ModelPath)
			}
		})
	}

	cfg := Config{Embedding: EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-large", Dimensions: 3072}}
	ApplyDefaults(&cfg)
	if cfg.Embedding.Model != "text-embedding-3-large" || cfg.Embedding.Dimensions != 3072 {
		t.Errorf("explicit openai settings overridden: %+v", cfg.Embedding)
	}
}

func TestApplyDefaults_smallChunkSize(t *testing.T) {
	cfg := Config{Search: SearchConfig{ChunkSize: 100}}
	ApplyDefaults(&cfg)
	if cfg.Search.Overlap() != 20 {
		t.Errorf("ChunkOverlap = %d, want 20", cfg.Search.Overlap())
	}
}

func TestLoad_explicitZeroValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
search:
  chunk_size: 100
  chunk_overlap: 0
generation:
  temperature: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Search.Overlap(); got != 0 {
		t.Errorf("ChunkOverlap = %d, want 0", got)
	}
	if cfg.Generation.Temperature == nil || *cfg.Generation.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", cfg.Generation.Temperature)
	}

	saved := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(saved, cfg); err != nil {
		t.Fatal(err)
	}
	reloaded, err := Load(saved)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Search.Overlap() != 0 || *reloaded.Generation.Temperature != 0 {
		t.Errorf("zero values lost on save: overlap=%d temperature=%v",
			reloaded.Search.Overlap(), *reloaded.Generation.Temperature)
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := Config{Watch: WatchConfig{Directories: []string{"/tmp"}}}
	ApplyDefaults(&cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.Vector.Backend = "faiss" }, "vector backend"},
		{"space", func(c *Config) { c.Vector.Space = "l2" }, "vector space"},
		{"provider", func(c *Config) { c.Embedding.Provider = "bert" }, "embedding provider"},
		{"default k", func(c *Config) { c.Search.DefaultK = -1 }, "default_k"},
		{"overlap", func(c *Config) { n := -1; c.Search.ChunkOverlap = &n }, "chunking"},
		{"temperature", func(c *Config) { t := float32(3); c.Generation.Temperature = &t }, "temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			ApplyDefaults(&cfg)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestSave(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Generation.APIKey = "sk-secret"
	cfg.Storage.IndexPath = "/data/kbase.db"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Error("API key written to config file")
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Storage.IndexPath != "/data/kbase.db" || loaded.Search.ChunkSize != cfg.Search.ChunkSize {
		t.Errorf("round trip lost settings: %+v", loaded)
	}
}
