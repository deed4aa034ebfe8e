// Package config provides configuration loading and structs for the kbase server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Vector     VectorConfig     `yaml:"vector"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Search     SearchConfig     `yaml:"search"`
	Generation GenerationConfig `yaml:"generation"`
	Upload     UploadConfig     `yaml:"upload"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	// IndexPath is the sqlite database or bolt file holding the vector index.
	IndexPath string `yaml:"index_path"`
	// PersistStats keeps document stats in the sqlite database instead of memory.
	PersistStats bool `yaml:"persist_stats"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	Backend    string `yaml:"backend"`
	Collection string `yaml:"collection"`
	Space      string `yaml:"space"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	// Provider is "hash", "onnx" or "openai".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BatchSize  int    `yaml:"batch_size"`
}

// SearchConfig holds chunking and retrieval settings.
type SearchConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is a pointer so an explicit 0 is kept.
	ChunkOverlap *int `yaml:"chunk_overlap"`
	DefaultK     int  `yaml:"default_k"`
}

// Overlap returns the chunk overlap, 0 when unset.
func (s *SearchConfig) Overlap() int {
	if s.ChunkOverlap != nil {
		return *s.ChunkOverlap
	}
	return 0
}

// GenerationConfig holds chat model settings. APIKey is normally supplied through
// OPENAI_API_KEY and is never written by Save.
type GenerationConfig struct {
	APIKey      string   `yaml:"-"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float32 `yaml:"temperature"`
}

// UploadConfig limits uploaded documents.
type UploadConfig struct {
	Extensions []string `yaml:"extensions"`
	MaxBytes   int64    `yaml:"max_bytes"`
}

// WatchConfig holds drop-folder settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Default returns a configuration with defaults applied and environment
// overrides read. Used when no config file exists.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)
	return &cfg
}

// Load reads and parses the config file at path, loads .env files, expands paths,
// applies defaults and environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := LoadEnvFiles(configDir); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	if cfg.Storage.IndexPath != "" {
		cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	}
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
	ApplyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFiles loads .env from dir and from the working directory, if present.
// Variables already set in the environment win.
func LoadEnvFiles(dir string) error {
	paths := []string{filepath.Join(dir, ".env")}
	if cwd, err := os.Getwd(); err == nil && cwd != dir {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Generation.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Generation.BaseURL = v
	}
	// CHROMA_PERSIST_DIRECTORY names a directory; the index file goes inside it.
	if v := os.Getenv("CHROMA_PERSIST_DIRECTORY"); v != "" {
		cfg.Storage.IndexPath = filepath.Join(v, defaultIndexFile)
	}
	if v := os.Getenv("KBASE_INDEX_PATH"); v != "" {
		cfg.Storage.IndexPath = v
	}
	switch strings.ToLower(os.Getenv("KBASE_DEBUG")) {
	case "1", "true", "yes":
		cfg.Debug = true
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if overlap := c.Search.Overlap(); c.Search.ChunkSize <= 0 || overlap < 0 || overlap >= c.Search.ChunkSize {
		return fmt.Errorf("invalid chunking: chunk_size=%d chunk_overlap=%d", c.Search.ChunkSize, overlap)
	}
	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %g", *t)
	}
	if c.Search.DefaultK <= 0 {
		return fmt.Errorf("search.default_k must be positive, got %d", c.Search.DefaultK)
	}
	switch c.Vector.Backend {
	case "sqlite", "bolt", "memory":
	default:
		return fmt.Errorf("unknown vector backend %q (supported: sqlite, bolt, memory)", c.Vector.Backend)
	}
	if c.Vector.Space != "cosine" {
		return fmt.Errorf("unsupported vector space %q (supported: cosine)", c.Vector.Space)
	}
	switch c.Embedding.Provider {
	case "hash", "onnx", "openai":
	default:
		return fmt.Errorf("unknown embedding provider %q (supported: hash, onnx, openai)", c.Embedding.Provider)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
