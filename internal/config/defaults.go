package config

const defaultIndexFile = "kbase.db"

// Embedding model defaults per provider. The hash provider mirrors the local
// model's dimensions so a fallback index stays the same shape.
const (
	defaultLocalModel      = "all-MiniLM-L6-v2"
	defaultLocalDimensions = 384
	defaultModelPath       = "/usr/local/var/kbase/data/models/all-MiniLM-L6-v2.onnx"
	defaultOpenAIModel     = "text-embedding-3-small"
	defaultOpenAIDims      = 1536
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/kbase/data/" + defaultIndexFile
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "sqlite"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "knowledge_base"
	}
	if cfg.Vector.Space == "" {
		cfg.Vector.Space = "cosine"
	}
	// ONNX is tried first; the embedder falls back to hashing when the runtime
	// or model is unavailable.
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = defaultModelPath
	}
	if cfg.Embedding.Provider == "openai" {
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = defaultOpenAIModel
		}
		if cfg.Embedding.Dimensions == 0 {
			cfg.Embedding.Dimensions = defaultOpenAIDims
		}
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaultLocalModel
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = defaultLocalDimensions
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 1000
	}
	// Overlap defaults only when absent; an explicit 0 disables it.
	if cfg.Search.ChunkOverlap == nil {
		overlap := 200
		if cfg.Search.ChunkSize <= 200 {
			overlap = cfg.Search.ChunkSize / 5
		}
		cfg.Search.ChunkOverlap = &overlap
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 5
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-3.5-turbo"
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 1000
	}
	if cfg.Generation.Temperature == nil {
		t := float32(0.7)
		cfg.Generation.Temperature = &t
	}
	if cfg.Upload.Extensions == nil {
		cfg.Upload.Extensions = []string{".pdf"}
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 32 << 20
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".odt", ".rtf"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
