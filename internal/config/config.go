// Package config provides configuration loading and structs for the shiraberu server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the artifact pair and the secondary stores.
type StorageConfig struct {
	IndexPath        string `yaml:"index_path"`
	MetadataPath     string `yaml:"metadata_path"`
	CatalogPath      string `yaml:"catalog_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string       `yaml:"provider"`
	ModelPath  string       `yaml:"model_path"`
	Dimensions int          `yaml:"dimensions"`
	MaxTokens  int          `yaml:"max_tokens"`
	CacheSize  int          `yaml:"cache_size"`
	Ollama     OllamaConfig `yaml:"ollama"`
}

// OllamaConfig holds settings for the Ollama HTTP embedding provider.
type OllamaConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// VectorConfig selects the vector index implementation ("flat" or "faiss").
type VectorConfig struct {
	IndexType string `yaml:"index_type"`
}

// ChunkingConfig holds the fixed-window chunking parameters.
// ChunkOverlap is a pointer so an explicit 0 is kept.
type ChunkingConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap"`
}

// Overlap returns the configured overlap, or 0 when unset.
func (c ChunkingConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return 0
	}
	return *c.ChunkOverlap
}

// RetrievalConfig holds query defaults.
type RetrievalConfig struct {
	DefaultK         int      `yaml:"default_k"`
	MaxK             int      `yaml:"max_k"`
	DefaultThreshold *float64 `yaml:"default_threshold"`
}

// Threshold returns the configured default threshold, or 0 when unset.
func (r RetrievalConfig) Threshold() float64 {
	if r.DefaultThreshold == nil {
		return 0
	}
	return *r.DefaultThreshold
}

// IngestConfig describes where documents come from.
type IngestConfig struct {
	SourceDirs          []string `yaml:"source_dirs"`
	RawDocumentsPath    string   `yaml:"raw_documents_path"`
	Extensions          []string `yaml:"extensions"`
	NormalizeWhitespace bool     `yaml:"normalize_whitespace"`
}

// WatchConfig holds source directory watch settings.
type WatchConfig struct {
	Enabled    bool  `yaml:"enabled"`
	DebounceMS int   `yaml:"debounce_ms"`
	Recursive  *bool `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, expands paths and validates.
// Returns an error if the file cannot be read or parsed, or if the result is invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.MetadataPath = expandPath(cfg.Storage.MetadataPath, configDir)
	cfg.Storage.CatalogPath = expandPath(cfg.Storage.CatalogPath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Ingest.RawDocumentsPath != "" {
		cfg.Ingest.RawDocumentsPath = expandPath(cfg.Ingest.RawDocumentsPath, configDir)
	}
	for i := range cfg.Ingest.SourceDirs {
		cfg.Ingest.SourceDirs[i] = expandPath(cfg.Ingest.SourceDirs[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration values the engine cannot run with.
func (c *Config) Validate() error {
	size, overlap := c.Chunking.ChunkSize, c.Chunking.Overlap()
	if size <= 0 {
		return fmt.Errorf("invalid config: chunking.chunk_size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("invalid config: chunking.chunk_overlap must be in [0, %d), got %d", size, overlap)
	}
	if c.Retrieval.DefaultK <= 0 {
		return fmt.Errorf("invalid config: retrieval.default_k must be positive, got %d", c.Retrieval.DefaultK)
	}
	if c.Retrieval.MaxK < c.Retrieval.DefaultK {
		return fmt.Errorf("invalid config: retrieval.max_k (%d) is below default_k (%d)", c.Retrieval.MaxK, c.Retrieval.DefaultK)
	}
	if th := c.Retrieval.Threshold(); th < 0 || th > 1 {
		return fmt.Errorf("invalid config: retrieval.default_threshold must be in [0, 1], got %g", th)
	}
	switch c.Embedding.Provider {
	case "onnx", "ollama", "mock":
	default:
		return fmt.Errorf("invalid config: unknown embedding.provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("invalid config: embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Vector.IndexType {
	case "flat", "faiss":
	default:
		return fmt.Errorf("invalid config: unknown vector.index_type %q", c.Vector.IndexType)
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
