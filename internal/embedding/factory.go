package embedding

import (
	"fmt"
	"time"

	"github.com/hyperjump/shiraberu/internal/config"
	"go.uber.org/zap"
)

// New builds the embedder selected by cfg.Provider and wraps it in an LRU cache.
// A provider that fails to start is reported, never replaced: vectors from
// different models are not comparable with an existing index.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		inner Embedder
		err   error
	)
	switch cfg.Provider {
	case "onnx", "":
		inner, err = newONNX(cfg)
	case "ollama":
		timeout := time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second
		inner = NewOllamaEmbedder(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Dimensions, timeout)
	case "mock":
		logger.Warn("using mock embedder; results carry no semantic meaning")
		inner = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.Int("dimensions", inner.Dimensions()),
		zap.Int("cache_size", cfg.CacheSize),
	)
	if cfg.CacheSize <= 0 {
		return inner, nil
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newONNX(cfg config.EmbeddingConfig) (Embedder, error) {
	e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("onnx embedder (%s): %w", cfg.ModelPath, err)
	}
	return e, nil
}
