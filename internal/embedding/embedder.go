// Package embedding turns text into fixed-dimension vectors. Providers are ONNX
// (in-process), Ollama (HTTP) and a deterministic mock for tests.
package embedding

import (
	"context"
	"errors"
)

// ErrEmbeddingFailed wraps any provider failure while embedding chunks or queries.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Embedder produces vector embeddings for text. The same model must embed
// both the indexed chunks and the queries searched against them.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// embedEach implements EmbedBatch for providers without a native batch call.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
