package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/vector"
	"go.uber.org/zap"
)

// ErrNoChunks is returned when there is nothing to build an index from.
var ErrNoChunks = errors.New("no chunks to index")

// Builder embeds chunks and inserts their vectors into a fresh index in input order,
// so vector position p always belongs to chunk p.
type Builder struct {
	embedder embedding.Embedder
	newIndex func() (vector.Index, error)
	logger   *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderLogger sets the builder's logger.
func WithBuilderLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder returns a builder that embeds with embedder and stores vectors in
// indexes created by newIndex.
func NewBuilder(embedder embedding.Embedder, newIndex func() (vector.Index, error), opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder: embedder,
		newIndex: newIndex,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build embeds every chunk and returns the index with the metadata sequence that
// describes it. The metadata is a copy of chunks in identical order. Any embedding
// failure aborts the build and no index is returned.
func (b *Builder) Build(ctx context.Context, chunks []models.Chunk) (vector.Index, []models.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil, ErrNoChunks
	}
	start := time.Now()

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", embedding.ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(chunks) {
		return nil, nil, fmt.Errorf("%w: got %d vectors for %d chunks", embedding.ErrEmbeddingFailed, len(vectors), len(chunks))
	}

	idx, err := b.newIndex()
	if err != nil {
		return nil, nil, fmt.Errorf("create vector index: %w", err)
	}
	if err := idx.Add(ctx, vectors); err != nil {
		_ = idx.Close()
		return nil, nil, fmt.Errorf("add vectors: %w", err)
	}
	if idx.Size() != len(chunks) {
		_ = idx.Close()
		return nil, nil, fmt.Errorf("index holds %d vectors after adding %d", idx.Size(), len(chunks))
	}

	metadata := make([]models.Chunk, len(chunks))
	copy(metadata, chunks)

	b.logger.Info("vector index built",
		zap.Int("chunks", len(chunks)),
		zap.String("index_type", idx.Type()),
		zap.Int("dimensions", idx.Dimensions()),
		zap.Duration("took", time.Since(start)),
	)
	return idx, metadata, nil
}
