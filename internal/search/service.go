// Package search answers retrieval queries against a loaded vector index and
// its positionally aligned chunk metadata.
package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vector"
	"github.com/hyperjump/shiraberu/pkg/utils"
	"go.uber.org/zap"
)

// OversampleFactor is how many candidates per requested result are fetched
// from the index before threshold filtering.
const OversampleFactor = 3

const previewRunes = 100

// Service is an immutable retrieval context: an index, the metadata describing
// each index position, and the embedder used to build the index. It is safe for
// concurrent use.
type Service struct {
	index    vector.Index
	chunks   []models.Chunk
	embedder embedding.Embedder
	logger   *zap.Logger
	loadedAt time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a logger for retrieval diagnostics.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService checks that idx and chunks are aligned and that embedder produces
// vectors of the index dimension.
func NewService(idx vector.Index, chunks []models.Chunk, embedder embedding.Embedder, opts ...ServiceOption) (*Service, error) {
	if idx == nil || embedder == nil {
		return nil, fmt.Errorf("search service requires an index and an embedder")
	}
	if idx.Size() != len(chunks) {
		return nil, fmt.Errorf("%w: index has %d vectors, metadata has %d chunks", storage.ErrMisaligned, idx.Size(), len(chunks))
	}
	if idx.Dimensions() != embedder.Dimensions() {
		return nil, fmt.Errorf("embedder produces %d dimensions, index holds %d", embedder.Dimensions(), idx.Dimensions())
	}
	s := &Service{
		index:    idx,
		chunks:   chunks,
		embedder: embedder,
		logger:   zap.NewNop(),
		loadedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoadService loads the artifact pair from store and wraps it in a Service.
func LoadService(store *storage.ArtifactStore, newIndex func() (vector.Index, error), embedder embedding.Embedder, opts ...ServiceOption) (*Service, error) {
	idx, chunks, err := store.Load(newIndex)
	if err != nil {
		return nil, err
	}
	svc, err := NewService(idx, chunks, embedder, opts...)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	return svc, nil
}

// Search returns up to k chunks whose similarity to query is at least threshold,
// most similar first. An empty result is not an error.
func (s *Service) Search(ctx context.Context, query string, k int, threshold float64) ([]models.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidQuery, k)
	}
	if !(threshold >= 0 && threshold <= 1) {
		return nil, fmt.Errorf("%w: threshold %v outside [0,1]", models.ErrInvalidQuery, threshold)
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbeddingFailed, err)
	}

	// k*OversampleFactor can exceed the corpus, or overflow, for large k.
	total := len(s.chunks)
	kInit := total
	if k <= total/OversampleFactor {
		kInit = k * OversampleFactor
	}
	if kInit == 0 {
		return []models.RetrievalResult{}, nil
	}
	neighbors, err := s.index.Search(ctx, qvec, kInit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]models.RetrievalResult, 0, min(k, kInit))
	for _, n := range neighbors {
		if n.Position < 0 || n.Position >= len(s.chunks) {
			continue
		}
		sim := vector.DistanceToSimilarity(n.Distance)
		if sim < threshold {
			continue
		}
		results = append(results, models.RetrievalResult{Chunk: s.chunks[n.Position], Similarity: sim})
		if len(results) == k {
			break
		}
	}
	slices.SortStableFunc(results, func(a, b models.RetrievalResult) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(results) > k {
		results = results[:k]
	}

	s.logResults(query, len(neighbors), results)
	return results, nil
}

func (s *Service) logResults(query string, candidates int, results []models.RetrievalResult) {
	if ce := s.logger.Check(zap.DebugLevel, "retrieval"); ce != nil {
		ce.Write(
			zap.String("query", utils.Truncate(query, previewRunes)),
			zap.Int("candidates", candidates),
			zap.Int("kept", len(results)),
		)
	}
	for i, r := range results {
		if i == 2 {
			break
		}
		s.logger.Debug("retrieved chunk",
			zap.Int("rank", i+1),
			zap.Float64("similarity", r.Similarity),
			zap.String("source", r.Source),
			zap.String("preview", utils.Truncate(r.Text, previewRunes)),
		)
	}
}

// Respond validates q against defaults, runs the search and packages the results
// with timing and a debug summary.
func (s *Service) Respond(ctx context.Context, q models.SearchQuery, defaults models.QueryDefaults) (*models.SearchResponse, error) {
	start := time.Now()
	if err := q.Validate(defaults); err != nil {
		return nil, err
	}
	threshold := q.ThresholdValue()
	results, err := s.Search(ctx, q.Query, q.K, threshold)
	if err != nil {
		return nil, err
	}
	resp := &models.SearchResponse{
		Query:     q.Query,
		K:         q.K,
		Threshold: threshold,
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
	}
	resp.Debug = debugInfo(resp)
	return resp, nil
}

func debugInfo(resp *models.SearchResponse) *models.DebugInfo {
	info := &models.DebugInfo{
		NumChunksRetrieved: len(resp.Results),
		SimilarityScores:   []float64{},
		Sources:            []string{},
	}
	// One source per score, duplicates included, so the lists stay paired.
	for _, r := range resp.Results[:min(3, len(resp.Results))] {
		info.SimilarityScores = append(info.SimilarityScores, r.Similarity)
		info.Sources = append(info.Sources, r.Source)
	}
	return info
}

// Size returns the number of indexed chunks.
func (s *Service) Size() int { return len(s.chunks) }

// IndexType returns the vector index implementation name.
func (s *Service) IndexType() string { return s.index.Type() }

// Dimensions returns the vector dimension.
func (s *Service) Dimensions() int { return s.index.Dimensions() }

// LoadedAt returns when the service was constructed.
func (s *Service) LoadedAt() time.Time { return s.loadedAt }

// Chunk returns the chunk at index position p.
func (s *Service) Chunk(p int) (models.Chunk, bool) {
	if p < 0 || p >= len(s.chunks) {
		return models.Chunk{}, false
	}
	return s.chunks[p], true
}

// Close releases the index. The embedder is owned by the caller.
func (s *Service) Close() error {
	return s.index.Close()
}
