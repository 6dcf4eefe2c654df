// Package indexer turns documents into the retrieval artifacts: it chunks text,
// embeds every chunk into a positional vector index and persists the pair.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/shiraberu/internal/keyword"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/storage"
	"go.uber.org/zap"
)

// ErrNoSources is returned by IngestSources when nothing is configured to ingest.
var ErrNoSources = errors.New("no ingest sources configured")

// IngestReport summarizes a completed ingestion.
type IngestReport struct {
	RunID     string        `json:"run_id"`
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	IndexType string        `json:"index_type"`
	Duration  time.Duration `json:"duration"`
	// Warnings lists secondary store refreshes that failed. The artifacts are
	// saved regardless.
	Warnings []string `json:"warnings,omitempty"`
}

// Sources names where IngestSources reads documents from.
type Sources struct {
	RawDocumentsPath string
	Dirs             []string
	Extensions       []string
}

// Indexer runs the ingest pipeline. Ingestions are serialized.
type Indexer struct {
	chunker   *Chunker
	builder   *Builder
	store     *storage.ArtifactStore
	catalog   storage.Catalog
	keyword   keyword.KeywordIndex
	loader    *Loader
	sources   Sources
	normalize bool
	logger    *zap.Logger
	mu        sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithCatalog records each run in c after the artifacts are saved.
func WithCatalog(c storage.Catalog) IndexerOption {
	return func(idx *Indexer) { idx.catalog = c }
}

// WithKeywordIndex rebuilds k from each run's chunks after the artifacts are saved.
func WithKeywordIndex(k keyword.KeywordIndex) IndexerOption {
	return func(idx *Indexer) { idx.keyword = k }
}

// WithSources sets what IngestSources loads, read through l.
func WithSources(l *Loader, s Sources) IndexerOption {
	return func(idx *Indexer) {
		idx.loader = l
		idx.sources = s
	}
}

// WithNormalizeWhitespace collapses whitespace runs in document content before chunking.
func WithNormalizeWhitespace(on bool) IndexerOption {
	return func(idx *Indexer) { idx.normalize = on }
}

// NewIndexer creates an indexer that writes artifacts to store.
func NewIndexer(chunker *Chunker, builder *Builder, store *storage.ArtifactStore, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		chunker: chunker,
		builder: builder,
		store:   store,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest chunks docs in order, builds the vector index and saves the artifact
// pair. Chunk positions follow document order then chunk order. On any error
// before the save completes the previous artifacts are left untouched.
func (idx *Indexer) Ingest(ctx context.Context, docs []models.Document) (*IngestReport, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	started := time.Now()
	runID := uuid.New().String()
	logger := idx.logger.With(zap.String("run_id", runID))

	if idx.normalize {
		docs = slices.Clone(docs)
		for i := range docs {
			docs[i].Content = Preprocess(docs[i].Content)
		}
	}
	var chunks []models.Chunk
	for _, doc := range docs {
		docChunks, err := idx.chunker.ChunkDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", doc.QualifiedSource(), err)
		}
		chunks = append(chunks, docChunks...)
	}
	logger.Info("documents chunked",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", idx.chunker.Size()),
		zap.Int("chunk_overlap", idx.chunker.Overlap()),
	)

	vecIndex, metadata, err := idx.builder.Build(ctx, chunks)
	if err != nil {
		return nil, err
	}
	defer vecIndex.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := idx.store.Save(vecIndex, metadata); err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}

	report := &IngestReport{
		RunID:     runID,
		Documents: len(docs),
		Chunks:    len(metadata),
		IndexType: vecIndex.Type(),
	}
	run := storage.IngestRun{
		ID:         runID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Documents:  report.Documents,
		Chunks:     report.Chunks,
		IndexType:  report.IndexType,
	}
	if idx.catalog != nil {
		if err := idx.catalog.ReplaceRun(ctx, run, docs, metadata); err != nil {
			logger.Error("catalog refresh failed", zap.Error(err))
			report.Warnings = append(report.Warnings, "catalog: "+err.Error())
		}
	}
	if idx.keyword != nil {
		if err := idx.keyword.Rebuild(ctx, metadata); err != nil {
			logger.Error("keyword index refresh failed", zap.Error(err))
			report.Warnings = append(report.Warnings, "keyword index: "+err.Error())
		}
	}

	report.Duration = time.Since(started)
	logger.Info("ingest complete",
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Duration("took", report.Duration),
	)
	return report, nil
}

// IngestSources loads the configured raw document dump and source directories,
// in that order, and ingests the result.
func (idx *Indexer) IngestSources(ctx context.Context) (*IngestReport, error) {
	docs, err := idx.LoadSources(idx.sources)
	if err != nil {
		return nil, err
	}
	return idx.Ingest(ctx, docs)
}

// LoadSources reads documents from s without ingesting them.
func (idx *Indexer) LoadSources(s Sources) ([]models.Document, error) {
	if s.RawDocumentsPath == "" && len(s.Dirs) == 0 {
		return nil, ErrNoSources
	}
	loader := idx.loader
	if loader == nil {
		loader = NewLoader(nil, idx.logger)
	}
	var docs []models.Document
	if s.RawDocumentsPath != "" {
		raw, err := loader.LoadRawDocuments(s.RawDocumentsPath)
		if err != nil {
			return nil, err
		}
		docs = append(docs, raw...)
	}
	for _, dir := range s.Dirs {
		loaded, err := loader.LoadDirectory(dir, s.Extensions)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", dir, err)
		}
		docs = append(docs, loaded...)
	}
	return docs, nil
}
