package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/shiraberu/internal/config"
	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/extract"
	"github.com/hyperjump/shiraberu/internal/indexer"
	"github.com/hyperjump/shiraberu/internal/keyword"
	"github.com/hyperjump/shiraberu/internal/search"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Embedder embedding.Embedder
	Store    *storage.ArtifactStore
	NewIndex func() (vector.Index, error)
	Catalog  *storage.SQLiteCatalog
	Keyword  *keyword.BleveIndex
	Indexer  *indexer.Indexer
	Holder   *search.Holder
}

// Close releases the embedder, the secondary stores and the published index.
func (c *Components) Close() {
	if c.Holder != nil {
		if svc := c.Holder.Swap(nil); svc != nil {
			_ = svc.Close()
		}
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// initializeComponents wires the pipeline from cfg. withStores opens the SQLite
// catalog and Bleve index; commands that only read the artifacts skip them so
// they do not contend with a running server for the Bleve lock.
func initializeComponents(cfg *config.Config, logger *zap.Logger, withStores bool) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger}

	emb, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = emb

	indexType := vector.IndexType(cfg.Vector.IndexType)
	if indexType == vector.IndexTypeFAISS && !vector.IsFAISSAvailable() {
		c.Close()
		return nil, fmt.Errorf("vector index type %q requires a build with -tags=faiss", indexType)
	}
	c.NewIndex = vector.Factory(indexType, cfg.Embedding.Dimensions)
	c.Store = storage.NewArtifactStore(cfg.Storage.IndexPath, cfg.Storage.MetadataPath)

	idxOpts := []indexer.IndexerOption{
		indexer.WithLogger(logger),
		indexer.WithNormalizeWhitespace(cfg.Ingest.NormalizeWhitespace),
		indexer.WithSources(indexer.NewLoader(extract.NewExtractor(), logger), indexer.Sources{
			RawDocumentsPath: cfg.Ingest.RawDocumentsPath,
			Dirs:             cfg.Ingest.SourceDirs,
			Extensions:       cfg.Ingest.Extensions,
		}),
	}
	if withStores {
		catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize catalog: %w", err)
		}
		c.Catalog = catalog
		kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
		}
		c.Keyword = kw
		idxOpts = append(idxOpts, indexer.WithCatalog(catalog), indexer.WithKeywordIndex(kw))
	}

	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap())
	if err != nil {
		c.Close()
		return nil, err
	}
	builder := indexer.NewBuilder(emb, c.NewIndex, indexer.WithBuilderLogger(logger))
	c.Indexer = indexer.NewIndexer(chunker, builder, c.Store, idxOpts...)

	c.Holder = search.NewHolder(func(context.Context) (*search.Service, error) {
		start := time.Now()
		svc, err := search.LoadService(c.Store, c.NewIndex, emb, search.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		logger.Info("artifacts loaded",
			zap.Int("chunks", svc.Size()),
			zap.String("index_type", svc.IndexType()),
			zap.Duration("took", time.Since(start)),
		)
		return svc, nil
	}, logger)

	logger.Info("components initialized",
		zap.String("index_type", string(indexType)),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()),
		zap.Bool("secondary_stores", withStores),
	)
	return c, nil
}
