// Package storage persists the retrieval artifacts (vector index plus chunk
// metadata) and keeps a SQLite catalog describing each ingest run.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/shiraberu/internal/models"
)

// IngestRun describes one completed ingestion.
type IngestRun struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	IndexType  string    `json:"index_type"`
}

// DocumentEntry is the catalog's view of an ingested document.
type DocumentEntry struct {
	ID            string         `json:"id"`
	Source        string         `json:"source"`
	DocType       models.DocType `json:"doc_type"`
	ContentLength int            `json:"content_length"`
	Chunks        int            `json:"chunks"`
	RunID         string         `json:"run_id"`
}

// Catalog records what the current artifact pair was built from.
type Catalog interface {
	// ReplaceRun swaps the catalog contents for a new run in one transaction.
	// chunks must be in index position order.
	ReplaceRun(ctx context.Context, run IngestRun, docs []models.Document, chunks []models.Chunk) error
	LatestRun(ctx context.Context) (*IngestRun, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]DocumentEntry, error)
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	Close() error
}
