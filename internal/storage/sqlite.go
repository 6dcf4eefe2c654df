package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shiraberu/internal/fileid"
	"github.com/hyperjump/shiraberu/internal/models"
)

// ErrNoRuns is returned by LatestRun before the first ingestion.
var ErrNoRuns = errors.New("no ingest runs recorded")

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		documents INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		index_type TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON ingest_runs(finished_at);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		doc_type TEXT NOT NULL,
		content_length INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		run_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);

	CREATE TABLE IF NOT EXISTS chunks (
		position INTEGER PRIMARY KEY,
		chunk_id TEXT NOT NULL,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		length INTEGER NOT NULL,
		run_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceRun records run and replaces all document and chunk rows with the new ones.
// Duplicate sources are collapsed into a single document row.
func (s *SQLiteCatalog) ReplaceRun(ctx context.Context, run IngestRun, docs []models.Document, chunks []models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, started_at, finished_at, documents, chunks, index_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Documents, run.Chunks, run.IndexType,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	perSource := make(map[string]int, len(docs))
	for _, ch := range chunks {
		perSource[ch.Source]++
	}

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents (id, source, doc_type, content_length, chunks, run_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer docStmt.Close()
	for _, doc := range docs {
		source := doc.QualifiedSource()
		if _, err := docStmt.ExecContext(ctx,
			fileid.FromSource(source), source, string(doc.Type), len([]rune(doc.Content)), perSource[source], run.ID,
		); err != nil {
			return fmt.Errorf("insert document %s: %w", source, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (position, chunk_id, source, chunk_index, length, run_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()
	for pos, ch := range chunks {
		if _, err := chunkStmt.ExecContext(ctx,
			pos, ch.ChunkID, ch.Source, ch.ChunkIndex, len([]rune(ch.Text)), run.ID,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", ch.ChunkID, err)
		}
	}
	return tx.Commit()
}

// LatestRun returns the most recently finished run.
func (s *SQLiteCatalog) LatestRun(ctx context.Context) (*IngestRun, error) {
	var run IngestRun
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, documents, chunks, index_type
		 FROM ingest_runs ORDER BY finished_at DESC LIMIT 1`,
	).Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Documents, &run.Chunks, &run.IndexType)
	if err == sql.ErrNoRows {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListDocuments returns catalog documents ordered by source.
func (s *SQLiteCatalog) ListDocuments(ctx context.Context, offset, limit int) ([]DocumentEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, doc_type, content_length, chunks, run_id
		 FROM documents ORDER BY source LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []DocumentEntry
	for rows.Next() {
		var d DocumentEntry
		var docType string
		if err := rows.Scan(&d.ID, &d.Source, &docType, &d.ContentLength, &d.Chunks, &d.RunID); err != nil {
			return nil, err
		}
		d.DocType = models.DocType(docType)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of documents in the current run.
func (s *SQLiteCatalog) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the number of chunks in the current run.
func (s *SQLiteCatalog) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}
