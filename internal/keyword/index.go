// Package keyword provides an operator-facing full-text lookup over indexed chunks.
// It never influences vector retrieval ranking.
package keyword

import (
	"context"

	"github.com/hyperjump/shiraberu/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means exact term matching.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
	// Source restricts hits to one qualified source such as "pdf:report.pdf".
	Source string
}

// KeywordIndex defines keyword lookup operations over chunks.
type KeywordIndex interface {
	// Rebuild replaces the whole index with chunks, keyed by metadata position.
	Rebuild(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]KeywordResult, error)
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	Position int     `json:"position"`
	ChunkID  string  `json:"chunk_id"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
}
