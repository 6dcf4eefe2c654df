package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"github.com/hyperjump/shiraberu/internal/models"
)

const batchSize = 500

// chunkDoc is the Bleve document stored per chunk.
type chunkDoc struct {
	ChunkID string `json:"chunk_id"`
	Source  string `json:"source"`
	DocType string `json:"doc_type"`
	Text    string `json:"text"`
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	path  string
	mu    sync.RWMutex
	index bleve.Index
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "bayes" matches the exact word.
	textFieldMapping.Analyzer = standard.Name
	textFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	storedKeyword := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("chunk_id", storedKeyword)
	docMapping.AddFieldMappingsAt("source", storedKeyword)
	docMapping.AddFieldMappingsAt("doc_type", storedKeyword)

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	index, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &BleveIndex{path: path, index: index}, nil
}

func openOrCreate(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return index, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return index, nil
}

// Rebuild indexes chunks into a fresh index next to the current one and swaps it in.
// Searches keep using the old index until the swap.
func (b *BleveIndex) Rebuild(ctx context.Context, chunks []models.Chunk) error {
	next := b.path + ".next-" + uuid.NewString()
	fresh, err := bleve.New(next, newMapping())
	if err != nil {
		return fmt.Errorf("failed to create Bleve index: %w", err)
	}
	if err := fill(ctx, fresh, chunks); err != nil {
		_ = fresh.Close()
		_ = os.RemoveAll(next)
		return err
	}
	if err := fresh.Close(); err != nil {
		_ = os.RemoveAll(next)
		return fmt.Errorf("close rebuilt index: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index != nil {
		_ = b.index.Close()
		b.index = nil
	}
	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("remove old keyword index: %w", err)
	}
	if err := os.Rename(next, b.path); err != nil {
		return fmt.Errorf("install keyword index: %w", err)
	}
	index, err := bleve.Open(b.path)
	if err != nil {
		return fmt.Errorf("failed to open Bleve index: %w", err)
	}
	b.index = index
	return nil
}

func fill(ctx context.Context, index bleve.Index, chunks []models.Chunk) error {
	batch := index.NewBatch()
	for pos, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := chunkDoc{ChunkID: ch.ChunkID, Source: ch.Source, DocType: string(ch.DocType), Text: ch.Text}
		if err := batch.Index(strconv.Itoa(pos), doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", ch.ChunkID, err)
		}
		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("Bleve batch failed: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve batch failed: %w", err)
		}
	}
	return nil
}

// Search runs a match query over chunk text and returns up to limit hits by score.
// When opts.FuzzyEnabled is true, each term is matched within the configured edit distance.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]KeywordResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var q blevequery.Query
	if opts != nil && opts.FuzzyEnabled {
		fuzziness := opts.Fuzziness
		if fuzziness <= 0 {
			fuzziness = 2
		}
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("text")
		q = mq
	}
	if opts != nil && opts.Source != "" {
		sq := bleve.NewTermQuery(opts.Source)
		sq.SetField("source")
		q = bleve.NewConjunctionQuery(q, sq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"chunk_id", "source"}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, fmt.Errorf("keyword index is closed")
	}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]KeywordResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		r := KeywordResult{Position: pos, Score: hit.Score}
		r.ChunkID, _ = hit.Fields["chunk_id"].(string)
		r.Source, _ = hit.Fields["source"].(string)
		out = append(out, r)
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per query term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField("text")
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, fmt.Errorf("keyword index is closed")
	}
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
