// Package indexer turns documents into chunks, embeds them into a positional
// vector index, and persists the index together with its chunk metadata.
package indexer

import (
	"errors"
	"fmt"
	"iter"

	"github.com/hyperjump/shiraberu/internal/models"
)

// ErrInvalidChunkParams is returned when chunk size or overlap would not make progress.
var ErrInvalidChunkParams = errors.New("invalid chunk parameters")

// ValidateChunkParams requires chunkSize > 0 and 0 <= overlap < chunkSize.
func ValidateChunkParams(chunkSize, overlap int) error {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return fmt.Errorf("%w: chunk_size=%d overlap=%d (need chunk_size > 0 and 0 <= overlap < chunk_size)",
			ErrInvalidChunkParams, chunkSize, overlap)
	}
	return nil
}

// SplitText returns a lazy sequence of fixed-size windows over text, measured in runes.
// Each window after the first repeats the last overlap runes of its predecessor.
// Ranging over the sequence again starts from the beginning.
func SplitText(text string, chunkSize, overlap int) (iter.Seq[string], error) {
	if err := ValidateChunkParams(chunkSize, overlap); err != nil {
		return nil, err
	}
	step := chunkSize - overlap
	return func(yield func(string) bool) {
		runes := []rune(text)
		for start := 0; start < len(runes); start += step {
			end := min(start+chunkSize, len(runes))
			if !yield(string(runes[start:end])) {
				return
			}
			if end == len(runes) {
				return
			}
		}
	}, nil
}

// ChunkText collects SplitText into a slice.
func ChunkText(text string, chunkSize, overlap int) ([]string, error) {
	seq, err := SplitText(text, chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	var chunks []string
	for c := range seq {
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// ChunkID derives the stable identifier of the index-th chunk of source.
func ChunkID(index int, source string) string {
	return fmt.Sprintf("%d_%s", index, source)
}

// Chunker splits documents into overlapping fixed-size chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if err := ValidateChunkParams(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Size returns the chunk size.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the chunk overlap.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// ChunkDocument splits doc.Content into chunks carrying the document's qualified
// source and type. Empty content yields no chunks.
func (c *Chunker) ChunkDocument(doc models.Document) ([]models.Chunk, error) {
	seq, err := SplitText(doc.Content, c.chunkSize, c.chunkOverlap)
	if err != nil {
		return nil, err
	}
	source := doc.QualifiedSource()
	var chunks []models.Chunk
	for text := range seq {
		i := len(chunks)
		chunks = append(chunks, models.Chunk{
			ChunkID:    ChunkID(i, source),
			Text:       text,
			Source:     source,
			DocType:    doc.Type,
			ChunkIndex: i,
		})
	}
	return chunks, nil
}
