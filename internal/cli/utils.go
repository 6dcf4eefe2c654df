// Package cli renders retrieval results and service status for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one result per line.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

const previewRunes = 200

// ParseOutputFormat maps a flag value to a format.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return WriteJSON(w, response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (k=%d, threshold=%.2f)\n\n",
		response.Total, response.QueryTime, response.K, response.Threshold)
	if len(response.Results) == 0 {
		fmt.Fprintln(w, "No chunk was similar enough to the query.")
		return
	}
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Similarity: %.4f\n", i+1, result.Similarity)
		fmt.Fprintf(w, "Source: %s (chunk %d)\n", result.Source, result.ChunkIndex)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(result.Text, previewRunes))
	}
	fmt.Fprintf(w, "Sources: %s\n", strings.Join(response.Sources(), ", "))
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	for i, result := range response.Results {
		text := strings.Join(strings.Fields(result.Text), " ")
		fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", i+1, result.Similarity, result.ChunkID, utils.Truncate(text, 80))
	}
}

// ChunkSpan describes one chunk for the chunk preview command.
type ChunkSpan struct {
	Index int
	Start int
	End   int
	Text  string
}

// WriteChunkSpans prints chunk boundaries in rune offsets.
func WriteChunkSpans(w io.Writer, source string, spans []ChunkSpan) {
	fmt.Fprintf(w, "%s: %d chunks\n", source, len(spans))
	for _, s := range spans {
		preview := strings.Join(strings.Fields(s.Text), " ")
		fmt.Fprintf(w, "[%d] %d-%d %q\n", s.Index, s.Start, s.End, utils.Truncate(preview, 60))
	}
}
