package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/server"
	"github.com/hyperjump/shiraberu/internal/storage"
)

func sampleResponse() *models.SearchResponse {
	results := []models.RetrievalResult{
		{Chunk: models.Chunk{ChunkID: "0_pdf:policy.pdf", Text: "Claims must be filed\nwithin 30 days.", Source: "pdf:policy.pdf", DocType: models.DocTypePDF}, Similarity: 0.8123},
		{Chunk: models.Chunk{ChunkID: "2_markdown:faq.md", Text: "Premiums are paid monthly.", Source: "markdown:faq.md", DocType: models.DocTypeMarkdown, ChunkIndex: 2}, Similarity: 0.5},
	}
	return &models.SearchResponse{Query: "claims", K: 5, Threshold: 0.2, Results: results, Total: 2, QueryTime: 7}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]SearchOutputFormat{"": OutputText, "text": OutputText, "JSON": OutputJSON, " compact ": OutputCompact} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != "claims" || len(decoded.Results) != 2 || decoded.Results[0].ChunkID != "0_pdf:policy.pdf" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results in 7ms", "Rank: 1 | Similarity: 0.8123", "Source: markdown:faq.md (chunk 2)", "Premiums are paid monthly.", "Sources: pdf:policy.pdf, markdown:faq.md"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_textEmpty(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteSearchResults(&buf, &models.SearchResponse{Query: "x", K: 3, Results: []models.RetrievalResult{}}, OutputText)
	if !strings.Contains(buf.String(), "No chunk was similar enough") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteSearchResults_compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one line per result, got %q", buf.String())
	}
	if lines[0] != "1\t0.8123\t0_pdf:policy.pdf\tClaims must be filed within 30 days." {
		t.Errorf("line 0 = %q", lines[0])
	}
}

func TestWriteChunkSpans(t *testing.T) {
	var buf bytes.Buffer
	WriteChunkSpans(&buf, "notes.txt", []ChunkSpan{{Index: 0, Start: 0, End: 4, Text: "ABCD"}, {Index: 1, Start: 3, End: 7, Text: "DEFG"}})
	want := "notes.txt: 2 chunks\n[0] 0-4 \"ABCD\"\n[1] 3-7 \"DEFG\"\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteStatus(t *testing.T) {
	loadedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	status := &server.StatusResponse{
		Loaded: true, Chunks: 12, IndexType: "flat", Dimensions: 384, LoadedAt: &loadedAt,
		Documents: 3, KeywordDocs: 12, DiskUsageBytes: 2048,
		LatestRun: &storage.IngestRun{ID: "run-1", Documents: 3, Chunks: 12, StartedAt: loadedAt, FinishedAt: loadedAt.Add(1500 * time.Millisecond)},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"flat, 12 chunks, 384 dimensions", "2026-01-02T03:04:05Z", "run-1 (3 documents, 12 chunks, 1.5s)", "2.0 KiB"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	_ = WriteStatus(&buf, &server.StatusResponse{}, OutputCompact)
	if buf.String() != "loaded=false chunks=0 documents=0 index= disk=0 B\n" {
		t.Errorf("compact = %q", buf.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KiB", 1536: "1.5 KiB", 5 << 20: "5.0 MiB"}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
