package models

import (
	"errors"
	"math"
	"testing"
)

func ptr(f float64) *float64 { return &f }

func TestSearchQuery_Validate(t *testing.T) {
	defaults := QueryDefaults{K: 5, MaxK: 100, Threshold: 0.2}
	tests := []struct {
		name          string
		query         *SearchQuery
		wantErr       bool
		wantK         int
		wantThreshold float64
	}{
		{"empty query", &SearchQuery{Query: ""}, true, 0, 0},
		{"blank query", &SearchQuery{Query: "   "}, true, 0, 0},
		{"sets default k and threshold", &SearchQuery{Query: "x"}, false, 5, 0.2},
		{"caps k at max", &SearchQuery{Query: "x", K: 500}, false, 100, 0.2},
		{"keeps explicit zero threshold", &SearchQuery{Query: "x", Threshold: ptr(0)}, false, 5, 0},
		{"keeps explicit one threshold", &SearchQuery{Query: "x", Threshold: ptr(1)}, false, 5, 1},
		{"rejects negative threshold", &SearchQuery{Query: "x", Threshold: ptr(-0.1)}, true, 0, 0},
		{"rejects threshold above one", &SearchQuery{Query: "x", Threshold: ptr(1.5)}, true, 0, 0},
		{"rejects NaN threshold", &SearchQuery{Query: "x", Threshold: ptr(math.NaN())}, true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(defaults)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidQuery) {
					t.Errorf("error should wrap ErrInvalidQuery: %v", err)
				}
				return
			}
			if tt.query.K != tt.wantK {
				t.Errorf("K = %d, want %d", tt.query.K, tt.wantK)
			}
			if tt.query.ThresholdValue() != tt.wantThreshold {
				t.Errorf("Threshold = %v, want %v", tt.query.ThresholdValue(), tt.wantThreshold)
			}
		})
	}
}

func TestSearchQuery_ValidateTrims(t *testing.T) {
	q := &SearchQuery{Query: "  claim process  "}
	if err := q.Validate(QueryDefaults{K: 5, Threshold: 0.2}); err != nil {
		t.Fatal(err)
	}
	if q.Query != "claim process" {
		t.Errorf("Query = %q", q.Query)
	}
}

func TestDocument_QualifiedSource(t *testing.T) {
	d := Document{Source: "policy.pdf", Type: DocTypePDF}
	if got := d.QualifiedSource(); got != "pdf:policy.pdf" {
		t.Errorf("QualifiedSource() = %q", got)
	}
	if got := (Document{Source: "raw"}).QualifiedSource(); got != "raw" {
		t.Errorf("untyped QualifiedSource() = %q", got)
	}
}

func TestSearchResponse_Sources(t *testing.T) {
	r := &SearchResponse{Results: []RetrievalResult{
		{Chunk: Chunk{Source: "pdf:a"}},
		{Chunk: Chunk{Source: "pdf:b"}},
		{Chunk: Chunk{Source: "pdf:a"}},
	}}
	got := r.Sources()
	if len(got) != 2 || got[0] != "pdf:a" || got[1] != "pdf:b" {
		t.Errorf("Sources() = %v", got)
	}
}
