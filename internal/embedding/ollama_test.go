package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func ollamaServer(t *testing.T, dims int, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if status != http.StatusOK {
			http.Error(w, "model not found", status)
			return
		}
		emb := make([]float64, dims)
		for i := range emb {
			emb[i] = float64(len(req.Prompt) + i)
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: emb})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := ollamaServer(t, 4, http.StatusOK)
	e := NewOllamaEmbedder(srv.URL+"/", "test-model", 4, time.Second)

	emb, err := e.Embed(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{3, 4, 5, 6}
	for i := range want {
		if emb[i] != want[i] {
			t.Fatalf("embedding = %v, want %v", emb, want)
		}
	}

	batch, err := e.EmbedBatch(context.Background(), []string{"a", "bb"})
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 || batch[0][0] != 1 || batch[1][0] != 2 {
		t.Errorf("batch results out of order: %v", batch)
	}
}

func TestOllamaEmbedder_Errors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := ollamaServer(t, 4, http.StatusNotFound)
		e := NewOllamaEmbedder(srv.URL, "missing", 4, time.Second)
		_, err := e.Embed(context.Background(), "x")
		if err == nil || !strings.Contains(err.Error(), "status 404") {
			t.Errorf("expected status error, got %v", err)
		}
	})
	t.Run("dimension mismatch", func(t *testing.T) {
		srv := ollamaServer(t, 3, http.StatusOK)
		e := NewOllamaEmbedder(srv.URL, "m", 4, time.Second)
		if _, err := e.Embed(context.Background(), "x"); err == nil {
			t.Error("expected dimension error")
		}
	})
	t.Run("canceled context", func(t *testing.T) {
		srv := ollamaServer(t, 4, http.StatusOK)
		e := NewOllamaEmbedder(srv.URL, "m", 4, time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := e.EmbedBatch(ctx, []string{"x"}); err == nil {
			t.Error("expected context error")
		}
	})
}
