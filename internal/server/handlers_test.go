package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shiraberu/internal/config"
	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/indexer"
	"github.com/hyperjump/shiraberu/internal/keyword"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/search"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dims = 16

type fixture struct {
	srv      *Server
	handler  http.Handler
	holder   *search.Holder
	indexer  *indexer.Indexer
	embedder embedding.Embedder
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	threshold := 0.0
	overlap := 5
	cfg := &config.Config{
		Storage: config.StorageConfig{
			IndexPath:        filepath.Join(dir, "index", "docs.index"),
			MetadataPath:     filepath.Join(dir, "index", "chunks.json"),
			CatalogPath:      filepath.Join(dir, "db", "catalog.db"),
			KeywordIndexPath: filepath.Join(dir, "bleve"),
		},
		Embedding: config.EmbeddingConfig{Provider: "mock", Dimensions: dims},
		Vector:    config.VectorConfig{IndexType: "flat"},
		Chunking:  config.ChunkingConfig{ChunkSize: 40, ChunkOverlap: &overlap},
		Retrieval: config.RetrievalConfig{DefaultK: 3, MaxK: 10, DefaultThreshold: &threshold},
	}

	catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })
	kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kw.Close() })

	emb := embedding.NewMockEmbedder(dims)
	store := storage.NewArtifactStore(cfg.Storage.IndexPath, cfg.Storage.MetadataPath)
	newIndex := vector.Factory(vector.IndexTypeFlat, dims)
	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap())
	require.NoError(t, err)
	ix := indexer.NewIndexer(chunker, indexer.NewBuilder(emb, newIndex), store,
		indexer.WithCatalog(catalog), indexer.WithKeywordIndex(kw))

	holder := search.NewHolder(func(context.Context) (*search.Service, error) {
		return search.LoadService(store, newIndex, emb)
	}, nil)
	srv := NewServer(holder, catalog, kw, cfg, nil)
	return &fixture{srv: srv, handler: srv.Handler(), holder: holder, indexer: ix, embedder: emb, cfg: cfg}
}

func (f *fixture) ingest(t *testing.T, docs ...models.Document) {
	t.Helper()
	_, err := f.indexer.Ingest(context.Background(), docs)
	require.NoError(t, err)
	require.NoError(t, f.holder.Reload(context.Background()))
}

func sampleDocs() []models.Document {
	return []models.Document{
		{Source: "policy.pdf", Content: "The claim must be filed within thirty days of the incident date.", Type: models.DocTypePDF},
		{Source: "faq.md", Content: "Premiums can be paid monthly or annually through the portal.", Type: models.DocTypeMarkdown},
	}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"loading"}`, rec.Body.String())

	f.ingest(t, sampleDocs()...)
	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleSearch(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, sampleDocs()...)

	rec := f.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "claim deadline", "k": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "claim deadline", resp.Query)
	assert.Equal(t, 2, resp.K)
	assert.Equal(t, 0.0, resp.Threshold)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, len(resp.Results), resp.Total)
	require.NotNil(t, resp.Debug)
	assert.Equal(t, resp.Total, resp.Debug.NumChunksRetrieved)
	assert.GreaterOrEqual(t, resp.Results[0].Similarity, resp.Results[1].Similarity)
}

func TestHandleSearch_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "anything"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.ingest(t, sampleDocs()...)
	tests := []struct {
		name string
		body any
	}{
		{"malformed json", "{not json"},
		{"blank query", map[string]any{"query": "  "}},
		{"threshold above one", map[string]any{"query": "x", "threshold": 2}},
		{"negative threshold", map[string]any{"query": "x", "threshold": -0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestHandleSearch_EmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, sampleDocs()...)

	store := storage.NewArtifactStore(f.cfg.Storage.IndexPath, f.cfg.Storage.MetadataPath)
	failing := &embedding.FailingEmbedder{Dims: dims, Err: errors.New("provider down")}
	svc, err := search.LoadService(store, vector.Factory(vector.IndexTypeFlat, dims), failing)
	require.NoError(t, err)
	f.holder.Swap(svc)

	rec := f.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "claim"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleReload(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/reload", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "reload without artifacts must fail")
	assert.Nil(t, f.holder.Current())

	f.ingest(t, sampleDocs()[:1]...)
	before := f.holder.Current().Size()

	_, err := f.indexer.Ingest(context.Background(), sampleDocs())
	require.NoError(t, err)
	assert.Equal(t, before, f.holder.Current().Size(), "ingest alone must not change the served index")

	rec = f.do(t, http.MethodPost, "/api/v1/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Greater(t, f.holder.Current().Size(), before)
}

func TestHandleStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.False(t, status.Loaded)
	assert.Nil(t, status.LatestRun)

	f.ingest(t, sampleDocs()...)
	rec = f.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status = StatusResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.True(t, status.Loaded)
	assert.Equal(t, "flat", status.IndexType)
	assert.Equal(t, dims, status.Dimensions)
	assert.EqualValues(t, 2, status.Documents)
	assert.EqualValues(t, status.Chunks, status.KeywordDocs)
	require.NotNil(t, status.LatestRun)
	assert.Equal(t, status.Chunks, status.LatestRun.Chunks)
	assert.Positive(t, status.DiskUsageBytes)
	assert.EqualValues(t, 40, status.Config["chunk_size"])
}

func TestHandleListDocuments(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, sampleDocs()...)

	rec := f.do(t, http.MethodGet, "/api/v1/documents?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Documents []storage.DocumentEntry `json:"documents"`
		Total     int64                   `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Documents, 1)
	assert.Equal(t, "markdown:faq.md", page.Documents[0].Source)

	for _, q := range []string{"?limit=0", "?limit=x", "?offset=-1"} {
		rec := f.do(t, http.MethodGet, "/api/v1/documents"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestHandleKeyword(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, sampleDocs()...)

	rec := f.do(t, http.MethodGet, "/api/v1/keyword?q=premiums", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Hits []KeywordHit `json:"hits"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.NotEmpty(t, out.Hits)
	assert.Equal(t, "markdown:faq.md", out.Hits[0].Source)
	assert.Contains(t, out.Hits[0].Text, "Premiums")

	rec = f.do(t, http.MethodGet, "/api/v1/keyword", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptionalStoresDisabled(t *testing.T) {
	f := newFixture(t)
	srv := NewServer(f.holder, nil, nil, f.cfg, nil)
	h := srv.Handler()
	for _, target := range []string{"/api/v1/documents", "/api/v1/keyword?q=x"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNotImplemented, rec.Code, target)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(models.ErrInvalidQuery))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(search.ErrNotLoaded))
	assert.Equal(t, http.StatusBadGateway, statusFor(errors.Join(embedding.ErrEmbeddingFailed, errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}
