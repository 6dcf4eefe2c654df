package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/storage"
	"github.com/hyperjump/shiraberu/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapEmbedder returns fixed vectors per text.
type mapEmbedder struct {
	dims    int
	vectors map[string][]float32
}

func (m *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := m.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (m *mapEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mapEmbedder) Dimensions() int { return m.dims }
func (m *mapEmbedder) Close() error    { return nil }

// stubIndex returns canned neighbors and records the k it was asked for.
type stubIndex struct {
	dims      int
	size      int
	neighbors []vector.Neighbor
	lastK     int
}

func (s *stubIndex) Add(context.Context, [][]float32) error { return nil }
func (s *stubIndex) Search(_ context.Context, _ []float32, k int) ([]vector.Neighbor, error) {
	s.lastK = k
	return s.neighbors[:min(k, len(s.neighbors))], nil
}
func (s *stubIndex) Save(string) error { return nil }
func (s *stubIndex) Load(string) error { return nil }
func (s *stubIndex) Size() int         { return s.size }
func (s *stubIndex) Dimensions() int   { return s.dims }
func (s *stubIndex) Type() string      { return "stub" }
func (s *stubIndex) Close() error      { return nil }

func chunksN(n int) []models.Chunk {
	out := make([]models.Chunk, n)
	for i := range out {
		src := fmt.Sprintf("pdf:doc%d.pdf", i%4)
		out[i] = models.Chunk{
			ChunkID:    fmt.Sprintf("%d_%s", i, src),
			Text:       fmt.Sprintf("chunk %d", i),
			Source:     src,
			DocType:    models.DocTypePDF,
			ChunkIndex: i,
		}
	}
	return out
}

// lineCorpus places chunk i at (i, 0) and the query "q" at the origin.
func lineCorpus(t *testing.T, n int) *Service {
	t.Helper()
	chunks := chunksN(n)
	emb := &mapEmbedder{dims: 2, vectors: map[string][]float32{"q": {0, 0}, "q-near-1": {1, 0}}}
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = []float32{float32(i), 0}
	}
	idx, err := vector.NewFlatIndex(2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), vecs))
	svc, err := NewService(idx, chunks, emb)
	require.NoError(t, err)
	return svc
}

func assertDescending(t *testing.T, results []models.RetrievalResult) {
	t.Helper()
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity, "results must be sorted by similarity descending")
	}
}

func TestService_SearchOrdersAndBoundsByK(t *testing.T) {
	svc := lineCorpus(t, 10)
	results, err := svc.Search(context.Background(), "q", 4, 0)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assertDescending(t, results)

	// Chunk i sits at squared distance i*i.
	for i, r := range results {
		assert.Equal(t, i, r.ChunkIndex)
		assert.InDelta(t, 1/(1+float64(i*i)), r.Similarity, 1e-9)
	}
}

func TestService_SmallCorpusBoundsResults(t *testing.T) {
	svc := lineCorpus(t, 3)
	results, err := svc.Search(context.Background(), "q", 5, 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestService_HugeKBoundedByCorpus(t *testing.T) {
	svc := lineCorpus(t, 3)
	for _, k := range []int{math.MaxInt / 2, math.MaxInt} {
		results, err := svc.Search(context.Background(), "q", k, 0)
		require.NoError(t, err, "k=%d", k)
		assert.Len(t, results, 3, "k=%d", k)
	}
}

func TestService_ThresholdOneWithoutExactMatchIsEmpty(t *testing.T) {
	svc := lineCorpus(t, 5)
	// "q-near-1" sits on chunk 1 exactly; shift it off the grid.
	emb := &mapEmbedder{dims: 2, vectors: map[string][]float32{"off-grid": {0.5, 0.5}}}
	svc.embedder = emb
	results, err := svc.Search(context.Background(), "off-grid", 3, 1.0)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestService_ThresholdOneWithExactMatch(t *testing.T) {
	svc := lineCorpus(t, 5)
	results, err := svc.Search(context.Background(), "q-near-1", 3, 1.0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.Equal(t, 1.0, results[0].Similarity)
}

func TestService_ThresholdMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n, dims = 60, 8
	chunks := chunksN(n)
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dims)
		for j := range v {
			v[j] = float32(rng.NormFloat64() * 0.4)
		}
		vecs[i] = v
	}
	query := make([]float32, dims)
	emb := &mapEmbedder{dims: dims, vectors: map[string][]float32{"q": query}}
	idx, _ := vector.NewFlatIndex(dims)
	require.NoError(t, idx.Add(context.Background(), vecs))
	svc, err := NewService(idx, chunks, emb)
	require.NoError(t, err)

	for _, k := range []int{1, 5, 20} {
		var prev map[string]bool
		prevLen := -1
		for th := 0.0; th <= 1.0; th += 0.05 {
			results, err := svc.Search(context.Background(), "q", k, th)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(results), k)
			assertDescending(t, results)
			got := make(map[string]bool, len(results))
			for _, r := range results {
				assert.GreaterOrEqual(t, r.Similarity, th)
				got[r.ChunkID] = true
				if prev != nil {
					assert.True(t, prev[r.ChunkID], "k=%d th=%.2f: %s not returned at lower threshold", k, th, r.ChunkID)
				}
			}
			if prevLen >= 0 {
				assert.LessOrEqual(t, len(results), prevLen, "k=%d th=%.2f: raising threshold increased results", k, th)
			}
			prev, prevLen = got, len(results)
		}
	}
}

func TestService_OversamplesAndSkipsOutOfRange(t *testing.T) {
	chunks := chunksN(10)
	idx := &stubIndex{dims: 2, size: 10, neighbors: []vector.Neighbor{
		{Position: 3, Distance: 0},
		{Position: -1, Distance: 0.1},
		{Position: 42, Distance: 0.2},
		{Position: 7, Distance: 0.5},
		{Position: 1, Distance: 1},
		{Position: 2, Distance: 2},
	}}
	emb := &mapEmbedder{dims: 2, vectors: map[string][]float32{"q": {0, 0}}}
	svc, err := NewService(idx, chunks, emb)
	require.NoError(t, err)

	results, err := svc.Search(context.Background(), "q", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.lastK, "k_init should be k*3")
	require.Len(t, results, 2)
	assert.Equal(t, 3, results[0].ChunkIndex)
	assert.Equal(t, 7, results[1].ChunkIndex)

	_, err = svc.Search(context.Background(), "q", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, idx.lastK, "k_init is capped by corpus size")
}

func TestService_StopsOnceKKept(t *testing.T) {
	chunks := chunksN(4)
	// Out-of-order distances from a backend that does not sort: the early stop keeps
	// the first k accepted and the final sort fixes their order.
	idx := &stubIndex{dims: 2, size: 4, neighbors: []vector.Neighbor{
		{Position: 0, Distance: 1},
		{Position: 1, Distance: 0},
		{Position: 2, Distance: 0},
	}}
	emb := &mapEmbedder{dims: 2, vectors: map[string][]float32{"q": {0, 0}}}
	svc, err := NewService(idx, chunks, emb)
	require.NoError(t, err)

	results, err := svc.Search(context.Background(), "q", 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].ChunkIndex)
	assert.Equal(t, 0, results[1].ChunkIndex)
}

func TestService_InvalidArguments(t *testing.T) {
	svc := lineCorpus(t, 3)
	for _, tc := range []struct {
		k         int
		threshold float64
	}{{0, 0.5}, {-1, 0.5}, {3, -0.1}, {3, 1.1}, {3, math.NaN()}, {3, math.Inf(1)}} {
		_, err := svc.Search(context.Background(), "q", tc.k, tc.threshold)
		assert.ErrorIs(t, err, models.ErrInvalidQuery, "k=%d threshold=%v", tc.k, tc.threshold)
	}
}

func TestService_EmbeddingFailure(t *testing.T) {
	idx, _ := vector.NewFlatIndex(2)
	require.NoError(t, idx.Add(context.Background(), [][]float32{{0, 0}}))
	boom := errors.New("model offline")
	svc, err := NewService(idx, chunksN(1), &embedding.FailingEmbedder{Dims: 2, Err: boom})
	require.NoError(t, err)

	_, err = svc.Search(context.Background(), "anything", 3, 0)
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailed)
	assert.ErrorIs(t, err, boom)
}

func TestNewService_RejectsMismatches(t *testing.T) {
	idx, _ := vector.NewFlatIndex(2)
	require.NoError(t, idx.Add(context.Background(), [][]float32{{0, 0}, {1, 1}}))

	_, err := NewService(idx, chunksN(3), embedding.NewMockEmbedder(2))
	assert.ErrorIs(t, err, storage.ErrMisaligned)

	_, err = NewService(idx, chunksN(2), embedding.NewMockEmbedder(3))
	assert.Error(t, err)
}

func TestService_Respond(t *testing.T) {
	svc := lineCorpus(t, 8)
	th := 0.0
	resp, err := svc.Respond(context.Background(), models.SearchQuery{Query: "  q  ", Threshold: &th}, models.QueryDefaults{K: 5, MaxK: 10, Threshold: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "q", resp.Query)
	assert.Equal(t, 5, resp.K)
	assert.Equal(t, 0.0, resp.Threshold)
	assert.Equal(t, 5, resp.Total)
	require.NotNil(t, resp.Debug)
	assert.Equal(t, 5, resp.Debug.NumChunksRetrieved)
	assert.Len(t, resp.Debug.SimilarityScores, 3)
	assert.Equal(t, resp.Results[0].Similarity, resp.Debug.SimilarityScores[0])
	assert.Len(t, resp.Debug.Sources, 3)
	assert.Equal(t, "pdf:doc0.pdf", resp.Debug.Sources[0])

	// Default threshold 0.2 drops chunks at squared distance > 4.
	resp, err = svc.Respond(context.Background(), models.SearchQuery{Query: "q", K: 8}, models.QueryDefaults{K: 5, MaxK: 10, Threshold: 0.2})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)

	_, err = svc.Respond(context.Background(), models.SearchQuery{Query: "   "}, models.QueryDefaults{K: 5, MaxK: 10})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
}

func TestService_RespondDebugSourcesPairWithScores(t *testing.T) {
	idx, _ := vector.NewFlatIndex(2)
	require.NoError(t, idx.Add(context.Background(), [][]float32{{0, 0}, {1, 0}, {2, 0}, {3, 0}}))
	chunks := []models.Chunk{
		{ChunkID: "0_pdf:a.pdf", Source: "pdf:a.pdf", Text: "a0"},
		{ChunkID: "1_pdf:a.pdf", Source: "pdf:a.pdf", Text: "a1", ChunkIndex: 1},
		{ChunkID: "0_pdf:b.pdf", Source: "pdf:b.pdf", Text: "b0"},
		{ChunkID: "0_pdf:c.pdf", Source: "pdf:c.pdf", Text: "c0"},
	}
	emb := &mapEmbedder{dims: 2, vectors: map[string][]float32{"q": {0, 0}}}
	svc, err := NewService(idx, chunks, emb)
	require.NoError(t, err)

	th := 0.0
	resp, err := svc.Respond(context.Background(), models.SearchQuery{Query: "q", K: 4, Threshold: &th}, models.QueryDefaults{K: 5, MaxK: 10})
	require.NoError(t, err)
	require.Equal(t, 4, resp.Total)
	assert.Equal(t, []float64{1, 0.5, 0.2}, resp.Debug.SimilarityScores)
	assert.Equal(t, []string{"pdf:a.pdf", "pdf:a.pdf", "pdf:b.pdf"}, resp.Debug.Sources)
	assert.Equal(t, []string{"pdf:a.pdf", "pdf:b.pdf", "pdf:c.pdf"}, resp.Sources())
}

func TestLoadService(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewArtifactStore(filepath.Join(dir, "docs.index"), filepath.Join(dir, "chunks.json"))
	newIndex := vector.Factory("flat", 2)
	emb := &mapEmbedder{dims: 2, vectors: map[string][]float32{"q": {0, 0}}}

	_, err := LoadService(store, newIndex, emb)
	require.ErrorIs(t, err, storage.ErrArtifactsMissing)

	idx, _ := vector.NewFlatIndex(2)
	require.NoError(t, idx.Add(context.Background(), [][]float32{{5, 5}, {0, 0}}))
	require.NoError(t, store.Save(idx, chunksN(2)))

	svc, err := LoadService(store, newIndex, emb)
	require.NoError(t, err)
	defer svc.Close()
	assert.Equal(t, 2, svc.Size())
	assert.Equal(t, "flat", svc.IndexType())
	results, err := svc.Search(context.Background(), "q", 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ChunkIndex)

	ch, ok := svc.Chunk(0)
	assert.True(t, ok)
	assert.Equal(t, 0, ch.ChunkIndex)
	_, ok = svc.Chunk(2)
	assert.False(t, ok)
}
