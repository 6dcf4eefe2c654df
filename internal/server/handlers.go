package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/shiraberu/internal/embedding"
	"github.com/hyperjump/shiraberu/internal/keyword"
	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/search"
	"github.com/hyperjump/shiraberu/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// StatusResponse describes the loaded index and the run it was built from.
type StatusResponse struct {
	Loaded         bool               `json:"loaded"`
	Chunks         int                `json:"chunks"`
	IndexType      string             `json:"index_type,omitempty"`
	Dimensions     int                `json:"dimensions,omitempty"`
	LoadedAt       *time.Time         `json:"loaded_at,omitempty"`
	Documents      int64              `json:"documents"`
	KeywordDocs    uint64             `json:"keyword_docs"`
	LatestRun      *storage.IngestRun `json:"latest_run,omitempty"`
	DiskUsageBytes int64              `json:"disk_usage_bytes"`
	Config         map[string]any     `json:"config"`
}

// KeywordHit is a keyword match joined with the chunk it points at.
type KeywordHit struct {
	keyword.KeywordResult
	Text       string `json:"text"`
	ChunkIndex int    `json:"chunk_index"`
}

func (s *Server) queryDefaults() models.QueryDefaults {
	return models.QueryDefaults{
		K:         s.config.Retrieval.DefaultK,
		MaxK:      s.config.Retrieval.MaxK,
		Threshold: s.config.Retrieval.Threshold(),
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("k", query.K))
	response, err := s.holder.Respond(r.Context(), query, s.queryDefaults())
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("search failed", zap.Error(err))
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// statusFor maps retrieval errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, embedding.ErrEmbeddingFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.holder.Reload(r.Context()); err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	svc := s.holder.Current()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"chunks":     svc.Size(),
		"index_type": svc.IndexType(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Config: map[string]any{
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"vector_index_type":    s.config.Vector.IndexType,
			"chunk_size":           s.config.Chunking.ChunkSize,
			"chunk_overlap":        s.config.Chunking.Overlap(),
			"default_k":            s.config.Retrieval.DefaultK,
			"default_threshold":    s.config.Retrieval.Threshold(),
			"index_path":           s.config.Storage.IndexPath,
			"metadata_path":        s.config.Storage.MetadataPath,
		},
	}
	if svc := s.holder.Current(); svc != nil {
		loadedAt := svc.LoadedAt()
		resp.Loaded = true
		resp.Chunks = svc.Size()
		resp.IndexType = svc.IndexType()
		resp.Dimensions = svc.Dimensions()
		resp.LoadedAt = &loadedAt
	}
	if s.catalog != nil {
		n, err := s.catalog.CountDocuments(ctx)
		if err != nil {
			s.logger.Error("status: count documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Documents = n
		run, err := s.catalog.LatestRun(ctx)
		switch {
		case err == nil:
			resp.LatestRun = run
		case !errors.Is(err, storage.ErrNoRuns):
			s.logger.Warn("status: latest run failed", zap.Error(err))
		}
	}
	if s.keyword != nil {
		if n, err := s.keyword.DocCount(); err == nil {
			resp.KeywordDocs = n
		}
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.IndexPath,
		s.config.Storage.MetadataPath,
		s.config.Storage.CatalogPath,
		s.config.Storage.KeywordIndexPath,
	)
	if err == nil {
		resp.DiskUsageBytes = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not enabled")
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := intParam(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxPageSize)

	docs, err := s.catalog.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.catalog.CountDocuments(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []storage.DocumentEntry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"offset":    offset,
		"limit":     limit,
		"total":     total,
	})
}

func (s *Server) handleKeyword(w http.ResponseWriter, r *http.Request) {
	if s.keyword == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword index not enabled")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := intParam(r, "limit", 10)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	opts := &keyword.SearchOptions{
		FuzzyEnabled: r.URL.Query().Get("fuzzy") == "true",
		Source:       r.URL.Query().Get("source"),
	}
	results, err := s.keyword.Search(r.Context(), q, min(limit, maxPageSize), opts)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	svc := s.holder.Current()
	hits := make([]KeywordHit, 0, len(results))
	for _, res := range results {
		hit := KeywordHit{KeywordResult: res}
		if svc != nil {
			if ch, ok := svc.Chunk(res.Position); ok && ch.ChunkID == res.ChunkID {
				hit.Text = ch.Text
				hit.ChunkIndex = ch.ChunkIndex
			}
		}
		hits = append(hits, hit)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"query": q, "hits": hits, "total": len(hits)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.holder.Current() == nil {
		status = "loading"
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
