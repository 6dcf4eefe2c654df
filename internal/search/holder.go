package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/shiraberu/internal/models"
	"go.uber.org/zap"
)

// ErrNotLoaded is returned when no Service has been published yet.
var ErrNotLoaded = errors.New("retrieval service not loaded")

// LoadFunc builds a fresh Service, typically from the artifact store.
type LoadFunc func(ctx context.Context) (*Service, error)

// Holder publishes the current Service to concurrent readers. A reload builds
// a complete new Service before swapping it in, so readers see either the old
// index and metadata or the new ones, never a mix.
type Holder struct {
	current atomic.Pointer[Service]
	load    LoadFunc
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewHolder returns a holder that reloads with load. It starts empty.
func NewHolder(load LoadFunc, logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{load: load, logger: logger}
}

// Current returns the published Service, or nil before the first load.
func (h *Holder) Current() *Service {
	return h.current.Load()
}

// Swap publishes svc and returns the previous Service. The previous one may
// still be serving in-flight queries.
func (h *Holder) Swap(svc *Service) *Service {
	return h.current.Swap(svc)
}

// Reload builds a new Service and publishes it. On failure the current Service
// keeps serving and the error is returned.
func (h *Holder) Reload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	svc, err := h.load(ctx)
	if err != nil {
		h.logger.Warn("reload failed; keeping current index", zap.Error(err))
		return err
	}
	old := h.Swap(svc)
	fields := []zap.Field{zap.Int("chunks", svc.Size()), zap.String("index_type", svc.IndexType())}
	if old != nil {
		fields = append(fields, zap.Int("previous_chunks", old.Size()))
	}
	h.logger.Info("retrieval service published", fields...)
	return nil
}

// Search runs Service.Search on the current Service.
func (h *Holder) Search(ctx context.Context, query string, k int, threshold float64) ([]models.RetrievalResult, error) {
	svc := h.Current()
	if svc == nil {
		return nil, ErrNotLoaded
	}
	return svc.Search(ctx, query, k, threshold)
}

// Respond runs Service.Respond on the current Service.
func (h *Holder) Respond(ctx context.Context, q models.SearchQuery, defaults models.QueryDefaults) (*models.SearchResponse, error) {
	svc := h.Current()
	if svc == nil {
		return nil, ErrNotLoaded
	}
	return svc.Respond(ctx, q, defaults)
}
