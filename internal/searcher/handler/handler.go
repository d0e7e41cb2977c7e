// Package handler exposes the index over HTTP: ranked search, index stats
// and rebuilds, and query cache management.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/middleware"
)

// Options wires the optional collaborators. Nil fields disable the
// corresponding feature.
type Options struct {
	Cache     *cache.QueryCache
	Collector *analytics.Collector
	Metrics   *metrics.Metrics
	// Source feeds POST /api/v1/index/rebuild.
	Source indexer.Source
	// SnapshotPath, when set, receives the index after every rebuild.
	SnapshotPath string
	DefaultK     int
	MaxK         int
	// Admin wraps the routes that change state (rebuild, cache
	// invalidation), typically with API key checks.
	Admin func(http.Handler) http.Handler
}

type Handler struct {
	engine *indexer.Engine
	opts   Options
	logger *slog.Logger
}

func New(engine *indexer.Engine, opts Options) *Handler {
	if opts.DefaultK <= 0 {
		opts.DefaultK = 10
	}
	if opts.MaxK < opts.DefaultK {
		opts.MaxK = opts.DefaultK
	}
	return &Handler{
		engine: engine,
		opts:   opts,
		logger: slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.Handle("POST /api/v1/index/rebuild", h.admin(h.Rebuild))
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.Handle("POST /api/v1/cache/invalidate", h.admin(h.CacheInvalidate))
}

func (h *Handler) admin(fn http.HandlerFunc) http.Handler {
	if h.opts.Admin == nil {
		return fn
	}
	return h.opts.Admin(fn)
}

// SearchResponse is the body of GET /api/v1/search. A query with no usable
// terms answers 404 with NotFound set and Reason naming why.
type SearchResponse struct {
	Query      string          `json:"query"`
	K          int             `json:"k"`
	Generation uint64          `json:"generation"`
	NotFound   bool            `json:"not_found"`
	Reason     string          `json:"reason,omitempty"`
	Cached     bool            `json:"cached"`
	Results    []ranker.Result `json:"results"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	query := r.URL.Query().Get("q")

	k, err := h.parseK(r.URL.Query().Get("k"))
	if err != nil {
		h.observe("invalid", "none", start, 0)
		h.writeError(w, err)
		return
	}

	idx, gen := h.engine.Live()
	if idx == nil {
		h.observe("not_ready", "none", start, 0)
		h.writeError(w, apperrors.ErrIndexNotReady)
		return
	}
	terms := h.engine.Terms(query)
	compute := func() (cache.Entry, error) {
		res, err := idx.QueryTerms(terms, k)
		if errors.Is(err, apperrors.ErrNotFound) {
			return cache.Entry{Results: []ranker.Result{}, NotFound: true, Reason: apperrors.Reason(err)}, nil
		}
		if err != nil {
			return cache.Entry{}, err
		}
		return cache.Entry{Results: res}, nil
	}

	var entry cache.Entry
	cached := false
	cacheStatus := "disabled"
	if h.opts.Cache != nil && k > 0 {
		entry, cached, err = h.opts.Cache.GetOrCompute(ctx, terms, k, gen, compute)
		cacheStatus = "miss"
		if cached {
			cacheStatus = "hit"
		}
	} else {
		entry, err = compute()
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.observe("error", cacheStatus, start, 0)
		h.writeError(w, err)
		return
	}
	if entry.Results == nil {
		entry.Results = []ranker.Result{}
	}

	outcome := "ok"
	if entry.NotFound {
		outcome = entry.Reason
	}
	latency := time.Since(start)
	h.observe(outcome, cacheStatus, start, len(entry.Results))
	log.Info("search completed",
		"query", query,
		"k", k,
		"returned", len(entry.Results),
		"not_found", entry.NotFound,
		"cache", cacheStatus,
		"latency_ms", latency.Milliseconds(),
	)
	if h.opts.Collector != nil {
		ev := analytics.SearchEvent{
			Query:      query,
			Terms:      terms,
			K:          k,
			Returned:   len(entry.Results),
			NotFound:   entry.NotFound,
			Reason:     entry.Reason,
			CacheHit:   cached,
			LatencyMs:  float64(latency.Microseconds()) / 1000,
			Generation: gen,
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(ctx),
		}
		if len(entry.Results) > 0 {
			ev.TopResult = entry.Results[0].Name
		}
		h.opts.Collector.TrackSearch(ev)
	}

	status := http.StatusOK
	if entry.NotFound {
		status = http.StatusNotFound
	}
	h.writeJSON(w, status, SearchResponse{
		Query:      query,
		K:          k,
		Generation: gen,
		NotFound:   entry.NotFound,
		Reason:     entry.Reason,
		Cached:     cached,
		Results:    entry.Results,
	})
}

// parseK applies the default for an absent k and caps it at MaxK.
func (h *Handler) parseK(raw string) (int, error) {
	if raw == "" {
		return h.opts.DefaultK, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k < 0 {
		return 0, apperrors.New(apperrors.ErrInvalidArgument, http.StatusBadRequest, "k must be a non-negative integer")
	}
	return min(k, h.opts.MaxK), nil
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

// Rebuild builds a fresh index from the configured source and swaps it in.
// Cached results are keyed by generation, so the flush only frees space.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.opts.Source == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidArgument, http.StatusConflict, "no document source configured"))
		return
	}
	start := time.Now()
	stats, err := h.engine.Build(r.Context(), h.opts.Source)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.opts.SnapshotPath != "" {
		if _, err := h.engine.Save(h.opts.SnapshotPath); err != nil {
			// The new index is live; only persistence failed.
			logger.FromContext(r.Context()).Error("saving snapshot after rebuild failed", "error", err)
		}
	}
	if h.opts.Cache != nil {
		if _, err := h.opts.Cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("cache invalidation after rebuild failed", "error", err)
		}
	}
	if h.opts.Collector != nil {
		h.opts.Collector.TrackIndex(analytics.IndexEvent{
			Generation: stats.Generation,
			Documents:  stats.Documents,
			Vocabulary: stats.Vocabulary,
			Origin:     stats.Origin,
			DurationMs: time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.opts.Cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.opts.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, fmt.Errorf("cache invalidation: %w", apperrors.ErrInternal))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// Ready reports whether an index is live, for the readiness probe.
func (h *Handler) Ready(ctx context.Context) error {
	if idx, _ := h.engine.Live(); idx == nil {
		return apperrors.ErrIndexNotReady
	}
	return nil
}

func (h *Handler) observe(outcome, cacheStatus string, start time.Time, results int) {
	m := h.opts.Metrics
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	m.SearchResultsCount.Observe(float64(results))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": msg})
}
