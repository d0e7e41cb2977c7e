// Package handler serves the document API: ingest, read, list and delete
// stored listings.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/logger"
)

const maxBodyBytes = 2 << 20

// Store is the read and delete side of the document store.
type Store interface {
	Get(ctx context.Context, name string) (store.Document, error)
	List(ctx context.Context, limit, offset int) ([]store.Document, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, name string) error
}

type Handler struct {
	publisher *publisher.Publisher
	store     Store
	onDeleted func()
	admin     func(http.Handler) http.Handler
	logger    *slog.Logger
}

// New creates a Handler. onDeleted, if non-nil, runs after a successful
// delete. admin, if non-nil, wraps the routes that change documents.
func New(pub *publisher.Publisher, st Store, onDeleted func(), admin func(http.Handler) http.Handler) *Handler {
	return &Handler{
		publisher: pub,
		store:     st,
		onDeleted: onDeleted,
		admin:     admin,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/documents", h.guard(h.Ingest))
	mux.HandleFunc("GET /api/v1/documents", h.List)
	mux.HandleFunc("GET /api/v1/documents/{name}", h.Get)
	mux.Handle("DELETE /api/v1/documents/{name}", h.guard(h.Delete))
}

func (h *Handler) guard(fn http.HandlerFunc) http.Handler {
	if h.admin == nil {
		return fn
	}
	return h.admin(fn)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp, err := h.publisher.Ingest(ctx, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed", "error", err, "status_code", statusCode)
		h.writeJSON(w, statusCode, map[string]string{"error": "ingestion failed"})
		return
	}
	log.Info("document ingested", "name", resp.Name, "status", resp.Status)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// ListResponse is the body of GET /api/v1/documents.
type ListResponse struct {
	Total     int              `json:"total"`
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
	Documents []store.Document `json:"documents"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil || limit < 1 || limit > 1000 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer in [1, 1000]"})
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offset must be a non-negative integer"})
		return
	}
	docs, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total, err := h.store.Count(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	h.writeJSON(w, http.StatusOK, ListResponse{Total: total, Limit: limit, Offset: offset, Documents: docs})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.store.Delete(r.Context(), name); err != nil {
		h.writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("document deleted", "name", name)
	if h.onDeleted != nil {
		h.onDeleted()
	}
	w.WriteHeader(http.StatusNoContent)
}

func intParam(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("document request failed", "error", err)
		msg = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
