// Package mailapi exposes pipeline runs and stored messages over HTTP.
package mailapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/mailwatch/internal/pipeline"
	"github.com/linnemanlabs/mailwatch/internal/store"
)

const defaultRecentLimit = 20

// Runner triggers one pipeline run.
type Runner interface {
	Run(ctx context.Context, params pipeline.Params) (*pipeline.Summary, error)
}

// MessageStore is the read side of the message archive.
type MessageStore interface {
	Get(ctx context.Context, id string) (*store.Record, bool, error)
	Recent(ctx context.Context, limit int) ([]*store.Record, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	runner Runner
	msgs   MessageStore
}

// New creates a new API handler.
func New(logger log.Logger, runner Runner, msgs MessageStore) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if runner == nil {
		panic(xerrors.New("runner is required"))
	}
	if msgs == nil {
		panic(xerrors.New("message store is required"))
	}
	return &API{
		logger: logger,
		runner: runner,
		msgs:   msgs,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", a.handleTriggerRun)
		r.Get("/messages", a.handleListMessages)
		r.Get("/messages/{id}", a.handleGetMessage)
	})
}

// runRequest mirrors the defaults of a scheduled run: last 48 hours,
// unread mail only, small batch.
type runRequest struct {
	HoursBack int   `json:"hours_back"`
	Limit     int   `json:"limit"`
	Unread    *bool `json:"unread"`
}

func (a *API) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
			return
		}
	}

	unread := true
	if req.Unread != nil {
		unread = *req.Unread
	}
	params := pipeline.Params{
		WindowHours: req.HoursBack,
		Limit:       req.Limit,
		UnreadOnly:  unread,
	}

	summary, err := a.runner.Run(r.Context(), params)
	if err != nil {
		a.logger.Error(r.Context(), err, "pipeline run failed")
		http.Error(w, `{"error":"pipeline run failed"}`, http.StatusBadGateway)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("mailwatch.run.id", summary.RunID))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}

func (a *API) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("mailwatch.message.id", id))

	rec, ok, err := a.msgs.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get message", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := a.msgs.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list messages")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []*store.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": recs})
}
