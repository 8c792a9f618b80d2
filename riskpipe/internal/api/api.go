// Package api serves the read-only HTTP surface over the risk store.
// All writes happen through the pipeline; the API never mutates state.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vigialab/vigia/riskpipe/internal/store"
)

// Handler serves the v1 API.
type Handler struct {
	store  *store.Store
	logger *slog.Logger
}

// New builds a handler over the store.
func New(st *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: st, logger: logger.With("component", "api")}
}

// Router returns the fully wired chi router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/risk/current", h.getCurrent)
		r.Get("/risk/history", h.getHistory)
		r.Get("/events", h.listEvents)
		r.Get("/alerts", h.listAlerts)
		r.Get("/stats", h.getStats)
	})
	return r
}

// getCurrent returns the latest daily summary with its rolling context.
func (h *Handler) getCurrent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.store.LatestDailySummary(ctx)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, errors.New("no risk data yet"))
		return
	}
	rolling, err := h.store.ListRollingMetrics(ctx, summary.Date)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"rolling": rolling,
	})
}

// getHistory returns daily summaries for an inclusive date range,
// defaulting to the trailing 30 days.
func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to := q.Get("to")
	if to == "" {
		to = time.Now().UTC().Format("2006-01-02")
	}
	from := q.Get("from")
	if from == "" {
		toDay, err := time.ParseInLocation("2006-01-02", to, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid 'to' date"))
			return
		}
		from = toDay.AddDate(0, 0, -29).Format("2006-01-02")
	}
	if _, err := time.ParseInLocation("2006-01-02", from, time.UTC); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid 'from' date"))
		return
	}

	summaries, err := h.store.ListDailySummaries(r.Context(), from, to)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from": from, "to": to,
		"count":     len(summaries),
		"summaries": summaries,
	})
}

// listEvents returns scored events filtered by severity, category and
// time range, newest first.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.EventFilter{
		Severity: q.Get("severity"),
		Category: q.Get("category"),
		Limit:    intParam(q.Get("limit"), 50),
		Offset:   intParam(q.Get("offset"), 0),
	}
	if f.Category != "" && !store.ValidCategory(f.Category) {
		writeError(w, http.StatusBadRequest, errors.New("unknown category"))
		return
	}
	if date := q.Get("date"); date != "" {
		from, to, err := store.DayBounds(date)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid 'date'"))
			return
		}
		f.From, f.To = from, to
	}

	events, err := h.store.ListEvents(r.Context(), f)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

// listAlerts returns alerts newest first, paginated.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	alerts, err := h.store.ListAlerts(r.Context(),
		intParam(q.Get("limit"), 50), intParam(q.Get("offset"), 0))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

// getStats returns platform counters.
func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
