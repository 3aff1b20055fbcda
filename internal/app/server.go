package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deusflow/newsqueue/internal/ingest"
	"github.com/deusflow/newsqueue/internal/lock"
	"github.com/deusflow/newsqueue/internal/metrics"
	"github.com/deusflow/newsqueue/internal/news"
	"github.com/deusflow/newsqueue/internal/retention"
	"github.com/deusflow/newsqueue/internal/storage"
)

type CycleRunner interface {
	RunCycle(ctx context.Context, workspaceID int64, todayOnly bool) (int, ingest.Report, error)
}

type WorkspaceSweeper interface {
	Sweep(ctx context.Context, workspaceID int64) (retention.Result, error)
}

type EntryLister interface {
	ListEntries(ctx context.Context, f storage.EntryFilter) ([]news.QueueEntry, error)
}

type handlers struct {
	runner  CycleRunner
	sweeper WorkspaceSweeper
	entries EntryLister
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewRouter exposes health, metrics and manual triggers over HTTP.
func NewRouter(runner CycleRunner, sweeper WorkspaceSweeper, entries EntryLister, m *metrics.Metrics, log *slog.Logger) http.Handler {
	h := &handlers{runner: runner, sweeper: sweeper, entries: entries, metrics: m, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(log))

	r.Get("/health", h.health)
	r.Get("/metrics", h.stats)
	r.Route("/workspaces/{id}", func(r chi.Router) {
		r.Post("/cycles", h.runCycle)
		r.Post("/sweep", h.sweep)
		r.Get("/entries", h.listEntries)
	})
	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	stats := h.metrics.GetStats()

	status := http.StatusOK
	state := "ok"
	if !h.metrics.Healthy() {
		status = http.StatusServiceUnavailable
		state = "error"
	}
	writeJSON(w, status, map[string]any{
		"status":     state,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.GetStats())
}

func (h *handlers) runCycle(w http.ResponseWriter, r *http.Request) {
	id, ok := workspaceID(w, r)
	if !ok {
		return
	}
	todayOnly, _ := strconv.ParseBool(r.URL.Query().Get("today_only"))

	n, rep, err := h.runner.RunCycle(r.Context(), id, todayOnly)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, lock.ErrNotAcquired) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "report": rep})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inserted": n, "report": rep})
}

func (h *handlers) sweep(w http.ResponseWriter, r *http.Request) {
	id, ok := workspaceID(w, r)
	if !ok {
		return
	}
	res, err := h.sweeper.Sweep(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"archived": res.Archived,
		"purged":   res.Purged,
		"orphans":  res.Orphans,
		"total":    res.Total(),
	})
}

func (h *handlers) listEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := workspaceID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	status := news.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+string(status))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, err := h.entries.ListEntries(r.Context(), storage.EntryFilter{WorkspaceID: id, Status: status, Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func workspaceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid workspace id")
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
