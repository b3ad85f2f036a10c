package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/patterns"
	"github.com/ramiqadoumi/go-task-queue/internal/quality"
	"github.com/ramiqadoumi/go-task-queue/internal/queue"
)

const defaultTrendDays = 30

// QueueReader is the read side of the task queue.
type QueueReader interface {
	Status(ctx context.Context) (queue.Summary, error)
	List(ctx context.Context, f queue.Filter) ([]domain.Task, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
}

// PatternStats reports pattern store statistics.
type PatternStats interface {
	Stats(ctx context.Context) (patterns.Stats, error)
}

// QualityTrends reports quality trends.
type QualityTrends interface {
	Trends(ctx context.Context, days int) (quality.Trends, error)
}

// REST serves a read-only JSON view of the data directory.
type REST struct {
	queue    QueueReader
	patterns PatternStats
	quality  QualityTrends
	logger   *slog.Logger
}

// NewREST creates a new REST handler.
func NewREST(q QueueReader, p PatternStats, qt QualityTrends, logger *slog.Logger) *REST {
	return &REST{queue: q, patterns: p, quality: qt, logger: logger}
}

// Routes mounts every endpoint on r.
func (h *REST) Routes(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/queue/status", h.QueueStatus)
		r.Get("/queue/tasks", h.ListTasks)
		r.Get("/queue/tasks/{id}", h.GetTask)
		r.Get("/patterns/stats", h.PatternStats)
		r.Get("/quality/trends", h.QualityTrends)
	})
}

// QueueStatus handles GET /api/queue/status.
func (h *REST) QueueStatus(w http.ResponseWriter, r *http.Request) {
	sum, err := h.queue.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ListTasks handles GET /api/queue/tasks?status=&priority=&type=&limit=.
func (h *REST) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("dashboard").Start(r.Context(), "dashboard.list_tasks")
	defer span.End()

	f, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	span.SetAttributes(
		attribute.String("filter.status", string(f.Status)),
		attribute.String("filter.priority", string(f.Priority)),
		attribute.String("filter.type", string(f.Type)),
	)

	tasks, err := h.queue.List(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func parseFilter(r *http.Request) (queue.Filter, error) {
	var f queue.Filter
	var err error
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		if f.Status, err = domain.ParseStatus(s); err != nil {
			return f, err
		}
	}
	if s := q.Get("priority"); s != "" {
		if f.Priority, err = domain.ParsePriority(s); err != nil {
			return f, err
		}
	}
	if s := q.Get("type"); s != "" {
		if f.Type, err = domain.ParseTaskType(s); err != nil {
			return f, err
		}
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, &domain.ValidationError{Field: "limit", Value: s, Reason: "must be a non-negative integer"}
		}
		f.Limit = n
	}
	return f, nil
}

// GetTask handles GET /api/queue/tasks/{id}.
func (h *REST) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// PatternStats handles GET /api/patterns/stats.
func (h *REST) PatternStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.patterns.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// QualityTrends handles GET /api/quality/trends?days=N.
func (h *REST) QualityTrends(w http.ResponseWriter, r *http.Request) {
	days := defaultTrendDays
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.fail(w, r, &domain.ValidationError{Field: "days", Value: s, Reason: "must be an integer"})
			return
		}
		days = n
	}
	tr, err := h.quality.Trends(r.Context(), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// Healthz handles GET /healthz.
func (h *REST) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Readyz handles GET /readyz. It is ready once the queue file can be read.
func (h *REST) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.queue.Status(ctx); err != nil {
		h.logger.Warn("queue not ready", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "queue not ready")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// fail maps err onto a status code and writes it.
func (h *REST) fail(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *domain.TaskNotFoundError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
