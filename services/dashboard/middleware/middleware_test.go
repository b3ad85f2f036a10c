package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
)

// ── mocks ────────────────────────────────────────────────────────────────────

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}
func (l *fakeLimiter) Limit() int { return 5 }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

// ── tests ────────────────────────────────────────────────────────────────────

func TestRequestLogger_CountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(RequestLogger(discard()))
	r.Get("/api/queue/tasks/{id}", ok)

	counter := telemetry.DashboardRequests.WithLabelValues("/api/queue/tasks/{id}", "200")
	before := testutil.ToFloat64(counter)
	for _, id := range []string{"task_a", "task_b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/queue/tasks/"+id, nil))
	}
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRateLimit(t *testing.T) {
	lim := &fakeLimiter{allow: true}
	h := RateLimit(lim, discard())(http.HandlerFunc(ok))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"10.0.0.7"}, lim.keys)

	lim.allow = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))

	lim.err = errors.New("redis down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limiter errors fail open")
}
