package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfpulse/internal/config"
	"perfpulse/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(&config.Config{Environment: "local"}, testLogger())
	require.NoError(t, err)
	return s
}

type recordedMetric struct {
	method, endpoint, status string
	duration                 time.Duration
}

type stubMetrics struct {
	requests []recordedMetric
}

func (m *stubMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.requests = append(m.requests, recordedMetric{method, endpoint, status, duration})
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil, testLogger())
	assert.ErrorContains(t, err, "config")

	_, err = NewServer(&config.Config{}, nil)
	assert.ErrorContains(t, err, "logger")
}

func TestMountRoutesServesRegisteredHandlers(t *testing.T) {
	s := newTestServer(t)
	s.V1RouteRegistrars = append(s.V1RouteRegistrars, func(r chi.Router) {
		r.Get("/snapshots", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, APIResponse{Data: "ok"})
		})
	})
	s.MountRoutes()

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/snapshots", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":"ok"}`, w.Body.String())
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("generates when absent", func(t *testing.T) {
		var captured string
		h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = types.GetRequestID(r.Context())
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, captured)
		assert.Equal(t, captured, w.Header().Get("X-Request-Id"))
	})

	t.Run("propagates client value", func(t *testing.T) {
		var captured string
		h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = types.GetRequestID(r.Context())
		}))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-Id", "req_client")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, "req_client", captured)
		assert.Equal(t, "req_client", w.Header().Get("X-Request-Id"))
	})
}

func TestRecovererWritesErrorEnvelope(t *testing.T) {
	s := newTestServer(t)
	h := s.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/reports", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_unexpected_error")
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestMetricsMiddleware(t *testing.T) {
	s := newTestServer(t)
	metrics := &stubMetrics{}
	s.Metrics = metrics

	h := s.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/reports/missing", nil))

	require.Len(t, metrics.requests, 1)
	assert.Equal(t, "GET", metrics.requests[0].method)
	assert.Equal(t, "/v1/reports/missing", metrics.requests[0].endpoint)
	assert.Equal(t, "404", metrics.requests[0].status)
}

func TestMetricsMiddlewareNilCollector(t *testing.T) {
	s := newTestServer(t)

	h := s.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleHealth(t *testing.T) {
	t.Run("no probes", func(t *testing.T) {
		s := newTestServer(t)

		w := httptest.NewRecorder()
		s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"healthy"`)
	})

	t.Run("all healthy", func(t *testing.T) {
		s := newTestServer(t)
		s.HealthProbes = []HealthProbe{
			HealthProbeFunc{ProbeName: "database", Fn: func(ctx context.Context) error { return nil }},
		}

		w := httptest.NewRecorder()
		s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"database"`)
	})

	t.Run("failing probe degrades", func(t *testing.T) {
		s := newTestServer(t)
		s.HealthProbes = []HealthProbe{
			HealthProbeFunc{ProbeName: "database", Fn: func(ctx context.Context) error { return nil }},
			HealthProbeFunc{ProbeName: "queue", Fn: func(ctx context.Context) error {
				return errors.New("dial timeout")
			}},
		}

		w := httptest.NewRecorder()
		s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"unhealthy"`)
		assert.Contains(t, w.Body.String(), "dial timeout")
	})

	t.Run("panicking probe reported unhealthy", func(t *testing.T) {
		s := newTestServer(t)
		s.HealthProbes = []HealthProbe{
			HealthProbeFunc{ProbeName: "cache", Fn: func(ctx context.Context) error { panic("nil map") }},
		}

		w := httptest.NewRecorder()
		s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "probe panicked")
	})
}
