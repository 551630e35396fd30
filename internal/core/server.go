// Package core provides the HTTP chassis for the PerfPulse API: a chi router
// with the cross-cutting middleware chain (recovery, request IDs, structured
// logging, metrics) and the standard JSON response envelope, applied before
// requests reach the analytics handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"perfpulse/internal/config"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of domain routes onto the v1 router. The
// indirection keeps core free of handler package imports.
type RouteRegistrar func(r chi.Router)

// Server bundles the dependencies of the HTTP API and owns the router.
type Server struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics MetricsCollector

	// V1RouteRegistrars are mounted under /v1 by MountRoutes. Populated by
	// the application entry point.
	V1RouteRegistrars []RouteRegistrar

	// HealthProbes are checked by the /health endpoint.
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer validates critical dependencies and prepares the router. The
// caller mounts routes afterwards so tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// MountRoutes registers the global middleware chain, the /v1 route groups,
// and the health endpoint. Middleware order matters: the recoverer is
// outermost, request IDs precede logging so log lines carry them.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(s.MetricsMiddleware)

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
}

// Shutdown logs termination. The caller drains the HTTP listener and closes
// the database pool; there is no other server-owned state to release.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
