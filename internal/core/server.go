// Package core provides the API chassis for the event lifecycle service.
// It creates a chi router and enforces cross-cutting concerns (logging,
// request correlation, error handling) before requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventline/internal/config"
	"eventline/internal/types"
)

// StatusProvider reports the scheduler's observability snapshot. Implemented
// by the scheduler; injected so the health endpoint can expose it without the
// core package depending on the scheduler package.
type StatusProvider interface {
	Status() types.SchedulerStatus
}

// Server encapsulates all dependencies for the HTTP API, allowing for easy
// injection during testing and distinct configuration per environment.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	Scheduler    StatusProvider
	HealthProbes []HealthProbe

	// V1RouteRegistrars lets handler packages register their routes without a
	// core -> handlers import cycle. Populated by the application entry point.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer initializes dependencies and prepares the router. The caller is
// responsible for mounting routes (via MountRoutes) after construction; the
// separation allows tests to customize route registration.
func NewServer(cfg *config.Config, scheduler StatusProvider, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler status provider must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		Scheduler: scheduler,
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server-owned resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	s.Logger.Info("server shutdown complete")
	return nil
}
