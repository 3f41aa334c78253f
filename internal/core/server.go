// Package core provides the HTTP chassis for the Climate Stats API. It
// creates the chi router and enforces cross-cutting concerns (panic
// recovery, request correlation, security headers, structured logging, and
// error envelopes) before requests reach domain-specific handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"climatestats/internal/config"
)

// Server encapsulates the HTTP-level dependencies of the API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// HealthProbes are executed concurrently by the health endpoint. Each
	// probe represents a critical dependency (currently just the database)
	// that must be reachable for the service to function.
	HealthProbes []HealthProbe

	// RouteRegistrars are populated by the application entry point with the
	// domain handlers' route registration functions. This indirection avoids
	// import cycles between core and handler packages.
	RouteRegistrars []func(chi.Router)

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a fail-fast check on critical
// dependencies.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. The separation allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router, for use by
// http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration. This is
// used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
