// Package server exposes the tool handlers over HTTP: discovery and
// invocation endpoints plus a health check reporting circuit breaker state.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okaneconnor/azure-devops-mcp/internal/resilience"
	"github.com/okaneconnor/azure-devops-mcp/internal/tools"
)

const serverName = "azure-devops-pipelines-mcp"

// Server is the HTTP front end.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	service *tools.Service
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	address string
}

// New builds a Server over the given tool service. breaker is the outbound
// client's breaker, surfaced in the health endpoint.
func New(address string, service *tools.Service, breaker *resilience.CircuitBreaker, logger *slog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		breaker: breaker,
		logger:  logger,
		address: address,
	}

	s.router.Use(middleware.RealIP)
	s.router.Use(requestID)
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/tools", s.handleListTools)
	s.router.Post("/tools/{name}", s.handleInvoke)

	return s
}

// Start runs the server until ListenAndServe returns.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting http server", "address", s.address)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
