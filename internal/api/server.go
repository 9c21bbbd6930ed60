package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-integrity/kestrel/internal/domain"
	"github.com/opensource-integrity/kestrel/internal/narrative"
	"github.com/opensource-integrity/kestrel/internal/registry"
	"github.com/opensource-integrity/kestrel/internal/rules"
	"github.com/opensource-integrity/kestrel/internal/scoring"
)

// Per-tenant submission rate limit for POST /analyze.
const (
	analyzeRateLimit  = 120
	analyzeRateWindow = time.Minute
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, scorer *scoring.Scorer, narrator *narrative.Service, updater *registry.Updater, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, scorer, narrator, updater, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Document screening
		r.With(RateLimitMiddleware(cache, analyzeRateLimit, analyzeRateWindow)).
			Post("/analyze", handler.Analyze)

		// Analysis retrieval
		r.Get("/analyses", handler.ListAnalyses)
		r.Get("/analyses/{id}", handler.GetAnalysis)

		// Document retrieval
		r.Get("/documents/{id}", handler.GetDocument)

		// Screening statistics
		r.Get("/stats", handler.GetStats)

		// Predatory registry management
		r.Get("/registry", handler.ListRegistry)
		r.Post("/registry", handler.CreateRegistryEntry)
		r.Post("/registry/reload", handler.ReloadRegistry)
		r.Post("/registry/seed", handler.SeedRegistry)

		// Advisory rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
