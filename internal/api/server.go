package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brokerops/ocpd-engine/internal/catalog"
	"github.com/brokerops/ocpd-engine/internal/domain"
	"github.com/brokerops/ocpd-engine/internal/history"
	"github.com/brokerops/ocpd-engine/internal/pricing"
	"github.com/brokerops/ocpd-engine/internal/underwriting"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, calc *pricing.Calculator, rules *underwriting.RuleEngine, cat *catalog.Catalog, variants *catalog.Variants, hist *history.Service, version string) *Server {
	handler := NewHandler(repo, cache, bus, calc, rules, cat, variants, hist, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", TenantIDHeader, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, TraceIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Clause catalog is tenant-independent
	router.Get("/clauses", handler.ListClauses)
	router.Get("/variants", handler.ListVariants)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Quoting
		r.Post("/quotes/quick", handler.QuickQuote)
		r.Post("/quotes/calculate", handler.Calculate)
		r.Get("/quotes/{id}", handler.GetQuote)

		// Referral queue
		r.Get("/referrals", handler.ListReferrals)

		// Custom underwriting rule management
		r.Get("/underwriting/rules", handler.ListRules)
		r.Get("/underwriting/rules/{id}", handler.GetRule)
		r.Post("/underwriting/rules", handler.CreateRule)
		r.Delete("/underwriting/rules/{id}", handler.DeleteRule)
		r.Post("/underwriting/rules/reload", handler.ReloadRules)
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
