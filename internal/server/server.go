package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"newsroom/internal/config"
	"newsroom/internal/logger"
	"newsroom/internal/metrics"
	"newsroom/internal/services"
)

// DefaultRequestTimeout bounds a request when no write timeout is configured.
// A newsletter run makes several model calls, so it is generous.
const DefaultRequestTimeout = 5 * time.Minute

// Pinger reports backing store health. It is optional.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	newsletter services.NewsletterGenerator
	db         Pinger
	config     config.Server
	defaults   NewsletterDefaults
}

// NewsletterDefaults fill in fields a request leaves out.
type NewsletterDefaults struct {
	Dir        string
	Categories []string
}

// New creates a new HTTP server instance. db may be nil.
func New(gen services.NewsletterGenerator, db Pinger, cfg config.Server, defaults NewsletterDefaults) *Server {
	if defaults.Dir == "" {
		defaults.Dir = "outputs/category_reports"
	}
	if len(defaults.Categories) == 0 {
		defaults.Categories = config.DefaultCategories()
	}

	s := &Server{
		router:     chi.NewRouter(),
		newsletter: gen,
		db:         db,
		config:     cfg,
		defaults:   defaults,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	timeout := s.config.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	s.router.Use(middleware.Timeout(timeout))

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(noCache)
		r.Post("/newsletter", s.handleNewsletter)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logger.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout.String(),
		"write_timeout", s.config.WriteTimeout.String(),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down HTTP server gracefully")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
