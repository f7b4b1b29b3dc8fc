// internal/api/server.go

// Package api exposes the operational HTTP surface: Prometheus metrics,
// health checks and run summaries.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth/v5"

	"github.com/cmatc13/txpilot/internal/submitter"
	"github.com/cmatc13/txpilot/pkg/config"
	"github.com/cmatc13/txpilot/pkg/health"
	"github.com/cmatc13/txpilot/pkg/logging"
	"github.com/cmatc13/txpilot/pkg/metrics"
)

// RunStore reads archived runs. It is optional; without one the run
// endpoints serve only the in-memory summary of the current process.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*submitter.RunSummary, error)
	ListRuns(ctx context.Context, limit int64) ([]string, error)
}

// Server represents the operational API server
type Server struct {
	config           *config.Config
	router           *chi.Mux
	tokenAuth        *jwtauth.JWTAuth
	server           *http.Server
	logger           *logging.Logger
	metricsCollector *metrics.Metrics
	healthRegistry   *health.Registry
	runs             RunStore

	mu      sync.RWMutex
	summary *submitter.RunSummary
}

// NewServer creates a new operational API server. The run store may be nil.
func NewServer(cfg *config.Config, logger *logging.Logger, metricsCollector *metrics.Metrics, healthRegistry *health.Registry, runs RunStore) *Server {
	r := chi.NewRouter()

	var tokenAuth *jwtauth.JWTAuth
	if cfg.Auth.JWTSecret != "" {
		tokenAuth = jwtauth.New("HS256", []byte(cfg.Auth.JWTSecret), nil)
	}

	s := &Server{
		config:           cfg,
		router:           r,
		tokenAuth:        tokenAuth,
		logger:           logger.Named("api"),
		metricsCollector: metricsCollector,
		healthRegistry:   healthRegistry,
		runs:             runs,
		server: &http.Server{
			Addr:    ":" + cfg.API.Port,
			Handler: r,
		},
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)

	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(MetricsMiddleware(s.metricsCollector, "api"))
	s.router.Use(RecovererWithMetrics(s.logger, s.metricsCollector, "api"))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.API.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Use(httprate.LimitByIP(s.config.API.RateLimit, 1*time.Minute))
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Public routes
	s.router.Group(func(r chi.Router) {
		r.Get("/health", s.healthRegistry.Handler().ServeHTTP)
		r.Get("/metrics", s.metricsCollector.Handler().ServeHTTP)
	})

	// Summary routes require authentication when a JWT secret is configured
	s.router.Group(func(r chi.Router) {
		if s.tokenAuth != nil {
			r.Use(jwtauth.Verifier(s.tokenAuth))
			r.Use(jwtauth.Authenticator)
		}

		r.Get("/v1/summary", s.handleGetSummary)
		r.Get("/v1/runs", s.handleListRuns)
		r.Get("/v1/runs/{id}", s.handleGetRun)
	})
}

// SetSummary publishes the latest run summary to the API.
func (s *Server) SetSummary(summary *submitter.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
}

// handleGetSummary returns the latest run summary
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	summary := s.summary
	s.mu.RUnlock()

	if summary == nil {
		http.Error(w, "no run has completed yet", http.StatusNotFound)
		return
	}

	s.respondJSON(w, summary)
}

// handleListRuns returns archived run IDs, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(w, "run archive not configured", http.StatusNotFound)
		return
	}

	ids, err := s.runs.ListRuns(r.Context(), 50)
	if err != nil {
		s.logger.Error("Failed to list runs", "error", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}

	s.respondJSON(w, map[string]interface{}{"runs": ids})
}

// handleGetRun returns one archived run summary
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(w, "run archive not configured", http.StatusNotFound)
		return
	}

	runID := chi.URLParam(r, "id")
	summary, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		s.logger.Error("Failed to load run", "run_id", runID, "error", err)
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}
	if summary == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	s.respondJSON(w, summary)
}

func (s *Server) respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for requests
func (s *Server) Start() error {
	s.logger.Info("API server starting", "port", s.config.API.Port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
