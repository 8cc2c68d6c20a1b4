// Package server provides the HTTP REST API for the application tracker.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/auth"
	"github.com/jonathan/application-tracker/internal/config"
	"github.com/jonathan/application-tracker/internal/server/middleware"
	"github.com/jonathan/application-tracker/internal/server/ratelimit"
	"github.com/jonathan/application-tracker/internal/tracker"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Config   *config.ServerConfig
	Logger   *zap.Logger
	Accounts *auth.AccountService
	Guard    *auth.Guard
	Tokens   *auth.JWTService
	Tracker  *tracker.Service
	Limiter  *ratelimit.Limiter
	Store    Pinger
	Registry *prometheus.Registry
}

// Server represents the HTTP server
type Server struct {
	cfg        *config.ServerConfig
	logger     *zap.Logger
	accounts   *auth.AccountService
	guard      *auth.Guard
	tokens     *auth.JWTService
	tracker    *tracker.Service
	limiter    *ratelimit.Limiter
	store      Pinger
	registry   *prometheus.Registry
	router     chi.Router
	httpServer *http.Server
	now        func() time.Time
}

// New wires the router. It does not start listening.
func New(d Deps) (*Server, error) {
	if d.Config == nil || d.Accounts == nil || d.Guard == nil || d.Tokens == nil || d.Tracker == nil {
		return nil, errors.New("server: config, accounts, guard, tokens and tracker are required")
	}
	s := &Server{
		cfg:      d.Config,
		logger:   d.Logger,
		accounts: d.Accounts,
		guard:    d.Guard,
		tokens:   d.Tokens,
		tracker:  d.Tracker,
		limiter:  d.Limiter,
		store:    d.Store,
		registry: d.Registry,
		now:      time.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: s.registry})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	s.router = s.routes(metrics)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(metrics *middleware.HTTPMetrics) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(metrics.Handler)
	r.Use(middleware.Recoverer(s.logger, s.writeError))
	r.Use(middleware.CORS([]string{s.cfg.FrontendURL}))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(s.rateLimited))
	}

	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.methodNotAllowed)

	r.Get("/", s.handleRoot)
	r.Get("/api/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	requireSession := middleware.RequireSession(s.guard, s.writeError)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.With(requireSession).Get("/me", s.handleMe)
		r.With(requireSession).Put("/password", s.handleUpdatePassword)
	})

	r.Route("/api/applications", func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/", s.handleCreateApplication)
		r.Get("/", s.handleListApplications)
		r.Get("/follow-ups", s.handleFollowUps)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetApplication)
			r.Put("/", s.handleUpdateApplication)
			r.Delete("/", s.handleDeleteApplication)
			r.Post("/interactions", s.handleAddInteraction)
		})
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr), zap.String("env", s.cfg.Env))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, Envelope{Success: true, Message: "Job Application Tracker API"})
}

// HealthStatus is the data of the health response.
type HealthStatus struct {
	Timestamp time.Time `json:"timestamp"`
	Store     string    `json:"store"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Timestamp: s.now().UTC(), Store: "ok"}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			status.Store = "unavailable"
			s.jsonResponse(w, http.StatusServiceUnavailable, Envelope{Success: false, Message: "Store unavailable", Data: status})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, Envelope{Success: true, Message: "Server is healthy", Data: status})
}
