package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/classeye/classeye/internal/config"
	"github.com/classeye/classeye/internal/insights"
	"github.com/classeye/classeye/internal/pipeline"
	"github.com/classeye/classeye/internal/storage"
	"github.com/classeye/classeye/internal/web/handlers"
	"github.com/classeye/classeye/internal/web/middleware"
)

// Deps carries everything the request handlers reach into.
type Deps struct {
	Sessions    *pipeline.Manager
	Broadcaster *handlers.Broadcaster
	Students    storage.StudentReader
	Attendance  storage.AttendanceStore
	Classes     storage.ClassStore
	Insights    *insights.Service
	Log         *slog.Logger
}

// Server is the HTTP face of the engine: the dashboard, the live
// video and event streams, and the attendance API.
type Server struct {
	config     *config.Config
	deps       Deps
	log        *slog.Logger
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a web server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	r := chi.NewRouter()

	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		log:    log,
		router: r,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// No write timeout: video and event streams stay open for the
		// whole lesson. Plain API routes get a per-request timeout from
		// the router instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
