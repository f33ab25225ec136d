// Package web serves the dashboard API: run statistics, known people,
// visit history, the live tracked set and a server-sent event stream of
// entry/exit events.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-tracker/internal/config"
	"github.com/kozaktomas/face-tracker/internal/pipeline"
	"github.com/kozaktomas/face-tracker/internal/store"
	"github.com/kozaktomas/face-tracker/internal/track"
)

// Server is the dashboard HTTP server. tracker and progress are nil when no
// processing run is active in this process; the live endpoint then reports
// inactive.
type Server struct {
	store      store.Store
	tracker    *track.Tracker
	progress   *pipeline.ProgressState
	hub        *EventHub
	logger     *zap.Logger
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates the dashboard server. hub may be nil; a fresh hub is
// created so the SSE endpoint always works.
func NewServer(
	cfg *config.WebConfig,
	st store.Store,
	tracker *track.Tracker,
	progress *pipeline.ProgressState,
	hub *EventHub,
	logger *zap.Logger,
) *Server {
	if hub == nil {
		hub = NewEventHub()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	s := &Server{
		store:    st,
		tracker:  tracker,
		progress: progress,
		hub:      hub,
		logger:   logger,
		router:   r,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/people", s.handlePeople)
		r.Get("/visits", s.handleVisits)
		r.Get("/live", s.handleLive)
		r.Get("/events", s.handleEvents)
		r.Put("/people/{id}/name", s.handleSetName)
	})
}

// Hub returns the event hub so the pipeline can publish into it.
func (s *Server) Hub() *EventHub {
	return s.hub
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
