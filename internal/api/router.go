// Package api implements a read-only HTTP introspection surface: the
// externally-visible analogue of the source's UART print routines, never
// on the real-time path.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ptl/internal/core"
	"ptl/internal/serial"
)

// Server holds the HTTP introspection server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	engine     *core.Engine
	logger     *slog.Logger
	authToken  string
	console    *serial.Port
}

// NewServer constructs the HTTP introspection server. Trace dumps served
// over HTTP are mirrored to console, the same io.Writer surface the
// process prints its own final statistics dump to on shutdown.
func NewServer(addr, authToken string, engine *core.Engine, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		engine:    engine,
		logger:    logger,
		authToken: authToken,
		console:   serial.Stdout(),
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{name}", s.handleGetTask)
		r.Get("/tasks/{name}/policy", s.handleGetTaskPolicy)
		r.Get("/trace", s.handleTraceStatistics)
		r.Get("/trace/dump", s.handleTraceDump)
		r.Get("/config", s.handleConfig)
	})
}
