// Package server provides the HTTP control surface for sosfinder: the REST
// API, the annotated MJPEG preview, the websocket status feed and /metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"

	"github.com/ayusman/sosfinder/internal/app"
	"github.com/ayusman/sosfinder/internal/metrics"
	"github.com/ayusman/sosfinder/internal/server/api"
	"github.com/ayusman/sosfinder/internal/store"
)

// Config holds the server configuration. Routes are only registered for
// the collaborators that are set.
type Config struct {
	StaticDir string
	App       *app.App
	Store     *store.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// AccessLog receives one combined-format line per request when set.
	AccessLog io.Writer
	// AllowedOrigins for CORS. Defaults to any origin.
	AllowedOrigins []string
}

// Server represents the HTTP server for the sosfinder application.
type Server struct {
	config  Config
	router  chi.Router
	handler http.Handler
	logger  *slog.Logger
	start   time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Metrics == nil && config.App != nil {
		config.Metrics = config.App.Metrics()
	}

	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: logger.With("component", "server"),
		start:  time.Now(),
	}
	s.setupRoutes()

	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	var h http.Handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(s.router)
	if config.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(config.AccessLog, h)
	}
	s.handler = h

	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	if a := s.config.App; a != nil {
		r.Get("/api/status", s.handleStatus)
		r.Post("/api/session/start", s.handleStart)
		r.Post("/api/session/stop", s.handleStop)
		r.Post("/api/session/reset", s.handleReset)

		r.Mount("/api/settings", api.NewSettingsHandler(a).Routes())
		r.Method(http.MethodGet, "/api/stream", NewStreamHandler(a))
		r.Method(http.MethodGet, "/api/events", NewEventsHandler(a, s.logger))
	}

	if st := s.config.Store; st != nil {
		var runtime api.ChannelRuntime
		if s.config.App != nil {
			runtime = s.config.App
		}
		r.Mount("/api/channels", api.NewChannelHandler(st, runtime, s.logger).Routes())
		r.Mount("/api/alerts", api.NewAlertHandler(st).Routes())
	}

	if m := s.config.Metrics; m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	// Serve static files if StaticDir is configured
	switch {
	case s.config.StaticDir != "":
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	case s.config.App != nil:
		r.Get("/", s.handleDashboard)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	writeJSON(w, http.StatusOK, response)
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.App.Snapshot())
}

// handleStart handles POST /api/session/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.config.App.Start(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.config.App.Snapshot())
}

// handleStop handles POST /api/session/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.config.App.Stop()
	writeJSON(w, http.StatusOK, s.config.App.Snapshot())
}

// handleReset handles POST /api/session/reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.config.App.Reset(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, app.ErrNotRunning) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, s.config.App.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
