// Package server is the local bridge: an HTTP + WebSocket API exposing the
// dashboard state to a browser front end.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/server/handler"
	"github.com/alanyoungcy/averix/internal/server/middleware"
	"github.com/alanyoungcy/averix/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Dashboard *handler.DashboardHandler
	Session   *handler.SessionHandler
	Landing   *handler.LandingHandler
	Metrics   http.Handler
}

// Options carries the optional collaborators of the server.
type Options struct {
	Hub         *ws.Hub
	RateLimiter domain.RateLimiter
	Observe     middleware.Observer
}

// Server is the bridge HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered. The chain is
// CORS, logging, rate limiting, then auth; health and metrics stay open.
func NewServer(cfg Config, handlers Handlers, opts Options, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, opts, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed, wrapped handler. Exposed for tests.
func NewHandler(cfg Config, handlers Handlers, opts Options, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	d := handlers.Dashboard
	mux.HandleFunc("GET /api/dashboard", d.GetState)
	mux.HandleFunc("POST /api/dashboard/activate", d.Activate)
	mux.HandleFunc("PUT /api/dashboard/tab", d.SelectTab)
	mux.HandleFunc("DELETE /api/dashboard/notice", d.ClearNotice)
	mux.HandleFunc("POST /api/dashboard/refresh/{resource}", d.Refresh)
	mux.HandleFunc("GET /api/dashboard/order", d.GetOrder)
	mux.HandleFunc("PUT /api/dashboard/order", d.PutOrder)
	mux.HandleFunc("POST /api/dashboard/order/submit", d.SubmitOrder)
	mux.HandleFunc("GET /api/dashboard/stake", d.GetStake)
	mux.HandleFunc("PUT /api/dashboard/stake", d.PutStake)
	mux.HandleFunc("POST /api/dashboard/stake/submit", d.SubmitStake)
	mux.HandleFunc("GET /api/dashboard/journal", d.GetJournal)
	mux.HandleFunc("GET /api/dashboard/events", d.GetEvents)

	s := handlers.Session
	mux.HandleFunc("GET /api/session", s.GetSession)
	mux.HandleFunc("POST /api/session/login", s.Login)
	mux.HandleFunc("POST /api/session/logout", s.Logout)

	if l := handlers.Landing; l != nil {
		mux.HandleFunc("GET /api/landing", l.GetLanding)
		mux.HandleFunc("POST /api/landing/visibility", l.ReportVisibility)
	}

	if opts.Hub != nil {
		mux.HandleFunc("GET /ws", opts.Hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	if opts.RateLimiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(opts.RateLimiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(h)
	}
	h = middleware.Logging(logger, opts.Observe)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
