// Package app runs the averix bridge. It wires the backend client, session
// and dashboard with whichever of Redis, Postgres, S3 and the notifiers are
// configured, then runs the goroutines of the selected mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/averix/internal/config"
)

// Operating modes.
const (
	ModeServe   = "serve"
	ModeMonitor = "monitor"
)

// App owns the configuration and the cleanup of everything Wire opened.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App. Nothing is connected until Run.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies and blocks in the configured mode until ctx is
// cancelled or the mode fails. Resources stay open until Close.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	a.logger.InfoContext(ctx, "starting averix",
		slog.String("mode", mode),
		slog.String("api", a.cfg.API.BaseURL),
		slog.Bool("redis", a.cfg.Redis.Enabled),
		slog.Bool("supabase", a.cfg.Supabase.Enabled),
		slog.Bool("s3", a.cfg.S3.Enabled),
	)
	a.logger.DebugContext(ctx, "configuration", slog.Any("config", config.RedactedConfig(a.cfg)))

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch mode {
	case ModeServe:
		return a.ServeMode(ctx, deps)
	case ModeMonitor:
		return a.MonitorMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close releases resources in reverse order. Later calls are no-ops.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
