package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/alanyoungcy/averix/internal/server"
	"github.com/alanyoungcy/averix/internal/server/handler"
	"github.com/alanyoungcy/averix/internal/server/ws"
)

const (
	eventBuffer    = 256
	exportTimeout  = 2 * time.Minute
	shutdownPeriod = 5 * time.Second
)

// ServeMode runs the dashboard bridge: the HTTP API, the WebSocket hub, the
// event bridge to Redis and notifications, and the scheduled snapshot export.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	_, _ = a.restoreSession(ctx, deps)

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(ws.Config{
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Snapshot:       func() any { return deps.Dashboard.View() },
		OnClients:      deps.Metrics.SetWSClients,
	}, a.logger)
	if deps.SignalBus != nil {
		hub.WithBus(deps.SignalBus, EventChannel)
	}
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	a.startEventBridge(ctx, g, deps, hub)
	a.startHTTPServer(ctx, g, deps, hub)
	a.startExportSchedule(ctx, g, deps)

	if deps.Sessions.Current().Authenticated() {
		deps.Dashboard.Activate(ctx)
	}

	return g.Wait()
}

// MonitorMode keeps the dashboard fresh without serving it: it refreshes
// every slice on an interval, logs and notifies state transitions, and runs
// the scheduled export. Nothing is submitted.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Duration("interval", a.cfg.Dashboard.RefreshInterval.Duration),
	)

	if _, err := a.restoreSession(ctx, deps); err != nil {
		return fmt.Errorf("monitor mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	a.startEventBridge(ctx, g, deps, nil)
	a.startExportSchedule(ctx, g, deps)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Dashboard.RefreshInterval.Duration)
		defer ticker.Stop()

		for {
			a.refreshAll(ctx, deps)
			if !deps.Sessions.Current().Authenticated() {
				return fmt.Errorf("monitor mode: %w", domain.ErrNotAuthenticated)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}

// ExportSnapshot uploads the current dashboard snapshot once.
func (a *App) ExportSnapshot(ctx context.Context, deps *Dependencies) error {
	if deps.Exporter == nil {
		return fmt.Errorf("app: export: s3 is not enabled")
	}
	if !deps.Sessions.Current().Authenticated() {
		return fmt.Errorf("app: export: %w", domain.ErrNotAuthenticated)
	}
	_, err := deps.Exporter.Export(ctx, deps.Dashboard.Snapshot())
	deps.Metrics.ObserveExport(err)
	return err
}

// restoreSession loads the stored credential. A missing credential is not
// fatal in serve mode; the bridge then waits for a login.
func (a *App) restoreSession(ctx context.Context, deps *Dependencies) (bool, error) {
	sess, err := deps.Sessions.Restore(ctx)
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		a.logger.InfoContext(ctx, "no stored session; waiting for login")
		return false, err
	case err != nil && sess.Authenticated():
		a.logger.WarnContext(ctx, "session restored without profile", slog.String("error", err.Error()))
		return true, nil
	case err != nil:
		a.logger.ErrorContext(ctx, "session restore failed", slog.String("error", err.Error()))
		return false, err
	}
	a.logger.InfoContext(ctx, "session restored", slog.Time("expires_at", sess.ExpiresAt))
	return true, nil
}

// refreshAll reloads every slice and waits for the fetchers to settle.
func (a *App) refreshAll(ctx context.Context, deps *Dependencies) {
	select {
	case <-deps.Dashboard.Activate(ctx):
	case <-ctx.Done():
		return
	}
	_ = deps.Dashboard.RefreshHistory(ctx)

	view := deps.Dashboard.View()
	attrs := []any{
		slog.Int("success_rate", view.SuccessRate),
		slog.Int("active_stakes", len(view.ActiveStakeViews)),
	}
	if view.Summary.Loaded {
		attrs = append(attrs,
			slog.String("total_staked", view.Summary.Value.TotalStaked.String()),
			slog.String("total_rewards", view.Summary.Value.TotalRewards.String()),
		)
	}
	a.logger.InfoContext(ctx, "dashboard refreshed", attrs...)
}

// startEventBridge subscribes to dashboard events and fans them out to the
// signal bus and event log (or the local hub), and to the notifier.
func (a *App) startEventBridge(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub) {
	events := make(chan domain.Event, eventBuffer)
	unsubscribe := deps.Dashboard.Subscribe(func(ev domain.Event) {
		select {
		case events <- ev:
		default:
			a.logger.Warn("event bridge: queue full; dropping event", slog.String("kind", string(ev.Kind)))
		}
	})

	var notifyCh chan domain.Event
	if deps.Notifier.Enabled() {
		notifyCh = make(chan domain.Event, eventBuffer)
		g.Go(func() error {
			deps.Notifier.Run(ctx, notifyCh)
			return nil
		})
	}

	b := &eventBridge{
		bus:    deps.SignalBus,
		log:    deps.EventLog,
		notify: notifyCh,
		logger: a.logger,
	}
	if hub != nil && deps.SignalBus == nil {
		b.local = hub.Broadcast
	}

	g.Go(func() error {
		defer unsubscribe()
		b.run(ctx, events)
		return nil
	})
}

// startHTTPServer adds the HTTP server and its graceful shutdown to g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub) {
	checks := deps.Checks
	checks["backend"] = func(ctx context.Context) error {
		_, err := deps.Client.GetPublicStats(ctx)
		return err
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(checks, a.logger),
		Dashboard: handler.NewDashboardHandler(deps.Dashboard, deps.Journal, deps.EventLog, EventChannel, a.logger),
		Session:   handler.NewSessionHandler(deps.Sessions, a.logger),
		Landing:   handler.NewLandingHandler(deps.Tracker, deps.Client, a.logger),
		Metrics:   deps.Metrics.Handler(),
	}
	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, server.Options{
		Hub:         hub,
		RateLimiter: deps.RateLimiter,
		Observe:     deps.Metrics.ObserveRequest,
	}, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startExportSchedule runs ExportSnapshot on the export cron schedule. It is a
// no-op without an exporter or a schedule.
func (a *App) startExportSchedule(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Exporter == nil || a.cfg.Export.Cron == "" {
		return
	}

	c := cron.New()
	_, err := c.AddFunc(a.cfg.Export.Cron, func() {
		exportCtx, cancel := context.WithTimeout(ctx, exportTimeout)
		defer cancel()
		if err := a.ExportSnapshot(exportCtx, deps); err != nil {
			a.logger.WarnContext(exportCtx, "scheduled export failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "invalid export schedule; export disabled",
			slog.String("cron", a.cfg.Export.Cron),
			slog.String("error", err.Error()),
		)
		return
	}

	c.Start()
	a.logger.InfoContext(ctx, "export scheduled", slog.String("cron", a.cfg.Export.Cron))

	g.Go(func() error {
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	})
}
