package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Activate starts the summary, instrument and stake fetchers concurrently.
// State is observable while they are pending; the returned channel is closed
// once all three have settled. A failure in one fetcher never cancels the
// others.
func (d *Dashboard) Activate(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	// Plain Group: no derived context, so siblings keep running on failure.
	var g errgroup.Group
	g.Go(func() error { _ = d.RefreshSummary(ctx); return nil })
	g.Go(func() error { _ = d.RefreshInstruments(ctx); return nil })
	g.Go(func() error { _ = d.RefreshStakes(ctx); return nil })

	go func() {
		_ = g.Wait()
		close(done)
	}()
	return done
}

// RefreshSummary reloads the account summary. When the response embeds the
// user profile the session profile is replaced with it. A rejected
// credential expires the session.
func (d *Dashboard) RefreshSummary(ctx context.Context) error {
	sess := d.sessions.Current()
	if !sess.Authenticated() {
		return d.fetchFailed(ctx, ResourceSummary, domain.ErrNotAuthenticated, func(err error, now time.Time) {
			d.summary.fail(err, now)
		})
	}

	start := time.Now()
	summary, err := d.api.GetDashboard(ctx, sess.Credential)
	d.observeFetch(ResourceSummary, start, err)
	if d.superseded(sess) {
		return d.discard(ctx, ResourceSummary)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			d.sessions.Expire(ctx)
			d.emit(domain.EventSessionExpired, ResourceSummary, "", nil)
		}
		return d.fetchFailed(ctx, ResourceSummary, err, func(err error, now time.Time) {
			d.summary.fail(err, now)
		})
	}

	if summary.User != nil {
		d.sessions.SetProfile(sess.Credential, *summary.User)
	}

	d.mu.Lock()
	if d.superseded(sess) {
		d.mu.Unlock()
		return d.discard(ctx, ResourceSummary)
	}
	d.summary.set(summary, d.clock.Now())
	d.mu.Unlock()

	d.journalTrades(ctx, summary.RecentTrades)
	d.emit(domain.EventSummaryUpdated, ResourceSummary, "", map[string]any{
		"active_stakes": summary.ActiveStakes,
		"recent_trades": len(summary.RecentTrades),
	})
	return nil
}

// RefreshInstruments reloads the tradable instruments. The order draft symbol
// moves to the first loaded symbol when its current value is not listed.
func (d *Dashboard) RefreshInstruments(ctx context.Context) error {
	sess := d.sessions.Current()
	if !sess.Authenticated() {
		return d.fetchFailed(ctx, ResourceInstruments, domain.ErrNotAuthenticated, func(err error, now time.Time) {
			d.instruments.fail(err, now)
			d.loading = false
		})
	}

	start := time.Now()
	list, err := d.api.GetInstruments(ctx, sess.Credential)
	d.observeFetch(ResourceInstruments, start, err)
	if d.superseded(sess) {
		return d.discard(ctx, ResourceInstruments)
	}
	if err != nil {
		return d.fetchFailed(ctx, ResourceInstruments, err, func(err error, now time.Time) {
			d.instruments.fail(err, now)
			d.loading = false
		})
	}

	d.mu.Lock()
	if d.superseded(sess) {
		d.mu.Unlock()
		return d.discard(ctx, ResourceInstruments)
	}
	d.instruments.set(list, d.clock.Now())
	d.loading = false
	if syms := symbolsOf(list); len(syms) > 0 && !slices.Contains(syms, d.orderDraft.Symbol) {
		d.orderDraft.Symbol = syms[0]
	}
	d.mu.Unlock()

	d.emit(domain.EventInstrumentsUpdated, ResourceInstruments, "", map[string]any{"count": len(list)})
	return nil
}

// RefreshStakes reloads every stake of the user, active or not.
func (d *Dashboard) RefreshStakes(ctx context.Context) error {
	sess := d.sessions.Current()
	if !sess.Authenticated() {
		return d.fetchFailed(ctx, ResourceStakes, domain.ErrNotAuthenticated, func(err error, now time.Time) {
			d.stakes.fail(err, now)
		})
	}

	start := time.Now()
	stakes, err := d.api.GetStakes(ctx, sess.Credential)
	d.observeFetch(ResourceStakes, start, err)
	if d.superseded(sess) {
		return d.discard(ctx, ResourceStakes)
	}
	if err != nil {
		return d.fetchFailed(ctx, ResourceStakes, err, func(err error, now time.Time) {
			d.stakes.fail(err, now)
		})
	}

	d.mu.Lock()
	if d.superseded(sess) {
		d.mu.Unlock()
		return d.discard(ctx, ResourceStakes)
	}
	d.stakes.set(stakes, d.clock.Now())
	d.mu.Unlock()

	d.emit(domain.EventStakesUpdated, ResourceStakes, "", map[string]any{"count": len(stakes)})
	return nil
}

// RefreshHistory reloads the trade history (up to fifty trades, newest
// first). It is not part of activation; the history panel calls it on demand.
func (d *Dashboard) RefreshHistory(ctx context.Context) error {
	sess := d.sessions.Current()
	if !sess.Authenticated() {
		return d.fetchFailed(ctx, ResourceHistory, domain.ErrNotAuthenticated, func(err error, now time.Time) {
			d.history.fail(err, now)
		})
	}

	start := time.Now()
	trades, err := d.api.GetTradeHistory(ctx, sess.Credential)
	d.observeFetch(ResourceHistory, start, err)
	if d.superseded(sess) {
		return d.discard(ctx, ResourceHistory)
	}
	if err != nil {
		return d.fetchFailed(ctx, ResourceHistory, err, func(err error, now time.Time) {
			d.history.fail(err, now)
		})
	}

	d.mu.Lock()
	if d.superseded(sess) {
		d.mu.Unlock()
		return d.discard(ctx, ResourceHistory)
	}
	d.history.set(trades, d.clock.Now())
	d.mu.Unlock()

	d.journalTrades(ctx, trades)
	d.emit(domain.EventHistoryUpdated, ResourceHistory, "", map[string]any{"count": len(trades)})
	return nil
}

// fetchFailed records err on a slice via record (called with mu held), logs
// it and emits fetch_failed. The previous value stays in place.
func (d *Dashboard) fetchFailed(ctx context.Context, resource string, err error, record func(error, time.Time)) error {
	d.mu.Lock()
	record(err, d.clock.Now())
	d.mu.Unlock()

	d.logger.WarnContext(ctx, "fetch failed",
		slog.String("resource", resource),
		slog.String("error", err.Error()),
	)
	d.emit(domain.EventFetchFailed, resource, err.Error(), nil)
	return fmt.Errorf("dashboard: refresh %s: %w", resource, err)
}

// discard drops a response that arrived after the session changed.
func (d *Dashboard) discard(ctx context.Context, resource string) error {
	d.logger.DebugContext(ctx, "dropping response from previous session",
		slog.String("resource", resource),
	)
	return fmt.Errorf("dashboard: refresh %s: %w", resource, domain.ErrSessionChanged)
}

func (d *Dashboard) observeFetch(resource string, start time.Time, err error) {
	if d.recorder != nil {
		d.recorder.ObserveFetch(resource, time.Since(start), err)
	}
}

func symbolsOf(list []domain.Instrument) []string {
	out := make([]string, 0, len(list))
	for _, in := range list {
		out = append(out, in.Symbol)
	}
	return out
}
