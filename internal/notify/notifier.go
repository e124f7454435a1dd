// Package notify forwards dashboard events to chat channels (Telegram,
// Discord). Events are filtered by kind so operators receive only the alerts
// they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/averix/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches dashboard events to one or more Senders.
type Notifier struct {
	senders []Sender
	events  map[domain.EventKind]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for the given senders. Only event kinds
// listed in events are forwarded; an empty list forwards everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventKind]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventKind(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Allows reports whether events of kind pass the filter.
func (n *Notifier) Allows(kind domain.EventKind) bool {
	return len(n.events) == 0 || n.events[kind]
}

// Notify sends ev to every sender if its kind passes the filter.
func (n *Notifier) Notify(ctx context.Context, ev domain.Event) error {
	if !n.Allows(ev.Kind) {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", string(ev.Kind)),
		)
		return nil
	}
	title, message := Format(ev)
	return n.dispatch(ctx, title, message)
}

// Run forwards events until ctx is done or events is closed. Delivery
// failures are logged and do not stop the loop.
func (n *Notifier) Run(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = n.Notify(ctx, ev)
		}
	}
}

// Format renders ev as a title and body.
func Format(ev domain.Event) (title, message string) {
	switch ev.Kind {
	case domain.EventOrderPlaced:
		title = "Trade placed"
	case domain.EventOrderFailed:
		title = "Trade rejected"
	case domain.EventStakeCreated:
		title = "Stake created"
	case domain.EventStakeFailed:
		title = "Stake rejected"
	case domain.EventSessionExpired:
		title = "Session expired"
	case domain.EventFetchFailed:
		title = "Refresh failed: " + ev.Resource
	default:
		title = strings.ReplaceAll(string(ev.Kind), "_", " ")
	}

	var b strings.Builder
	b.WriteString(ev.Message)
	for _, k := range []string{"symbol", "side", "amount", "price", "duration_days", "error"} {
		if v, ok := ev.Detail[k]; ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s: %v", k, v)
		}
	}
	return title, b.String()
}

// dispatch sends to every sender. A failing sender does not prevent
// delivery to the rest; failures are joined into one error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
