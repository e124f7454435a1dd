package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/averix/internal/domain"
)

// eventBridge forwards dashboard events. With a bus every event is published
// on EventChannel and appended to the event log; hubs in any process relay
// it from there. Without a bus it goes straight to the local hub.
type eventBridge struct {
	bus    domain.SignalBus
	log    domain.EventLog
	local  func(data []byte)
	notify chan<- domain.Event
	logger *slog.Logger
}

func (b *eventBridge) run(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			b.forward(ctx, ev)
		}
	}
}

func (b *eventBridge) forward(ctx context.Context, ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.WarnContext(ctx, "event bridge: marshal event", slog.String("error", err.Error()))
		return
	}

	if b.bus != nil {
		if err := b.bus.Publish(ctx, EventChannel, data); err != nil {
			b.logger.WarnContext(ctx, "event bridge: publish",
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
		}
	} else if b.local != nil {
		b.local(data)
	}

	if b.log != nil {
		if err := b.log.Append(ctx, EventChannel, data); err != nil {
			b.logger.WarnContext(ctx, "event bridge: append",
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}

	if b.notify != nil {
		select {
		case b.notify <- ev:
		default:
			b.logger.WarnContext(ctx, "event bridge: notifier busy; dropping event",
				slog.String("kind", string(ev.Kind)),
			)
		}
	}
}
