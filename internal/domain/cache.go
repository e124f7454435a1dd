package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of dashboard events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// StreamMessage is one entry read back from an EventLog.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventLog keeps a bounded history of recent dashboard events.
type EventLog interface {
	Append(ctx context.Context, stream string, payload []byte) error
	Recent(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}
