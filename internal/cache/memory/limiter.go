// Package memory provides single-process fallbacks for the Redis-backed
// domain adapters.
package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/averix/internal/domain"
)

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// A bucket refills limit tokens per window and bursts up to limit.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*rate.Limiter)}
}

func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.Allow(), nil
}

// LockManager implements domain.LockManager within one process.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]time.Time), nowFn: time.Now}
}

// Acquire takes key until unlock is called or ttl passes.
func (m *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	if until, ok := m.held[key]; ok && now.Before(until) {
		return nil, domain.ErrLockHeld
	}
	until := now.Add(ttl)
	m.held[key] = until

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.held[key].Equal(until) {
				delete(m.held, key)
			}
		})
	}, nil
}

// Compile-time interface checks.
var (
	_ domain.RateLimiter = (*RateLimiter)(nil)
	_ domain.LockManager = (*LockManager)(nil)
)
