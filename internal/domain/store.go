package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// CredentialStore persists the bearer credential of a session. Load returns
// ErrNotFound when nothing is stored under key.
type CredentialStore interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, token string) error
	Delete(ctx context.Context, key string) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only log of submissions and session events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// TradeJournal keeps a local copy of every trade the backend has reported
// so history stays reviewable offline.
type TradeJournal interface {
	Record(ctx context.Context, userID string, trades []Trade) error
	List(ctx context.Context, userID string, opts ListOpts) ([]Trade, error)
}
