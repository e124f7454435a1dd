package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/averix/internal/domain"
	"github.com/redis/go-redis/v9"
)

// CredentialStore implements domain.CredentialStore on plain Redis strings.
// A non-zero ttl bounds how long a stored credential survives.
type CredentialStore struct {
	c   *Client
	ttl time.Duration
}

// NewCredentialStore creates a CredentialStore backed by the given Client.
func NewCredentialStore(c *Client, ttl time.Duration) *CredentialStore {
	return &CredentialStore{c: c, ttl: ttl}
}

func (s *CredentialStore) Load(ctx context.Context, key string) (string, error) {
	tok, err := s.c.rdb.Get(ctx, s.c.key("session", key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: load credential %s: %w", key, err)
	}
	return tok, nil
}

func (s *CredentialStore) Save(ctx context.Context, key, token string) error {
	if err := s.c.rdb.Set(ctx, s.c.key("session", key), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: save credential %s: %w", key, err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, key string) error {
	if err := s.c.rdb.Del(ctx, s.c.key("session", key)).Err(); err != nil {
		return fmt.Errorf("redis: delete credential %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CredentialStore = (*CredentialStore)(nil)
