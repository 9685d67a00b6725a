package cache

import (
	"context"
	"time"

	"github.com/bilgisen/newskit/internal/config"
)

// Store remembers which headline keys a session has already seen
type Store interface {
	IsSeen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string, ttl time.Duration) error
	// ClearSeen removes every key that starts with scope
	ClearSeen(ctx context.Context, scope string) error
	Close() error
}

// New returns a Redis-backed store when REDIS_URL is set, otherwise an in-memory one
func New(cfg *config.Config) (Store, error) {
	if cfg.RedisURL == "" {
		return NewMemoryStore(cfg.RedisPrefix), nil
	}
	return NewRedisClient(cfg)
}
