package entitlements

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the subset of the go-redis client the cache needs.
type RedisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache memoises decisions of another Checker in Redis. Redis errors degrade to calling the
// wrapped checker; errors of the wrapped checker are never cached.
type Cache struct {
	next   Checker
	rdb    RedisStore
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewCache(next Checker, rdb RedisStore, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{next: next, rdb: rdb, ttl: ttl, prefix: "entitlements:", logger: logger}
}

func (c *Cache) key(providerID, feature string) string {
	return c.prefix + providerID + ":" + feature
}

func (c *Cache) CanUse(ctx context.Context, providerID string, feature string) (bool, error) {
	key := c.key(providerID, feature)
	v, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return v == "1", nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("entitlement cache read failed", "err", err, "provider_id", providerID)
	}

	allowed, err := c.next.CanUse(ctx, providerID, feature)
	if err != nil {
		return false, err
	}
	val := "0"
	if allowed {
		val = "1"
	}
	if err := c.rdb.Set(ctx, key, val, c.ttl).Err(); err != nil {
		c.logger.Warn("entitlement cache write failed", "err", err, "provider_id", providerID)
	}
	return allowed, nil
}

// Invalidate drops cached decisions of the provider for the given features.
func (c *Cache) Invalidate(ctx context.Context, providerID string, features ...string) error {
	if len(features) == 0 {
		return nil
	}
	keys := make([]string, 0, len(features))
	for _, f := range features {
		keys = append(keys, c.key(providerID, f))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
