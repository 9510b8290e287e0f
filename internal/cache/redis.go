package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"messenger-service/internal/observability"
)

// Redis is a go-redis backed Cache.
type Redis struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedis constructs a Redis cache around an existing client.
func NewRedis(client *redis.Client, logger *zap.SugaredLogger) *Redis {
	return &Redis{client: client, logger: logger}
}

// Get fetches key; any error counts as a miss.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warnw("cache get failed", "key", key, "error", err)
		}
		observability.IncCacheOp("get", "miss")
		return nil, false
	}
	observability.IncCacheOp("get", "hit")
	return raw, true
}

// Set stores key with a TTL.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warnw("cache set failed", "key", key, "error", err)
		observability.IncCacheOp("set", "error")
		return
	}
	observability.IncCacheOp("set", "ok")
}

// Invalidate removes keys.
func (c *Redis) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warnw("cache invalidate failed", "keys", keys, "error", err)
		observability.IncCacheOp("invalidate", "error")
		return
	}
	observability.IncCacheOp("invalidate", "ok")
}
