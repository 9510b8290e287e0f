package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"messenger-service/internal/observability"
)

// Memory is an in-process Cache with TTL expiry, used when Redis is not
// configured. Entries are local to one replica.
type Memory struct {
	store *gocache.Cache
}

// NewMemory constructs a Memory cache. The janitor evicts expired
// entries once a minute.
func NewMemory() *Memory {
	return &Memory{store: gocache.New(time.Hour, time.Minute)}
}

// Get fetches key.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	val, ok := c.store.Get(key)
	if !ok {
		observability.IncCacheOp("get", "miss")
		return nil, false
	}
	raw, ok := val.([]byte)
	if !ok {
		observability.IncCacheOp("get", "miss")
		return nil, false
	}
	observability.IncCacheOp("get", "hit")
	return raw, true
}

// Set stores key with a TTL.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.store.Set(key, value, ttl)
	observability.IncCacheOp("set", "ok")
}

// Invalidate removes keys.
func (c *Memory) Invalidate(_ context.Context, keys ...string) {
	for _, key := range keys {
		c.store.Delete(key)
	}
	observability.IncCacheOp("invalidate", "ok")
}
