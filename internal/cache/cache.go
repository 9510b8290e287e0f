package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is a best-effort read-through cache. Implementations never
// surface errors: a failed Get is a miss, a failed Set or Invalidate is
// logged and dropped. Correctness must not depend on any entry existing.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

// GetJSON reads key and unmarshals it into out.
func GetJSON(ctx context.Context, c Cache, key string, out interface{}) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// SetJSON marshals value and stores it under key. Marshal failures are
// silently dropped, matching the best-effort contract.
func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.Set(ctx, key, raw, ttl)
}

// Noop discards everything; used when caching is disabled.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool)          { return nil, false }
func (Noop) Set(context.Context, string, []byte, time.Duration)  {}
func (Noop) Invalidate(context.Context, ...string)               {}
