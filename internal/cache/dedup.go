package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL is how long processed webhook events are remembered.
const DefaultDedupTTL = 72 * time.Hour

// Dedup remembers keys such as webhook event ids in Valkey.
type Dedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedup creates a Dedup. A zero ttl uses DefaultDedupTTL.
func NewDedup(client *redis.Client, ttl time.Duration) *Dedup {
	if ttl == 0 {
		ttl = DefaultDedupTTL
	}
	return &Dedup{client: client, ttl: ttl}
}

// FirstSeen records key and reports whether it was not already recorded.
func (d *Dedup) FirstSeen(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, "dedup:"+key, 1, d.ttl).Result()
}

// Forget removes key.
func (d *Dedup) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, "dedup:"+key).Err()
}
