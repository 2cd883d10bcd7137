package analyses

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper remembers delivered analysis ids for a bounded window.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDeduper returns nil when client is nil so callers can skip de-duplication.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisDeduper{client: client, ttl: ttl, prefix: "intake:analysis:delivered:"}
}

// FirstDelivery claims the id within scope; it returns false when an earlier delivery
// in the same scope already claimed it. Other scopes are unaffected.
func (d *RedisDeduper) FirstDelivery(ctx context.Context, scope, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+scope+":"+id, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("analyses: dedup claim: %w", err)
	}
	return ok, nil
}
