package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers keys for ttl. FirstSeen is true only for the first caller.
type Deduper struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewDeduper(rdb *redis.Client, prefix string, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (d *Deduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	return d.rdb.SetNX(ctx, d.prefix+key, 1, d.ttl).Result()
}

// Forget deletes key so the next FirstSeen reports true again.
func (d *Deduper) Forget(ctx context.Context, key string) error {
	return d.rdb.Del(ctx, d.prefix+key).Err()
}
