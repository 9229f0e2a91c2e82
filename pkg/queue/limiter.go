package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window counter shared by every process using the same key.
type Limiter struct {
	rdb    *redis.Client
	key    string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewLimiter(rdb *redis.Client, key string, limit int64, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{rdb: rdb, key: key, limit: limit, window: window, now: time.Now}
}

// Allow takes one slot in the current window. When the window is full it
// returns false and the time until the next window opens.
func (l *Limiter) Allow(ctx context.Context) (bool, time.Duration, error) {
	if l.limit <= 0 {
		return true, 0, nil
	}

	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	key := fmt.Sprintf("%s:%d", l.key, slot)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", l.key, err)
	}

	if incr.Val() > l.limit {
		retry := l.window - time.Duration(now.UnixNano()%int64(l.window))
		return false, retry, nil
	}
	return true, 0, nil
}

// Wait blocks until a slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		ok, retry, err := l.Allow(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
