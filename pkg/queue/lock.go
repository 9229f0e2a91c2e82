package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another worker")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out expiring single-holder locks keyed by name.
type Locker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewLocker(rdb *redis.Client, prefix string, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Lock is a held lock. Release only deletes the key while this holder still owns it.
type Lock struct {
	rdb   *redis.Client
	key   string
	token string
}

func (l *Locker) Acquire(ctx context.Context, name string) (*Lock, error) {
	key := l.prefix + name
	token := uuid.New().String()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{rdb: l.rdb, key: key, token: token}, nil
}

// AcquireWait retries Acquire every retryEvery until wait elapses.
func (l *Locker) AcquireWait(ctx context.Context, name string, wait, retryEvery time.Duration) (*Lock, error) {
	deadline := time.Now().Add(wait)
	for {
		lock, err := l.Acquire(ctx, name)
		if !errors.Is(err, ErrLockHeld) {
			return lock, err
		}
		if time.Now().Add(retryEvery).After(deadline) {
			return nil, ErrLockHeld
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryEvery):
		}
	}
}

func (lk *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, lk.rdb, []string{lk.key}, lk.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", lk.key, err)
	}
	return nil
}
