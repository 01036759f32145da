package redis

import (
	"context"
	"fmt"
	"time"

	"campusdrive/internal/common"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only if it still holds our value, so an
// expired lock picked up by someone else is never released from under them.
var releaseScript = redis.NewScript(`
    if redis.call("get", KEYS[1]) == ARGV[1] then
        return redis.call("del", KEYS[1])
    else
        return 0
    end
`)

// Locker hands out named mutual-exclusion locks backed by Redis SET NX with a
// TTL. Used to serialize the per-drive rank recompute across instances.
type Locker struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewLocker(rdb *redis.Client, keyPrefix string, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, keyPrefix: keyPrefix, ttl: ttl}
}

// Acquire takes the lock for name, retrying until ctx is done. It returns a
// release func that must be called when the critical section ends.
func (l *Locker) Acquire(ctx context.Context, name string) (func(), error) {
	key := l.keyPrefix + ":" + name
	value := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, key, value, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, common.ErrInternalServer)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}

	release := func() {
		releaseScript.Run(context.Background(), l.rdb, []string{key}, value)
	}
	return release, nil
}
