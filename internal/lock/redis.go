package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when this locker set it, so a lock
// that expired and was re-acquired elsewhere is never released by the
// old holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker implements Locker on Redis SET NX. Suitable for
// multi-instance deployments sharing one Redis.
type RedisLocker struct {
	client redis.UniversalClient
	id     string
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a Redis-backed locker. id identifies this
// process as the lock holder.
func NewRedisLocker(client redis.UniversalClient, id string) *RedisLocker {
	return &RedisLocker{client: client, id: id}
}

// Acquire attempts to take the lock.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, l.id, ttl).Result()
}

// AcquireWithRetry retries acquisition with a fixed delay.
func (l *RedisLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for attempt := 0; ; attempt++ {
		acquired, err := l.Acquire(ctx, key, ttl)
		if err != nil || acquired {
			return acquired, err
		}
		if attempt >= maxRetries {
			return false, nil
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// Release releases the lock if this locker holds it.
func (l *RedisLocker) Release(ctx context.Context, key string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.client, []string{key}, l.id).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
