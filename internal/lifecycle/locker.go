package lifecycle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker serializes cascades with a per-user SETNX lock.
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker constructs a locker.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// Acquire takes the lock if it is free.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// Release frees the lock.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, key).Err()
}

var _ Locker = (*RedisLocker)(nil)
