package locks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mobatt/mobatt-backend/internal/logger"
)

type redisLock struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

// NewRedisLock returns a JobLock backed by SET NX PX, so expiry survives a
// crashed process. The TTL is enforced server-side; no clock injection needed.
func NewRedisLock(client *redis.Client, prefix string, baseLog *logger.Logger) JobLock {
	if prefix == "" {
		prefix = "joblock:"
	}
	return &redisLock{client: client, prefix: prefix, log: baseLog.With("component", "RedisLock")}
}

func (l *redisLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *redisLock) Release(ctx context.Context, name string) error {
	return l.client.Del(ctx, l.prefix+name).Err()
}
