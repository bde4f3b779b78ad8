package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/katalis/laku/internal/port"
)

const (
	idempotencyKeyPrefix  = "laku:sale-request:"
	defaultIdempotencyTTL = 24 * time.Hour
)

// RedisAdapter guards sale submissions with SETNX keys shared by every
// server instance. It never holds inventory or sales state.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

var _ port.IdempotencyGuard = (*RedisAdapter)(nil)

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
