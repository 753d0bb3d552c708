package broker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore persists the client-order-id generated for a given
// local OrderId so a process restart between submission and broker
// acknowledgement reuses the same id on retry instead of risking a
// duplicate fill, extending reuse past a single call's in-memory
// lifetime to survive a restart.
type IdempotencyStore interface {
	Get(ctx context.Context, orderID string) (string, bool, error)
	Set(ctx context.Context, orderID, clientOrderID string, ttl time.Duration) error
}

// RedisIdempotencyStore is a prefixed key namespace over a *redis.Client
// storing one client-order-id string per local order.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
}

func NewRedisIdempotencyStore(client *redis.Client, prefix string) *RedisIdempotencyStore {
	if prefix == "" {
		prefix = "execengine:idempotency:"
	}
	return &RedisIdempotencyStore{client: client, prefix: prefix}
}

func (s *RedisIdempotencyStore) key(orderID string) string { return s.prefix + orderID }

func (s *RedisIdempotencyStore) Get(ctx context.Context, orderID string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, orderID, clientOrderID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(orderID), clientOrderID, ttl).Err()
}
