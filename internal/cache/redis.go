package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Dial creates a client for addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: rdb}, nil
}

// Get returns the cached value for key. redis.Nil is mapped to a miss.
func (c *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores val under key. A zero ttl keeps the key until it is deleted.
func (c *RedisStore) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.client.Set(ctx, key, val, ttl).Err()
}

// Delete removes keys. Missing keys are ignored.
func (c *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close releases the underlying client.
func (c *RedisStore) Close() error {
	return c.client.Close()
}
