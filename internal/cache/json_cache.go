package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// JSONCache stores values of T as JSON under a key prefix. A nil client makes
// every lookup a miss and every write a no-op.
type JSONCache[T any] struct {
	client *redis.Client
	prefix string
}

func NewJSONCache[T any](client *redis.Client, prefix string) *JSONCache[T] {
	return &JSONCache[T]{client: client, prefix: prefix}
}

func (c *JSONCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if c == nil || c.client == nil {
		return zero, false, nil
	}
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

func (c *JSONCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
}
