package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannelPrefix = "tablebill.events."

// RedisPublisher fans events out over Redis pub/sub, one channel per event type.
type RedisPublisher struct {
	client     *redis.Client
	prefix     string
	maxRetries uint64
	log        *zap.Logger
}

func NewRedisPublisher(client *redis.Client, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:     client,
		prefix:     DefaultChannelPrefix,
		maxRetries: 3,
		log:        log.Named("events.redis"),
	}
}

func (p *RedisPublisher) Channel(eventType string) string {
	return p.prefix + eventType
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Second

	operation := func() error {
		return p.client.Publish(ctx, p.Channel(event.Type), payload).Err()
	}
	notify := func(err error, wait time.Duration) {
		p.log.Warn("publish retry",
			zap.String("event_type", event.Type),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, p.maxRetries), ctx),
		notify,
	)
}
