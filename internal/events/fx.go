package events

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

func NewPublisher(client *redis.Client, log *zap.Logger) Publisher {
	if client == nil {
		return NewLogPublisher(log)
	}
	return NewRedisPublisher(client, log)
}
