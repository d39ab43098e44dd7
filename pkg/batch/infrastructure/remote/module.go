package remote

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
)

// NewDispatchConfigProvider extracts the dispatch settings from *Config.
func NewDispatchConfigProvider(cfg *config.Config) config.DispatchConfig {
	return cfg.Importer.Dispatch
}

func newRedisClient(lc fx.Lifecycle, cfg config.DispatchConfig) *redis.Client {
	client := NewRedisClient(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

// Module provides the Redis client, the dispatcher (as port.Redispatcher) and the consumer.
var Module = fx.Options(
	fx.Provide(NewDispatchConfigProvider),
	fx.Provide(newRedisClient),
	fx.Provide(func(c *redis.Client) StreamClient { return c }),
	fx.Provide(fx.Annotate(
		NewStreamDispatcher,
		fx.As(new(port.Redispatcher)),
	)),
	fx.Provide(NewStreamConsumer),
)
