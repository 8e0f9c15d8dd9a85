package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewStore),
	fx.Provide(ProvideLimiter),
)

// NewRedisClient connects to REDIS_URL. It returns nil when no URL is set.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	url := strings.TrimSpace(cfg.RedisURL)
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Info("redis configured", zap.String("addr", opts.Addr))
	return client, nil
}

// NewStore picks the shared redis store when a client exists, memory otherwise.
func NewStore(client *redis.Client, c clock.Clock) Store {
	if client != nil {
		return NewRedisStore(client, c)
	}
	return NewMemoryStore(c)
}

func ProvideLimiter(cfg config.Config, store Store, policies *config.RateLimitConfigHolder, c clock.Clock, log *zap.Logger) *Limiter {
	return NewLimiter(cfg.Features().RateLimiting, store, policies, c, log)
}
