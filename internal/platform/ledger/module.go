package ledger

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/pkg/config"
)

const keyPrefix = "gachapon:ledger:"

// New returns a redis-backed ledger when redis.url is set, otherwise an
// in-process one that only protects a single instance.
func New(lc fx.Lifecycle, cfg *config.Config, clk clock.Clock, log *zap.SugaredLogger) (Ledger, error) {
	if cfg.Redis.URL == "" {
		log.Warnw("redis.url is empty, using in-process ledger")
		return NewMemory(clk), nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			log.Infow("connected to redis", "addr", opts.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return NewRedis(client, keyPrefix), nil
}

var Module = fx.Options(
	fx.Provide(New),
)
