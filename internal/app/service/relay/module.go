package relay

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/pkg/config"
	"github.com/fatflowers/gachapon/pkg/metrics"
)

func provideRelay(lc fx.Lifecycle, cfg *config.Config, clk clock.Clock, log *zap.SugaredLogger, m *metrics.Business) *Relay {
	r := New(clk, cfg.Relay.HeartbeatInterval, log, m)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			r.Stop()
			return nil
		},
	})
	return r
}

var Module = fx.Options(
	fx.Provide(provideRelay),
)
