package payment

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/catalog"
	"github.com/fatflowers/gachapon/internal/app/service/credit"
	"github.com/fatflowers/gachapon/internal/app/service/eventlog"
	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/internal/platform/ledger"
	"github.com/fatflowers/gachapon/pkg/config"
	"github.com/fatflowers/gachapon/pkg/metrics"
)

type engineParams struct {
	fx.In

	Store   *Store
	Catalog *catalog.Service
	Credits *credit.Service
	Relay   *relay.Relay
	Ledger  ledger.Ledger
	Events  *eventlog.Service
	Clock   clock.Clock
	Config  *config.Config
	Log     *zap.SugaredLogger
	Metrics *metrics.Business
}

func provideEngine(lc fx.Lifecycle, p engineParams) *Engine {
	e := NewEngine(Options{
		Store:     p.Store,
		Catalog:   p.Catalog,
		Credits:   p.Credits,
		Publisher: p.Relay,
		Ledger:    p.Ledger,
		Events:    p.Events,
		Clock:     p.Clock,
		Settings: Settings{
			Currency:        p.Config.Payment.Currency,
			IntentTTL:       p.Config.Payment.IntentTTL,
			CompletionDelay: p.Config.Payment.CompletionDelay,
			PollAttempts:    p.Config.Payment.PollAttempts,
			PollInterval:    p.Config.Payment.PollInterval,
		},
		Log:     p.Log,
		Metrics: p.Metrics,
	})
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		e.Stop()
		return nil
	}})
	return e
}

var Module = fx.Options(
	fx.Provide(NewStore, provideEngine),
)
