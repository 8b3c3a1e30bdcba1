package play

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/internal/app/service/catalog"
	"github.com/fatflowers/gachapon/internal/app/service/credit"
	"github.com/fatflowers/gachapon/internal/app/service/inventory"
	"github.com/fatflowers/gachapon/internal/app/service/payment"
	"github.com/fatflowers/gachapon/internal/app/service/prize"
	"github.com/fatflowers/gachapon/internal/app/service/qrcode"
	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/pkg/metrics"
)

type params struct {
	fx.In

	DB        *gorm.DB
	Issuer    *qrcode.Issuer
	Credits   *credit.Service
	Inventory *inventory.Service
	Selector  *prize.Selector
	Catalog   *catalog.Service
	Payments  *payment.Engine
	Relay     *relay.Relay
	Clock     clock.Clock
	Log       *zap.SugaredLogger
	Metrics   *metrics.Business
}

func provideOrchestrator(lc fx.Lifecycle, p params) *Orchestrator {
	o := New(Options{
		DB:          p.DB,
		Credentials: p.Issuer,
		Credits:     p.Credits,
		Inventory:   p.Inventory,
		Selector:    p.Selector,
		Catalog:     p.Catalog,
		Payments:    p.Payments,
		Bus:         p.Relay,
		Clock:       p.Clock,
		Log:         p.Log,
		Metrics:     p.Metrics,
	})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			o.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			o.Stop()
			return nil
		},
	})
	return o
}

var Module = fx.Options(
	fx.Provide(provideOrchestrator),
)
