package app

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/fatflowers/gachapon/internal/app/api/server"
	"github.com/fatflowers/gachapon/internal/app/service/catalog"
	"github.com/fatflowers/gachapon/internal/app/service/credit"
	"github.com/fatflowers/gachapon/internal/app/service/eventlog"
	"github.com/fatflowers/gachapon/internal/app/service/inventory"
	notificationhandler "github.com/fatflowers/gachapon/internal/app/service/notification_handler"
	"github.com/fatflowers/gachapon/internal/app/service/payment"
	"github.com/fatflowers/gachapon/internal/app/service/play"
	"github.com/fatflowers/gachapon/internal/app/service/prize"
	"github.com/fatflowers/gachapon/internal/app/service/pushbridge"
	"github.com/fatflowers/gachapon/internal/app/service/qrcode"
	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/internal/app/service/session"
	"github.com/fatflowers/gachapon/internal/app/service/statistics"
	"github.com/fatflowers/gachapon/internal/platform/db"
	"github.com/fatflowers/gachapon/internal/platform/ledger"
	"github.com/fatflowers/gachapon/pkg/config"
	"github.com/fatflowers/gachapon/pkg/logger"
	"github.com/fatflowers/gachapon/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	fx.Provide(func() clock.Clock { return clock.New() }),
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	ledger.Module,
	relay.Module,
	catalog.Module,
	prize.Module,
	credit.Module,
	inventory.Module,
	qrcode.Module,
	eventlog.Module,
	statistics.Module,
	payment.Module,
	play.Module,
	session.Module,
	notificationhandler.Module,
	pushbridge.Module,
	server.Module,
)
