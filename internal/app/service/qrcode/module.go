package qrcode

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/pkg/config"
	"github.com/fatflowers/gachapon/pkg/metrics"
	"github.com/fatflowers/gachapon/pkg/tool"
)

func provideSealer(cfg *config.Config, log *zap.SugaredLogger) (*Sealer, error) {
	secret, salt := cfg.QR.Secret, cfg.QR.Salt
	if secret == "" && cfg.Env != config.EnvProd {
		log.Warnw("qr.secret is empty, using a random per-process key; issued codes will not survive a restart")
		secret = tool.RandomHex(32)
		if salt == "" {
			salt = tool.RandomHex(16)
		}
	}
	return NewSealer(salt, secret, cfg.QR.PreviousSecrets...)
}

func provideIssuer(db *gorm.DB, s *Sealer, clk clock.Clock, cfg *config.Config, log *zap.SugaredLogger, m *metrics.Business) *Issuer {
	return NewIssuer(Options{DB: db, Sealer: s, Clock: clk, TTL: cfg.QR.TTL, Log: log, Metrics: m})
}

var Module = fx.Options(
	fx.Provide(provideSealer, provideIssuer),
)
