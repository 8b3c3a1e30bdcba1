package session

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/pkg/config"
)

func provideValidator(cfg *config.Config, clk clock.Clock, log *zap.SugaredLogger) (Validator, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock, "":
		log.Warnw("session validation uses mock tokens", "users", len(cfg.Auth.MockUsers))
		return NewMockValidator(cfg.Auth.MockUsers), nil
	case config.AuthModeJWT:
		return NewJWTValidator(cfg.Auth.HMACSecret, cfg.Auth.Issuer, cfg.Auth.Leeway, clk)
	}
	return nil, fmt.Errorf("unknown auth.mode %q", cfg.Auth.Mode)
}

var Module = fx.Options(
	fx.Provide(provideValidator),
)
