package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("APP_CONFIG_NAME", "does-not-exist")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvDev, c.Env)
	require.Equal(t, 8888, c.Server.Port)
	require.Equal(t, DBDriverSQLite, c.Database.Driver)
	require.Equal(t, 15*time.Minute, c.Payment.IntentTTL)
	require.Equal(t, 2*time.Second, c.Payment.CompletionDelay)
	require.Equal(t, 2*time.Minute, c.QR.TTL)
	require.Equal(t, 30*time.Second, c.Relay.HeartbeatInterval)
	require.Len(t, c.Catalog.Machines, 6)
	require.Len(t, c.Catalog.Prizes, 8)
	require.Len(t, c.Catalog.Events, 5)
	require.Equal(t, "player_456", c.Auth.MockUsers["dev_player_token"].UserID)
}

func TestNew_EnvOverride(t *testing.T) {
	t.Setenv("APP_CONFIG_NAME", "does-not-exist")
	t.Setenv("APP_QR_TTL", "90s")
	t.Setenv("APP_PAYMENT_CURRENCY", "SGD")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, c.QR.TTL)
	require.Equal(t, "SGD", c.Payment.Currency)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "dev allows empty secrets", cfg: Config{Env: EnvDev}},
		{name: "prod requires qr secret", cfg: Config{Env: EnvProd, Auth: AuthConfig{Mode: AuthModeJWT, HMACSecret: "s"}, Machine: MachineConfig{APIKey: "k"}, Gateway: GatewayConfig{WebhookSecret: "w"}}, wantErr: true},
		{name: "prod rejects mock auth", cfg: Config{Env: EnvProd, QR: QRConfig{Secret: "a", Salt: "b"}, Auth: AuthConfig{Mode: AuthModeMock}, Machine: MachineConfig{APIKey: "k"}, Gateway: GatewayConfig{WebhookSecret: "w"}}, wantErr: true},
		{name: "prod complete", cfg: Config{Env: EnvProd, QR: QRConfig{Secret: "a", Salt: "b"}, Auth: AuthConfig{Mode: AuthModeJWT, HMACSecret: "s"}, Machine: MachineConfig{APIKey: "k"}, Gateway: GatewayConfig{WebhookSecret: "w"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
