package pushbridge

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	pubnub "github.com/pubnub/go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/pkg/config"
	"github.com/fatflowers/gachapon/pkg/metrics"
)

// buildSinks returns one sink per configured transport.
func buildSinks(cfg config.PushConfig) ([]Sink, error) {
	var sinks []Sink
	if cfg.PubNub.PublishKey != "" {
		pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNub.UserID))
		pnCfg.PublishKey = cfg.PubNub.PublishKey
		pnCfg.SubscribeKey = cfg.PubNub.SubscribeKey
		sinks = append(sinks, NewPubNubSink(pubnub.NewPubNub(pnCfg)))
	}
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("gachapon-push"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect nats: %w", err)
		}
		sinks = append(sinks, NewNATSSink(nc, cfg.NATS.SubjectPrefix))
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
		sinks = append(sinks, NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	return sinks, nil
}

func provideBridge(lc fx.Lifecycle, cfg *config.Config, r *relay.Relay, log *zap.SugaredLogger, m *metrics.Business) (*Bridge, error) {
	sinks, err := buildSinks(cfg.Push)
	if err != nil {
		return nil, err
	}
	b := New(Options{Sinks: sinks, QueueSize: cfg.Push.QueueSize, Log: log, Metrics: m})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			b.Start(r)
			return nil
		},
		OnStop: b.Stop,
	})
	return b, nil
}

var Module = fx.Options(
	fx.Provide(provideBridge),
	// nothing else depends on the bridge
	fx.Invoke(func(*Bridge) {}),
)
