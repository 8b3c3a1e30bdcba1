package pushbridge

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/metrics"
)

const DefaultQueueSize = 256

// Sink delivers one serialized envelope to an external push transport.
type Sink interface {
	Name() string
	Send(ctx context.Context, env relay.Envelope, payload []byte) error
	Close() error
}

type Bus interface {
	Subscribe(h relay.Handler) (unsubscribe func())
}

type Options struct {
	Sinks     []Sink
	QueueSize int
	Log       *zap.SugaredLogger
	Metrics   *metrics.Business
}

// Bridge forwards relay envelopes to every sink from a single worker. The
// relay never waits on a sink: when the queue is full the envelope is dropped.
type Bridge struct {
	sinks   []Sink
	queue   chan relay.Envelope
	log     *zap.SugaredLogger
	metrics *metrics.Business

	mu          sync.Mutex
	unsubscribe func()
	cancel      context.CancelFunc
	stop        chan struct{}
	done        chan struct{}
}

func New(o Options) *Bridge {
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	return &Bridge{
		sinks:   o.Sinks,
		queue:   make(chan relay.Envelope, o.QueueSize),
		log:     o.Log,
		metrics: o.Metrics,
	}
}

// Sinks returns the names of the configured sinks.
func (b *Bridge) Sinks() []string {
	names := make([]string, 0, len(b.sinks))
	for _, s := range b.sinks {
		names = append(names, s.Name())
	}
	return names
}

// HandleEnvelope enqueues env. Heartbeats stay on the websocket path.
func (b *Bridge) HandleEnvelope(ctx context.Context, env relay.Envelope) error {
	switch env.Type() {
	case relay.TypePing, relay.TypePong:
		return nil
	}
	select {
	case b.queue <- env:
	default:
		for _, s := range b.sinks {
			b.metrics.PushSend(s.Name(), "dropped")
		}
		logctx.FromCtx(ctx, b.log).Warnw("push_queue_full", "type", env.Type(), "user_id", env.UserID)
	}
	return nil
}

// Start subscribes to bus and runs the worker. It is a no-op without sinks.
func (b *Bridge) Start(bus Bus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sinks) == 0 || b.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.run(ctx, b.stop, b.done)
	b.unsubscribe = bus.Subscribe(b)
	b.log.Infow("push bridge started", "sinks", b.Sinks())
}

// Stop unsubscribes and lets the worker deliver what is already queued. The
// worker closes the sinks once it exits. When ctx ends first the in-flight sends
// are cancelled, the rest of the queue is dropped and ctx.Err() is returned.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done == nil {
		return nil
	}
	b.unsubscribe()
	close(b.stop)
	done, cancel := b.done, b.cancel
	b.stop, b.done, b.cancel = nil, nil, nil
	select {
	case <-done:
		cancel()
		return nil
	case <-ctx.Done():
		b.log.Warnw("push bridge stopped before the queue drained", "pending", len(b.queue))
		cancel()
		return ctx.Err()
	}
}

func (b *Bridge) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer b.closeSinks()
	for {
		select {
		case env := <-b.queue:
			b.forward(ctx, env)
		case <-stop:
			for {
				select {
				case <-ctx.Done():
					return
				case env := <-b.queue:
					b.forward(ctx, env)
				default:
					return
				}
			}
		}
	}
}

func (b *Bridge) closeSinks() {
	for _, s := range b.sinks {
		if err := s.Close(); err != nil {
			b.log.Warnw("push sink close failed", "sink", s.Name(), "err", err)
		}
	}
}

func (b *Bridge) forward(ctx context.Context, env relay.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		b.log.Errorw("push_encode_failed", "type", env.Type(), "err", err)
		return
	}
	for _, s := range b.sinks {
		if ctx.Err() != nil {
			b.metrics.PushSend(s.Name(), "dropped")
			continue
		}
		if err := s.Send(ctx, env, payload); err != nil {
			b.log.Warnw("push_send_failed", "sink", s.Name(), "type", env.Type(), "user_id", env.UserID, "err", err)
			b.metrics.PushSend(s.Name(), "error")
			continue
		}
		b.metrics.PushSend(s.Name(), "ok")
	}
}
