package relay

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/metrics"
)

// Handler receives envelopes. A returned error is logged and does not stop
// delivery to other handlers.
type Handler interface {
	HandleEnvelope(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a function to Handler. Function values are not comparable,
// so every Subscribe of a HandlerFunc creates a new registration.
type HandlerFunc func(ctx context.Context, env Envelope) error

func (f HandlerFunc) HandleEnvelope(ctx context.Context, env Envelope) error { return f(ctx, env) }

type subscription struct {
	id uint64
	h  Handler
}

// Relay is an in-process publish/subscribe channel. Publish is synchronous:
// handlers run in registration order on the caller's goroutine.
type Relay struct {
	mu     sync.RWMutex
	subs   []*subscription
	nextID uint64

	clk      clock.Clock
	interval time.Duration
	log      *zap.SugaredLogger
	metrics  *metrics.Business

	lifeMu  sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

func New(clk clock.Clock, heartbeat time.Duration, log *zap.SugaredLogger, m *metrics.Business) *Relay {
	return &Relay{clk: clk, interval: heartbeat, log: log, metrics: m}
}

// Subscribe registers h and returns the function that removes it. Registering a
// handler value that is already registered keeps the original position, and
// either returned function removes that single registration.
func (r *Relay) Subscribe(h Handler) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if sameHandler(s.h, h) {
			return r.unsubscriber(s.id)
		}
	}
	r.nextID++
	s := &subscription{id: r.nextID, h: h}
	r.subs = append(r.subs, s)
	return r.unsubscriber(s.id)
}

func (r *Relay) unsubscriber(id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Relay) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// copy on write: Publish iterates over the slice it loaded without the lock
	next := make([]*subscription, 0, len(r.subs))
	for _, s := range r.subs {
		if s.id != id {
			next = append(next, s)
		}
	}
	r.subs = next
}

// Subscribers returns the number of registrations.
func (r *Relay) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Publish delivers env to every handler registered when the call starts.
func (r *Relay) Publish(ctx context.Context, env Envelope) {
	if env.Data == nil {
		logctx.FromCtx(ctx, r.log).Warnw("relay_publish_empty")
		return
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = r.clk.Now()
	}
	r.mu.RLock()
	subs := r.subs
	r.mu.RUnlock()

	for _, s := range subs {
		r.deliver(ctx, s, env)
	}
}

func (r *Relay) deliver(ctx context.Context, s *subscription, env Envelope) {
	msgType := string(env.Type())
	defer func() {
		if rec := recover(); rec != nil {
			logctx.FromCtx(ctx, r.log).Errorw("relay_handler_panic",
				"type", msgType, "subscription", s.id, "panic", fmt.Sprint(rec))
			r.metrics.RelayDelivery(msgType, "panic")
		}
	}()
	if err := s.h.HandleEnvelope(ctx, env); err != nil {
		logctx.FromCtx(ctx, r.log).Warnw("relay_handler_error",
			"type", msgType, "subscription", s.id, "err", err)
		r.metrics.RelayDelivery(msgType, "error")
		return
	}
	r.metrics.RelayDelivery(msgType, "ok")
}

// Start begins the heartbeat. It is a no-op when already running or when the
// interval is not positive.
func (r *Relay) Start() {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.stop != nil || r.interval <= 0 {
		return
	}
	r.stop = make(chan struct{})
	r.stopped = make(chan struct{})
	ticker := r.clk.Ticker(r.interval)
	go func(stop <-chan struct{}, stopped chan<- struct{}) {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case t := <-ticker.C:
				r.Publish(context.Background(), NewEnvelope(Ping{}, "", t))
			}
		}
	}(r.stop, r.stopped)
	r.log.Infow("relay heartbeat started", "interval", r.interval)
}

// Stop ends the heartbeat and waits for the loop to exit.
func (r *Relay) Stop() {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.stop == nil {
		return
	}
	close(r.stop)
	<-r.stopped
	r.stop, r.stopped = nil, nil
}

// Active reports whether the heartbeat is running.
func (r *Relay) Active() bool {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	return r.stop != nil
}

func sameHandler(a, b Handler) (same bool) {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == nil || ta != tb || !ta.Comparable() {
		return false
	}
	// a struct handler holding an interface field may still hold an
	// uncomparable dynamic value
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
