package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/gachapon/pkg/types"
)

type recorder struct {
	mu   sync.Mutex
	envs []Envelope
}

func (r *recorder) HandleEnvelope(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.envs)
}

func newTestRelay(t *testing.T) (*Relay, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	return New(clock.NewMock(), 0, zap.New(core).Sugar(), nil), logs
}

func statusUpdate(id string) Envelope {
	return NewEnvelope(PaymentStatusUpdate{PaymentID: id, Status: types.PaymentStatusProcessing}, "player_456", time.Time{})
}

func TestPublish_PanickingSubscriberDoesNotBreakOthers(t *testing.T) {
	r, logs := newTestRelay(t)
	r.Subscribe(HandlerFunc(func(context.Context, Envelope) error { panic("boom") }))
	rec := &recorder{}
	r.Subscribe(rec)

	require.NotPanics(t, func() { r.Publish(context.Background(), statusUpdate("p1")) })
	require.Equal(t, 1, rec.count())
	require.Equal(t, 1, logs.FilterMessage("relay_handler_panic").Len())
}

func TestPublish_ErrorIsLoggedAndDeliveryContinues(t *testing.T) {
	r, logs := newTestRelay(t)
	r.Subscribe(HandlerFunc(func(context.Context, Envelope) error { return errors.New("socket closed") }))
	rec := &recorder{}
	r.Subscribe(rec)

	r.Publish(context.Background(), statusUpdate("p1"))
	require.Equal(t, 1, rec.count())
	require.Equal(t, 1, logs.FilterMessage("relay_handler_error").Len())
}

func TestPublish_RegistrationOrder(t *testing.T) {
	r, _ := newTestRelay(t)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		r.Subscribe(HandlerFunc(func(context.Context, Envelope) error {
			order = append(order, i)
			return nil
		}))
	}
	r.Publish(context.Background(), statusUpdate("p1"))
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestPublish_StampsMissingTimestamp(t *testing.T) {
	r, _ := newTestRelay(t)
	rec := &recorder{}
	r.Subscribe(rec)
	r.Publish(context.Background(), statusUpdate("p1"))
	require.False(t, rec.envs[0].Timestamp.IsZero())
}

func TestSubscribe_DuplicateIsSingleRegistration(t *testing.T) {
	r, _ := newTestRelay(t)
	rec := &recorder{}
	unsubA := r.Subscribe(rec)
	unsubB := r.Subscribe(rec)
	require.Equal(t, 1, r.Subscribers())

	r.Publish(context.Background(), statusUpdate("p1"))
	require.Equal(t, 1, rec.count())

	unsubB()
	require.Equal(t, 0, r.Subscribers())
	unsubA()
	require.Equal(t, 0, r.Subscribers())
}

func TestUnsubscribe_RemovesOnlyThatHandler(t *testing.T) {
	r, _ := newTestRelay(t)
	a, b := &recorder{}, &recorder{}
	unsubA := r.Subscribe(a)
	r.Subscribe(b)

	unsubA()
	unsubA()
	r.Publish(context.Background(), statusUpdate("p1"))
	require.Equal(t, 0, a.count())
	require.Equal(t, 1, b.count())
}

func TestUnsubscribe_DuringPublish(t *testing.T) {
	r, _ := newTestRelay(t)
	rec := &recorder{}
	var unsub func()
	unsub = r.Subscribe(HandlerFunc(func(context.Context, Envelope) error {
		unsub()
		return nil
	}))
	r.Subscribe(rec)

	r.Publish(context.Background(), statusUpdate("p1"))
	r.Publish(context.Background(), statusUpdate("p2"))
	require.Equal(t, 2, rec.count())
	require.Equal(t, 1, r.Subscribers())
}

func TestHeartbeat(t *testing.T) {
	clk := clock.NewMock()
	r := New(clk, 30*time.Second, zap.NewNop().Sugar(), nil)
	pings := make(chan Envelope, 4)
	r.Subscribe(HandlerFunc(func(_ context.Context, env Envelope) error {
		pings <- env
		return nil
	}))

	r.Start()
	r.Start()
	require.True(t, r.Active())

	clk.Add(30 * time.Second)
	select {
	case env := <-pings:
		require.Equal(t, TypePing, env.Type())
		require.Equal(t, DomainSystem, env.Domain())
		require.Empty(t, env.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat")
	}

	r.Stop()
	require.False(t, r.Active())
	r.Stop()
}

func TestHeartbeat_DisabledWithoutInterval(t *testing.T) {
	r, _ := newTestRelay(t)
	r.Start()
	require.False(t, r.Active())
}
