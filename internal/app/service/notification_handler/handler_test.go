package notification_handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/payment"
	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/types"
)

type fakeEngine struct {
	got []payment.GatewayEvent
	err error
}

func (f *fakeEngine) HandleGatewayEvent(ctx context.Context, ev payment.GatewayEvent) (*payment.StatusView, error) {
	f.got = append(f.got, ev)
	if f.err != nil {
		return nil, f.err
	}
	return &payment.StatusView{PaymentID: "pay_1", Status: types.PaymentStatusSucceeded}, nil
}

type memLogs struct {
	mu      sync.Mutex
	entries []*models.PaymentEventLog
}

func (m *memLogs) Save(ctx context.Context, entry *models.PaymentEventLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func newHandler(secret string, eng *fakeEngine, logs *memLogs) *NotificationHandler {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	return New(secret, eng, logs, clk, zap.NewNop().Sugar())
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"payment_intent_id":"pi_1","event":"succeeded"}`)
	sig := Sign("s3cret", body)

	tests := []struct {
		name      string
		secret    string
		signature string
		wantErr   bool
	}{
		{"valid", "s3cret", sig, false},
		{"valid with prefix", "s3cret", "sha256=" + sig, false},
		{"wrong secret", "other", sig, true},
		{"not hex", "s3cret", "zz", true},
		{"missing", "s3cret", "", true},
		{"verification disabled", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.secret, body, tt.signature)
			if tt.wantErr {
				require.ErrorIs(t, err, errs.ErrInvalid)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGatewayParser(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	body := []byte(`{"payment_intent_id":"pi_9","event":"failed","error_code":"card_declined"}`)
	p, err := GetGatewayNotificationParser("", body, "", now)
	require.NoError(t, err)
	ctx := context.Background()
	require.Equal(t, ProviderGateway, p.GetProvider(ctx))
	require.Equal(t, now, p.GetNotificationTime(ctx))
	require.Equal(t, "pi_9", p.GetPaymentIntentID(ctx))
	ev, err := p.GetEvent(ctx)
	require.NoError(t, err)
	require.Equal(t, payment.GatewayEventFailed, ev.Event)
	require.Equal(t, "card_declined", ev.ErrorCode)

	_, err = GetGatewayNotificationParser("", []byte("{"), "", now)
	require.ErrorIs(t, err, errs.ErrInvalid)

	p, err = GetGatewayNotificationParser("", []byte(`{"event":"succeeded"}`), "", now)
	require.NoError(t, err)
	_, err = p.GetEvent(ctx)
	require.ErrorIs(t, err, errs.ErrInvalid)
}

func TestHandleNotification(t *testing.T) {
	body := []byte(`{"payment_intent_id":"pi_1","event":"succeeded"}`)

	t.Run("applies event and logs received then handled", func(t *testing.T) {
		eng, logs := &fakeEngine{}, &memLogs{}
		h := newHandler("s3cret", eng, logs)
		view, err := h.HandleNotification(context.Background(), body, Sign("s3cret", body))
		require.NoError(t, err)
		require.Equal(t, "pay_1", view.PaymentID)
		require.Len(t, eng.got, 1)
		require.Equal(t, "pi_1", eng.got[0].PaymentIntentID)

		require.Len(t, logs.entries, 2)
		require.Equal(t, models.PaymentEventLogStatusReceived, logs.entries[0].Status)
		require.Equal(t, models.PaymentEventSourceWebhook, logs.entries[0].Source)
		require.Equal(t, models.PaymentEventLogStatusHandled, logs.entries[1].Status)
		require.Equal(t, "pay_1", logs.entries[1].PaymentID)
		require.Equal(t, string(types.PaymentStatusSucceeded), logs.entries[1].ToStatus)
		require.NotNil(t, logs.entries[1].Result)
	})

	t.Run("bad signature is rejected before logging", func(t *testing.T) {
		eng, logs := &fakeEngine{}, &memLogs{}
		h := newHandler("s3cret", eng, logs)
		_, err := h.HandleNotification(context.Background(), body, Sign("nope", body))
		require.ErrorIs(t, err, errs.ErrInvalid)
		require.Empty(t, eng.got)
		require.Empty(t, logs.entries)
	})

	t.Run("engine failure logs handle_failed", func(t *testing.T) {
		eng, logs := &fakeEngine{err: errs.ErrNotFound}, &memLogs{}
		h := newHandler("", eng, logs)
		_, err := h.HandleNotification(context.Background(), body, "")
		require.ErrorIs(t, err, errs.ErrNotFound)
		require.Len(t, logs.entries, 2)
		require.Equal(t, models.PaymentEventLogStatusHandleFailed, logs.entries[1].Status)
		require.Contains(t, string(*logs.entries[1].Result), "error")
	})
}
