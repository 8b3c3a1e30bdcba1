package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/internal/app/service/catalog"
	"github.com/fatflowers/gachapon/internal/app/service/credit"
	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/internal/platform/db/dbtest"
	"github.com/fatflowers/gachapon/internal/platform/ledger"
	"github.com/fatflowers/gachapon/pkg/config"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/types"
)

type recorder struct {
	mu   sync.Mutex
	envs []relay.Envelope
}

func (r *recorder) Publish(_ context.Context, env relay.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
}

func (r *recorder) count(t relay.MessageType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.CountBy(r.envs, func(e relay.Envelope) bool { return e.Type() == t })
}

func (r *recorder) last(t relay.MessageType) (relay.Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	env, _, ok := lo.FindLastIndexOf(r.envs, func(e relay.Envelope) bool { return e.Type() == t })
	return env, ok
}

type countingLedger struct {
	ledger.Ledger
	claims atomic.Int32
}

func (c *countingLedger) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.Ledger.Claim(ctx, key, ttl)
	if ok {
		c.claims.Add(1)
	}
	return ok, err
}

// flakyGranter errors on its first failures calls and then grants normally.
type flakyGranter struct {
	*credit.Service
	failures int32
	calls    atomic.Int32
}

func (f *flakyGranter) GrantForPayment(ctx context.Context, tx *gorm.DB, p *models.Payment) (int, error) {
	if f.calls.Add(1) <= f.failures {
		return 0, errors.New("transient db error")
	}
	return f.Service.GrantForPayment(ctx, tx, p)
}

type harness struct {
	engine  *Engine
	clk     clock.Clock
	mock    *clock.Mock
	rec     *recorder
	ledger  *countingLedger
	credits *credit.Service
	db      *gorm.DB
}

func newHarness(t *testing.T, clk clock.Clock, s Settings) *harness {
	t.Helper()
	gdb := dbtest.Open(t)
	cat, err := catalog.NewFromCatalog(config.DefaultCatalog(), "MYR", clk)
	require.NoError(t, err)
	h := &harness{
		clk:     clk,
		rec:     &recorder{},
		ledger:  &countingLedger{Ledger: ledger.NewMemory(clk)},
		credits: credit.New(gdb, zap.NewNop().Sugar()),
		db:      gdb,
	}
	h.mock, _ = clk.(*clock.Mock)
	h.engine = NewEngine(Options{
		Store:     NewStore(gdb),
		Catalog:   cat,
		Credits:   h.credits,
		Publisher: h.rec,
		Ledger:    h.ledger,
		Clock:     clk,
		Settings:  s,
	})
	t.Cleanup(h.engine.Stop)
	return h
}

func newMockHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))
	return newHarness(t, clk, Settings{})
}

func (h *harness) create(t *testing.T, user, machine string, draws int) *Intent {
	t.Helper()
	in, err := h.engine.Create(context.Background(), CreateRequest{UserID: user, MachineID: machine, DrawCount: draws})
	require.NoError(t, err)
	return in
}

func TestPreview(t *testing.T) {
	h := newMockHarness(t)
	ctx := context.Background()

	p, err := h.engine.Preview(ctx, "machine_001", 3)
	require.NoError(t, err)
	require.Equal(t, "15.00", p.Subtotal)
	require.Equal(t, "15.00", p.TotalAmount)
	require.Equal(t, "5.00", p.PricePerDraw)
	require.Equal(t, "MYR", p.Currency)
	ids := lo.Map(p.ApplicableEvents, func(a types.ApplicableEvent, _ int) string { return a.EventID })
	require.ElementsMatch(t, []string{"event_001", "event_004"}, ids)

	p, err = h.engine.Preview(ctx, "machine_004", 2)
	require.NoError(t, err)
	require.Equal(t, "7.00", p.Subtotal)

	_, err = h.engine.Preview(ctx, "machine_999", 1)
	require.True(t, errors.Is(err, errs.ErrNotFound))
	_, err = h.engine.Preview(ctx, "machine_001", 0)
	require.True(t, errors.Is(err, errs.ErrInvalid))
}

func TestCreate(t *testing.T) {
	h := newMockHarness(t)
	ctx := context.Background()

	in := h.create(t, "player_456", "machine_001", 10)
	require.Equal(t, types.PaymentStatusCreated, in.Status)
	require.Equal(t, "50.00", in.Amount)
	require.NotEmpty(t, in.PaymentIntentID)
	require.Contains(t, in.ClientSecret, in.PaymentIntentID+"_secret_")
	require.Equal(t, h.mock.Now().Add(DefaultIntentTTL), in.ExpiresAt)
	earned := lo.Map(in.EarnedRewards, func(r types.EarnedReward, _ int) string { return r.EventID })
	require.ElementsMatch(t, []string{"event_001", "event_002", "event_004"}, earned, "manual join event_003 is never earned")
	require.Equal(t, 1, h.rec.count(relay.TypePaymentStatusUpdate))

	_, err := h.engine.Create(ctx, CreateRequest{UserID: "u", MachineID: "machine_004", DrawCount: 1})
	require.True(t, errors.Is(err, errs.ErrInvalid), "machine in use")
	_, err = h.engine.Create(ctx, CreateRequest{UserID: "u", MachineID: "machine_999", DrawCount: 1})
	require.True(t, errors.Is(err, errs.ErrNotFound))
	_, err = h.engine.Create(ctx, CreateRequest{UserID: "u", MachineID: "machine_001", DrawCount: 1, PaymentMethod: "CASH"})
	require.True(t, errors.Is(err, errs.ErrInvalid))
	_, err = h.engine.Create(ctx, CreateRequest{UserID: "u", MachineID: "machine_001", DrawCount: 1, PaymentMethod: types.PaymentMethodEWallet})
	require.NoError(t, err)
}

func TestLifecycle_LazyCompletion(t *testing.T) {
	h := newMockHarness(t)
	h.engine.Stop()
	ctx := context.Background()
	in := h.create(t, "player_456", "machine_001", 3)

	v, err := h.engine.Confirm(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusProcessing, v.Status)
	require.Equal(t, "15.00", v.Amount)

	v, err = h.engine.Confirm(ctx, in.PaymentID)
	require.NoError(t, err, "confirm is idempotent while processing")
	require.Equal(t, types.PaymentStatusProcessing, v.Status)

	h.mock.Add(time.Second)
	v, err = h.engine.GetStatus(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusProcessing, v.Status)
	require.Nil(t, v.CreditsAdded)

	h.mock.Add(time.Second)
	v, err = h.engine.GetStatus(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusSucceeded, v.Status)
	require.NotNil(t, v.CreditsAdded)
	require.Equal(t, 5, *v.CreditsAdded, "3 draws plus two auto-join extra spins")
	earned := lo.Map(v.EarnedRewards, func(r types.EarnedReward, _ int) string { return r.EventID })
	require.ElementsMatch(t, []string{"event_001", "event_004"}, earned)

	bal, err := h.credits.Balance(ctx, "player_456", "machine_001")
	require.NoError(t, err)
	require.Equal(t, 5, bal)

	env, ok := h.rec.last(relay.TypePaymentCompleted)
	require.True(t, ok)
	require.Equal(t, "player_456", env.UserID)
	completed := env.Data.(relay.PaymentCompleted)
	require.Equal(t, in.PaymentID, completed.PaymentID)
	require.Equal(t, 5, completed.CreditsAdded)
}

func TestLifecycle_TimerCompletion(t *testing.T) {
	h := newMockHarness(t)
	ctx := context.Background()
	in := h.create(t, "player_456", "machine_002", 1)

	_, err := h.engine.Confirm(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, 1, h.engine.Pending())

	h.mock.Add(DefaultCompletionDelay)
	require.Eventually(t, func() bool {
		p, err := h.engine.store.Get(ctx, in.PaymentID)
		return err == nil && p.Status == types.PaymentStatusSucceeded
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return h.rec.count(relay.TypePaymentCompleted) == 1 }, time.Second, 10*time.Millisecond)
	require.Zero(t, h.engine.Pending())
}

func TestTerminalNeverChanges(t *testing.T) {
	h := newMockHarness(t)
	h.engine.Stop()
	ctx := context.Background()
	in := h.create(t, "player_456", "machine_001", 1)
	_, err := h.engine.Confirm(ctx, in.PaymentID)
	require.NoError(t, err)
	h.mock.Add(3 * time.Second)
	v, err := h.engine.GetStatus(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusSucceeded, v.Status)

	_, err = h.engine.Cancel(ctx, in.PaymentID)
	require.True(t, errors.Is(err, errs.ErrInvalid))
	_, err = h.engine.Fail(ctx, in.PaymentID, "card_declined", "declined")
	require.True(t, errors.Is(err, errs.ErrInvalid))
	_, err = h.engine.Confirm(ctx, in.PaymentID)
	require.True(t, errors.Is(err, errs.ErrInvalid))
	_, err = h.engine.HandleGatewayEvent(ctx, GatewayEvent{PaymentIntentID: in.PaymentIntentID, Event: GatewayEventFailed})
	require.True(t, errors.Is(err, errs.ErrInvalid))

	h.mock.Add(time.Hour)
	v, err = h.engine.GetStatus(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusSucceeded, v.Status)
	require.Equal(t, 1, h.rec.count(relay.TypePaymentCompleted))
}

func TestComplete_FailedGrantRetries(t *testing.T) {
	h := newMockHarness(t)
	h.engine.Stop()
	granter := &flakyGranter{Service: h.credits, failures: 1}
	h.engine.credits = granter
	ctx := context.Background()
	in := h.create(t, "player_456", "machine_002", 1)
	_, err := h.engine.Confirm(ctx, in.PaymentID)
	require.NoError(t, err)
	h.mock.Add(3 * time.Second)

	_, err = h.engine.GetStatus(ctx, in.PaymentID)
	require.ErrorContains(t, err, "transient db error")
	p, err := h.engine.store.Get(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusProcessing, p.Status, "rolled back with the grant")
	require.Zero(t, h.rec.count(relay.TypePaymentCompleted))

	v, err := h.engine.GetStatus(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusSucceeded, v.Status)
	require.NotNil(t, v.CreditsAdded)
	require.Positive(t, *v.CreditsAdded)
	require.EqualValues(t, 2, granter.calls.Load())

	bal, err := h.credits.Balance(ctx, "player_456", "machine_002")
	require.NoError(t, err)
	require.Equal(t, *v.CreditsAdded, bal)
	require.Equal(t, 1, h.rec.count(relay.TypePaymentCompleted))
	require.EqualValues(t, 1, h.ledger.claims.Load())
}

func TestConfirm_SettlesOverdueProcessing(t *testing.T) {
	h := newMockHarness(t)
	h.engine.Stop()
	ctx := context.Background()
	in := h.create(t, "player_456", "machine_001", 3)
	v, err := h.engine.Confirm(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusProcessing, v.Status)

	h.mock.Add(DefaultCompletionDelay)
	v, err = h.engine.Confirm(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusSucceeded, v.Status)
	require.Equal(t, 5, *v.CreditsAdded)
	require.Equal(t, 1, h.rec.count(relay.TypePaymentCompleted))
}

func TestGetStatus_ConcurrentReadersGrantOnce(t *testing.T) {
	h := newMockHarness(t)
	h.engine.Stop()
	ctx := context.Background()
	in := h.create(t, "player_456", "machine_001", 3)
	_, err := h.engine.Confirm(ctx, in.PaymentID)
	require.NoError(t, err)
	h.mock.Add(5 * time.Second)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := h.engine.GetStatus(ctx, in.PaymentID)
			if assert.NoError(t, err) {
				assert.Equal(t, types.PaymentStatusSucceeded, v.Status)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, h.ledger.claims.Load())
	require.Equal(t, 1, h.rec.count(relay.TypePaymentCompleted))
	bal, err := h.credits.Balance(ctx, "player_456", "machine_001")
	require.NoError(t, err)
	require.Equal(t, 5, bal)
}

func TestCancel(t *testing.T) {
	h := newMockHarness(t)
	ctx := context.Background()
	in := h.create(t, "player_456", "machine_001", 1)
	_, err := h.engine.Confirm(ctx, in.PaymentID)
	require.NoError(t, err)

	v, err := h.engine.Cancel(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCancelled, v.Status)
	require.Zero(t, h.engine.Pending())

	h.mock.Add(time.Minute)
	v, err = h.engine.GetStatus(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCancelled, v.Status)
	require.Zero(t, h.rec.count(relay.TypePaymentCompleted))

	_, err = h.engine.Cancel(ctx, "pay_missing")
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestFail(t *testing.T) {
	h := newMockHarness(t)
	ctx := context.Background()
	in := h.create(t, "player_456", "machine_001", 1)

	v, err := h.engine.Fail(ctx, in.PaymentID, "card_declined", "insufficient funds")
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusFailed, v.Status)
	require.Equal(t, "card_declined", v.FailureCode)

	env, ok := h.rec.last(relay.TypePaymentFailed)
	require.True(t, ok)
	require.Equal(t, relay.PaymentFailed{PaymentID: in.PaymentID, ErrorCode: "card_declined", ErrorMessage: "insufficient funds"}, env.Data)
}

func TestExpiredIntent(t *testing.T) {
	h := newMockHarness(t)
	ctx := context.Background()

	in := h.create(t, "player_456", "machine_001", 1)
	h.mock.Add(DefaultIntentTTL)
	_, err := h.engine.Confirm(ctx, in.PaymentID)
	require.True(t, errors.Is(err, errs.ErrExpired))
	v, err := h.engine.GetStatus(ctx, in.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCancelled, v.Status)
	require.Equal(t, "intent_expired", v.FailureCode)

	other := h.create(t, "player_456", "machine_001", 1)
	h.mock.Add(DefaultIntentTTL + time.Second)
	v, err = h.engine.GetStatus(ctx, other.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCancelled, v.Status, "reads cancel stale intents")
}

func TestPoll(t *testing.T) {
	h := newHarness(t, clock.New(), Settings{CompletionDelay: 20 * time.Millisecond})
	ctx := context.Background()
	in := h.create(t, "player_456", "machine_001", 1)
	_, err := h.engine.Confirm(ctx, in.PaymentID)
	require.NoError(t, err)

	v, err := h.engine.Poll(ctx, in.PaymentID, 50, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusSucceeded, v.Status)

	pending := h.create(t, "player_456", "machine_001", 1)
	_, err = h.engine.Poll(ctx, pending.PaymentID, 3, time.Millisecond)
	require.True(t, errors.Is(err, errs.ErrTimeout))

	cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = h.engine.Poll(cctx, pending.PaymentID, 100, 20*time.Millisecond)
	require.Error(t, err)

	_, err = h.engine.Poll(ctx, "pay_missing", 3, time.Millisecond)
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestHandleGatewayEvent(t *testing.T) {
	h := newMockHarness(t)
	ctx := context.Background()

	paid := h.create(t, "player_456", "machine_001", 3)
	v, err := h.engine.HandleGatewayEvent(ctx, GatewayEvent{PaymentIntentID: paid.PaymentIntentID, Event: GatewayEventSucceeded})
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusSucceeded, v.Status)
	require.Equal(t, 5, *v.CreditsAdded)

	v, err = h.engine.HandleGatewayEvent(ctx, GatewayEvent{PaymentIntentID: paid.PaymentIntentID, Event: GatewayEventSucceeded})
	require.NoError(t, err, "replayed webhook")
	require.Equal(t, types.PaymentStatusSucceeded, v.Status)
	require.EqualValues(t, 1, h.ledger.claims.Load())

	declined := h.create(t, "player_456", "machine_001", 1)
	v, err = h.engine.HandleGatewayEvent(ctx, GatewayEvent{PaymentIntentID: declined.PaymentIntentID, Event: GatewayEventFailed, ErrorCode: "card_declined", ErrorMessage: "declined"})
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusFailed, v.Status)
	_, err = h.engine.HandleGatewayEvent(ctx, GatewayEvent{PaymentIntentID: declined.PaymentIntentID, Event: GatewayEventFailed})
	require.NoError(t, err)

	action := h.create(t, "player_456", "machine_001", 1)
	v, err = h.engine.HandleGatewayEvent(ctx, GatewayEvent{PaymentIntentID: action.PaymentIntentID, Event: GatewayEventRequiresAction})
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusRequiresCustomerAction, v.Status)
	v, err = h.engine.Confirm(ctx, action.PaymentID)
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusProcessing, v.Status)

	canceled := h.create(t, "player_456", "machine_001", 1)
	v, err = h.engine.HandleGatewayEvent(ctx, GatewayEvent{PaymentIntentID: canceled.PaymentIntentID, Event: GatewayEventCanceled})
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusCancelled, v.Status)

	_, err = h.engine.HandleGatewayEvent(ctx, GatewayEvent{PaymentIntentID: "pi_missing", Event: GatewayEventSucceeded})
	require.True(t, errors.Is(err, errs.ErrNotFound))
	_, err = h.engine.HandleGatewayEvent(ctx, GatewayEvent{PaymentIntentID: canceled.PaymentIntentID, Event: "refunded"})
	require.True(t, errors.Is(err, errs.ErrInvalid))
}

func TestGet_Ownership(t *testing.T) {
	h := newMockHarness(t)
	in := h.create(t, "player_456", "machine_001", 1)
	_, err := h.engine.Get(context.Background(), "player_456", in.PaymentID)
	require.NoError(t, err)
	_, err = h.engine.Get(context.Background(), "player_789", in.PaymentID)
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestScanPayments(t *testing.T) {
	h := newMockHarness(t)
	ctx := context.Background()
	h.create(t, "player_456", "machine_001", 1)
	h.mock.Add(time.Second)
	h.create(t, "player_456", "machine_002", 2)
	h.mock.Add(time.Second)
	h.create(t, "player_789", "machine_001", 3)

	res, err := h.engine.ScanPayments(ctx, &ScanRequest{
		Filters: []*types.CommonFilter{{Field: "user_id", Operator: types.CommonFilterOperatorEq, Values: []any{"player_456"}}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Total)
	require.Equal(t, "machine_002", res.Items[0].MachineID, "newest first by default")

	res, err = h.engine.ScanPayments(ctx, &ScanRequest{Size: 1, From: 1, SortBy: "draw_count", SortOrder: "asc"})
	require.NoError(t, err)
	require.EqualValues(t, 3, res.Total)
	require.Len(t, res.Items, 1)
	require.Equal(t, 2, res.Items[0].DrawCount)

	_, err = h.engine.ScanPayments(ctx, &ScanRequest{
		Filters: []*types.CommonFilter{{Field: "client_secret", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}}},
	})
	require.True(t, errors.Is(err, errs.ErrInvalid))
	_, err = h.engine.ScanPayments(ctx, &ScanRequest{SortBy: "1; DROP TABLE payment"})
	require.True(t, errors.Is(err, errs.ErrInvalid))
}

func TestListByUser(t *testing.T) {
	h := newMockHarness(t)
	h.create(t, "player_456", "machine_001", 1)
	h.create(t, "player_456", "machine_002", 1)
	h.create(t, "player_789", "machine_002", 1)

	views, err := h.engine.ListByUser(context.Background(), "player_456", 10)
	require.NoError(t, err)
	require.Len(t, views, 2)
}
