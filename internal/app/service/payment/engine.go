package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/internal/platform/ledger"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/metrics"
	"github.com/fatflowers/gachapon/pkg/tool"
	"github.com/fatflowers/gachapon/pkg/types"
)

const (
	DefaultIntentTTL       = 15 * time.Minute
	DefaultCompletionDelay = 2 * time.Second
	DefaultPollAttempts    = 15
	DefaultPollInterval    = 2 * time.Second
)

type MachineCatalog interface {
	GetMachine(ctx context.Context, id string) (*types.Machine, error)
	GetActiveEventsForMachine(ctx context.Context, machineID string) ([]*types.Event, error)
}

// CreditGranter stores the draw credits of a completed payment inside tx.
type CreditGranter interface {
	GrantForPayment(ctx context.Context, tx *gorm.DB, p *models.Payment) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, env relay.Envelope)
}

type EventLog interface {
	Transition(ctx context.Context, paymentID, from, to string, data any)
}

type Settings struct {
	Currency        string
	IntentTTL       time.Duration
	CompletionDelay time.Duration
	PollAttempts    int
	PollInterval    time.Duration
}

type Options struct {
	Store     *Store
	Catalog   MachineCatalog
	Credits   CreditGranter
	Publisher Publisher
	Ledger    ledger.Ledger
	Events    EventLog
	Clock     clock.Clock
	Settings  Settings
	Log       *zap.SugaredLogger
	Metrics   *metrics.Business
}

// Engine owns the payment lifecycle. Completion happens either from a timer
// scheduled by Confirm, from a gateway webhook, or lazily on the next read once
// the deadline passed; all paths race through the same compare-and-swap.
type Engine struct {
	store     *Store
	catalog   MachineCatalog
	credits   CreditGranter
	publisher Publisher
	ledger    ledger.Ledger
	events    EventLog
	clk       clock.Clock
	settings  Settings
	log       *zap.SugaredLogger
	metrics   *metrics.Business

	mu      sync.Mutex
	timers  map[string]*clock.Timer
	stopped bool
}

func NewEngine(o Options) *Engine {
	s := o.Settings
	if s.Currency == "" {
		s.Currency = types.DefaultCurrency
	}
	if s.IntentTTL <= 0 {
		s.IntentTTL = DefaultIntentTTL
	}
	if s.CompletionDelay <= 0 {
		s.CompletionDelay = DefaultCompletionDelay
	}
	if s.PollAttempts <= 0 {
		s.PollAttempts = DefaultPollAttempts
	}
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	return &Engine{
		store:     o.Store,
		catalog:   o.Catalog,
		credits:   o.Credits,
		publisher: o.Publisher,
		ledger:    o.Ledger,
		events:    o.Events,
		clk:       o.Clock,
		settings:  s,
		log:       o.Log,
		metrics:   o.Metrics,
		timers:    make(map[string]*clock.Timer),
	}
}

type PreviewResult struct {
	MachineID        string                  `json:"machine_id"`
	DrawCount        int                     `json:"draw_count"`
	PricePerDraw     string                  `json:"price_per_draw"`
	Subtotal         string                  `json:"subtotal"`
	TotalAmount      string                  `json:"total_amount"`
	Currency         string                  `json:"currency"`
	ApplicableEvents []types.ApplicableEvent `json:"applicable_events"`
}

type CreateRequest struct {
	UserID        string
	MachineID     string
	DrawCount     int
	PaymentMethod types.PaymentMethod
}

type Intent struct {
	PaymentID       string               `json:"payment_id"`
	PaymentIntentID string               `json:"payment_intent_id"`
	ClientSecret    string               `json:"client_secret"`
	Amount          string               `json:"amount"`
	Currency        string               `json:"currency"`
	Status          types.PaymentStatus  `json:"status"`
	ExpiresAt       time.Time            `json:"expires_at"`
	EarnedRewards   []types.EarnedReward `json:"earned_rewards"`
}

type StatusView struct {
	PaymentID     string               `json:"payment_id"`
	MachineID     string               `json:"machine_id"`
	Status        types.PaymentStatus  `json:"status"`
	Amount        string               `json:"amount"`
	Currency      string               `json:"currency"`
	CreditsAdded  *int                 `json:"credits_added,omitempty"`
	EarnedRewards []types.EarnedReward `json:"earned_rewards,omitempty"`
	FailureCode   string               `json:"failure_code,omitempty"`
	FailureReason string               `json:"failure_reason,omitempty"`
}

func NewStatusView(p *models.Payment) *StatusView {
	v := &StatusView{
		PaymentID:     p.ID,
		MachineID:     p.MachineID,
		Status:        p.Status,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		EarnedRewards: p.GetEarnedRewards(),
	}
	if p.Status == types.PaymentStatusSucceeded {
		n := p.CreditsAdded
		v.CreditsAdded = &n
	}
	if p.FailureCode != nil {
		v.FailureCode = *p.FailureCode
	}
	if p.FailureReason != nil {
		v.FailureReason = *p.FailureReason
	}
	return v
}

func (e *Engine) quote(ctx context.Context, machineID string, drawCount int) (*types.Machine, decimal.Decimal, []Eligibility, error) {
	if drawCount < 1 {
		return nil, decimal.Zero, nil, fmt.Errorf("%w: draw count must be at least 1", errs.ErrInvalid)
	}
	m, err := e.catalog.GetMachine(ctx, machineID)
	if err != nil {
		return nil, decimal.Zero, nil, err
	}
	price, err := decimal.NewFromString(m.DrawCost)
	if err != nil {
		return nil, decimal.Zero, nil, fmt.Errorf("%w: machine %s draw cost %q", errs.ErrInvalid, m.ID, m.DrawCost)
	}
	events, err := e.catalog.GetActiveEventsForMachine(ctx, machineID)
	if err != nil {
		return nil, decimal.Zero, nil, err
	}
	return m, price.Mul(decimal.NewFromInt(int64(drawCount))), Evaluate(events, drawCount), nil
}

func (e *Engine) currency(m *types.Machine) string {
	if m.Currency != "" {
		return m.Currency
	}
	return e.settings.Currency
}

// Preview prices a purchase. Rewards are not deducted from the total.
func (e *Engine) Preview(ctx context.Context, machineID string, drawCount int) (*PreviewResult, error) {
	m, subtotal, el, err := e.quote(ctx, machineID, drawCount)
	if err != nil {
		return nil, err
	}
	price, _ := decimal.NewFromString(m.DrawCost)
	return &PreviewResult{
		MachineID:        m.ID,
		DrawCount:        drawCount,
		PricePerDraw:     price.StringFixed(2),
		Subtotal:         subtotal.StringFixed(2),
		TotalAmount:      subtotal.StringFixed(2),
		Currency:         e.currency(m),
		ApplicableEvents: ApplicableEvents(el),
	}, nil
}

// Create allocates a CREATED payment with a fresh intent.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Intent, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user is required", errs.ErrInvalid)
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: payment method %q", errs.ErrInvalid, req.PaymentMethod)
	}
	m, amount, el, err := e.quote(ctx, req.MachineID, req.DrawCount)
	if err != nil {
		return nil, err
	}
	if m.Status != types.MachineStatusAvailable {
		return nil, fmt.Errorf("%w: machine %s is %s", errs.ErrInvalid, m.ID, m.Status)
	}

	now := e.clk.Now()
	intentID := tool.PrefixedID("pi")
	p := &models.Payment{
		ID:              tool.PrefixedID("pay"),
		UserID:          req.UserID,
		MachineID:       m.ID,
		DrawCount:       req.DrawCount,
		Amount:          amount.Round(2),
		Currency:        e.currency(m),
		Status:          types.PaymentStatusCreated,
		PaymentMethod:   string(req.PaymentMethod),
		PaymentIntentID: intentID,
		ClientSecret:    intentID + "_secret_" + tool.RandomHex(12),
		ExpiresAt:       now.Add(e.settings.IntentTTL),
		EarnedRewards:   datatypes.NewJSONType(EarnedRewards(el)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	e.record(ctx, p, "", map[string]any{"draw_count": p.DrawCount, "amount": p.Amount.StringFixed(2)})
	e.publish(ctx, p.UserID, relay.PaymentStatusUpdate{PaymentID: p.ID, Status: p.Status, Message: "payment created"})

	return &Intent{
		PaymentID:       p.ID,
		PaymentIntentID: p.PaymentIntentID,
		ClientSecret:    p.ClientSecret,
		Amount:          p.Amount.StringFixed(2),
		Currency:        p.Currency,
		Status:          p.Status,
		ExpiresAt:       p.ExpiresAt,
		EarnedRewards:   p.GetEarnedRewards(),
	}, nil
}

// Get returns the payment if it belongs to userID.
func (e *Engine) Get(ctx context.Context, userID, id string) (*models.Payment, error) {
	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("%w: payment %s", errs.ErrNotFound, id)
	}
	return p, nil
}

// Confirm moves a pending payment to PROCESSING and schedules its completion.
// Confirming a PROCESSING payment reports it as GetStatus would.
func (e *Engine) Confirm(ctx context.Context, id string) (*StatusView, error) {
	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == types.PaymentStatusProcessing {
		if p, err = e.settle(ctx, p); err != nil {
			return nil, err
		}
		return NewStatusView(p), nil
	}
	if !confirmable(p.Status) {
		return nil, fmt.Errorf("%w: payment %s is %s", errs.ErrInvalid, id, p.Status)
	}
	now := e.clk.Now()
	if !now.Before(p.ExpiresAt) {
		if _, _, err := e.finish(ctx, p, types.PaymentStatusCancelled, "intent_expired", "payment intent expired"); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: payment %s intent expired at %s", errs.ErrExpired, id, p.ExpiresAt.Format(time.RFC3339))
	}

	prev := p.Status
	deadline := now.Add(e.settings.CompletionDelay)
	p.Status = types.PaymentStatusProcessing
	p.CompleteAfter = &deadline
	won, err := e.store.Transition(ctx, p, prev, nil)
	if err != nil {
		return nil, err
	}
	if !won {
		cur, err := e.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.Status == types.PaymentStatusProcessing {
			if cur, err = e.settle(ctx, cur); err != nil {
				return nil, err
			}
			return NewStatusView(cur), nil
		}
		return nil, fmt.Errorf("%w: payment %s is %s", errs.ErrInvalid, id, cur.Status)
	}
	e.schedule(id, e.settings.CompletionDelay)
	e.record(ctx, p, prev, map[string]any{"complete_after": deadline})
	e.publish(ctx, p.UserID, relay.PaymentStatusUpdate{PaymentID: p.ID, Status: p.Status, Message: "payment processing"})
	return NewStatusView(p), nil
}

// GetStatus returns the current status, first applying any transition whose
// deadline already passed.
func (e *Engine) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err = e.settle(ctx, p)
	if err != nil {
		return nil, err
	}
	return NewStatusView(p), nil
}

func (e *Engine) settle(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	now := e.clk.Now()
	switch {
	case p.Status == types.PaymentStatusProcessing && p.CompleteAfter != nil && !now.Before(*p.CompleteAfter):
		return e.complete(ctx, p)
	case confirmable(p.Status) && !now.Before(p.ExpiresAt):
		cur, _, err := e.finish(ctx, p, types.PaymentStatusCancelled, "intent_expired", "payment intent expired")
		return cur, err
	}
	return p, nil
}

// Poll calls GetStatus until the payment is terminal.
func (e *Engine) Poll(ctx context.Context, id string, attempts int, interval time.Duration) (*StatusView, error) {
	if attempts <= 0 {
		attempts = e.settings.PollAttempts
	}
	if interval <= 0 {
		interval = e.settings.PollInterval
	}
	for i := 0; i < attempts; i++ {
		v, err := e.GetStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if v.Status.IsTerminal() {
			return v, nil
		}
		if i == attempts-1 {
			break
		}
		t := e.clk.Timer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("%w: payment %s still pending after %d attempts", errs.ErrTimeout, id, attempts)
}

// Cancel stops a non-terminal payment.
func (e *Engine) Cancel(ctx context.Context, id string) (*StatusView, error) {
	return e.signal(ctx, id, types.PaymentStatusCancelled, "canceled", "payment cancelled")
}

// Fail marks a non-terminal payment as failed.
func (e *Engine) Fail(ctx context.Context, id, code, message string) (*StatusView, error) {
	if code == "" {
		code = "payment_failed"
	}
	return e.signal(ctx, id, types.PaymentStatusFailed, code, message)
}

func (e *Engine) signal(ctx context.Context, id string, to types.PaymentStatus, code, message string) (*StatusView, error) {
	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cur, won, err := e.finish(ctx, p, to, code, message)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: payment %s is %s", errs.ErrInvalid, id, cur.Status)
	}
	return NewStatusView(cur), nil
}

// GatewayEvent is a normalized webhook notification from the payment gateway.
type GatewayEvent struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Event           string `json:"event"`
	ErrorCode       string `json:"error_code,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

const (
	GatewayEventSucceeded      = "succeeded"
	GatewayEventFailed         = "failed"
	GatewayEventCanceled       = "canceled"
	GatewayEventRequiresAction = "requires_action"
)

// HandleGatewayEvent applies a webhook. Replays of an event that already took
// effect are accepted without changes.
func (e *Engine) HandleGatewayEvent(ctx context.Context, ev GatewayEvent) (*StatusView, error) {
	p, err := e.store.GetByIntentID(ctx, ev.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	switch ev.Event {
	case GatewayEventSucceeded:
		if p.Status == types.PaymentStatusSucceeded {
			return NewStatusView(p), nil
		}
		if confirmable(p.Status) {
			prev := p.Status
			now := e.clk.Now()
			p.Status = types.PaymentStatusProcessing
			p.CompleteAfter = &now
			won, err := e.store.Transition(ctx, p, prev, nil)
			if err != nil {
				return nil, err
			}
			if won {
				e.record(ctx, p, prev, ev)
			} else if p, err = e.store.Get(ctx, p.ID); err != nil {
				return nil, err
			}
		}
		if p.Status != types.PaymentStatusProcessing {
			return nil, fmt.Errorf("%w: payment %s is %s", errs.ErrInvalid, p.ID, p.Status)
		}
		cur, err := e.complete(ctx, p)
		if err != nil {
			return nil, err
		}
		return NewStatusView(cur), nil
	case GatewayEventFailed, GatewayEventCanceled:
		to, code := types.PaymentStatusFailed, ev.ErrorCode
		if ev.Event == GatewayEventCanceled {
			to = types.PaymentStatusCancelled
		}
		if code == "" {
			code = "gateway_" + ev.Event
		}
		if p.Status == to {
			return NewStatusView(p), nil
		}
		cur, won, err := e.finish(ctx, p, to, code, ev.ErrorMessage)
		if err != nil {
			return nil, err
		}
		if !won && cur.Status != to {
			return nil, fmt.Errorf("%w: payment %s is %s", errs.ErrInvalid, p.ID, cur.Status)
		}
		return NewStatusView(cur), nil
	case GatewayEventRequiresAction:
		switch p.Status {
		case types.PaymentStatusRequiresCustomerAction:
			return NewStatusView(p), nil
		case types.PaymentStatusCreated, types.PaymentStatusRequiresPaymentMethod:
		default:
			return nil, fmt.Errorf("%w: payment %s is %s", errs.ErrInvalid, p.ID, p.Status)
		}
		prev := p.Status
		p.Status = types.PaymentStatusRequiresCustomerAction
		won, err := e.store.Transition(ctx, p, prev, nil)
		if err != nil {
			return nil, err
		}
		if !won {
			return nil, fmt.Errorf("%w: payment %s changed concurrently", errs.ErrInvalid, p.ID)
		}
		e.record(ctx, p, prev, ev)
		e.publish(ctx, p.UserID, relay.PaymentStatusUpdate{PaymentID: p.ID, Status: p.Status, Message: "customer action required"})
		return NewStatusView(p), nil
	}
	return nil, fmt.Errorf("%w: gateway event %q", errs.ErrInvalid, ev.Event)
}

// ScanPayments lists payments for the admin console.
func (e *Engine) ScanPayments(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	return e.store.Scan(ctx, req)
}

// ListByUser returns a user's recent payments after settling due transitions.
func (e *Engine) ListByUser(ctx context.Context, userID string, limit int) ([]*StatusView, error) {
	rows, err := e.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*StatusView, 0, len(rows))
	for _, p := range rows {
		if p, err = e.settle(ctx, p); err != nil {
			return nil, err
		}
		out = append(out, NewStatusView(p))
	}
	return out, nil
}

func rewardKey(paymentID string) string { return "reward:" + paymentID }

// complete moves a PROCESSING payment to SUCCEEDED. The status swap, the credit
// grant and credits_added commit together, so only the swap winner grants and a
// failed grant leaves the payment PROCESSING for the next read to retry. The
// ledger key is claimed after commit and keeps the completion notice at most once
// across instances sharing the ledger.
func (e *Engine) complete(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	start := time.Now()
	prev := p.Status
	now := e.clk.Now()
	p.Status = types.PaymentStatusSucceeded
	p.CompletedAt = &now
	lg := logctx.FromCtx(ctx, e.log)

	won, err := e.store.Transition(ctx, p, prev, func(tx *gorm.DB) error {
		n, err := e.credits.GrantForPayment(ctx, tx, p)
		if err != nil {
			return err
		}
		p.CreditsAdded = n
		return tx.Model(&models.Payment{}).Where("id = ?", p.ID).Update("credits_added", n).Error
	})
	if err != nil {
		lg.Errorw("payment_complete_failed", "payment_id", p.ID, "err", err)
		return nil, err
	}
	if !won {
		return e.store.Get(ctx, p.ID)
	}
	e.stopTimer(p.ID)
	e.metrics.ObserveProcess("payment", "complete", start)
	e.record(ctx, p, prev, map[string]any{"credits_added": p.CreditsAdded})

	claimed, err := e.ledger.Claim(ctx, rewardKey(p.ID), 0)
	if err != nil {
		lg.Errorw("reward_ledger_claim_failed", "payment_id", p.ID, "err", err)
		claimed = true
	}
	if !claimed {
		lg.Warnw("reward_already_announced", "payment_id", p.ID)
		return p, nil
	}
	e.publish(ctx, p.UserID, relay.PaymentStatusUpdate{PaymentID: p.ID, Status: p.Status, Message: "payment succeeded"})
	e.publish(ctx, p.UserID, relay.PaymentCompleted{
		PaymentID:     p.ID,
		MachineID:     p.MachineID,
		CreditsAdded:  p.CreditsAdded,
		EarnedRewards: p.GetEarnedRewards(),
	})
	return p, nil
}

// finish moves p to CANCELLED or FAILED. When another writer got there first it
// returns the stored payment and won=false.
func (e *Engine) finish(ctx context.Context, p *models.Payment, to types.PaymentStatus, code, reason string) (*models.Payment, bool, error) {
	if !CanTransition(p.Status, to) {
		return p, false, nil
	}
	prev := p.Status
	p.Status = to
	if code != "" {
		p.FailureCode = &code
	}
	if reason != "" {
		p.FailureReason = &reason
	}
	won, err := e.store.Transition(ctx, p, prev, nil)
	if err != nil {
		return nil, false, err
	}
	if !won {
		cur, err := e.store.Get(ctx, p.ID)
		return cur, false, err
	}
	e.stopTimer(p.ID)
	e.record(ctx, p, prev, map[string]any{"code": code, "reason": reason})
	if to == types.PaymentStatusFailed {
		e.publish(ctx, p.UserID, relay.PaymentFailed{PaymentID: p.ID, ErrorCode: code, ErrorMessage: reason})
	} else {
		e.publish(ctx, p.UserID, relay.PaymentStatusUpdate{PaymentID: p.ID, Status: p.Status, Message: reason})
	}
	return p, true, nil
}

func (e *Engine) schedule(id string, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	if t, ok := e.timers[id]; ok {
		t.Stop()
	}
	e.timers[id] = e.clk.AfterFunc(delay, func() { e.onTimer(id) })
}

func (e *Engine) onTimer(id string) {
	e.mu.Lock()
	delete(e.timers, id)
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return
	}
	if _, err := e.GetStatus(context.Background(), id); err != nil && !errors.Is(err, errs.ErrNotFound) {
		e.log.Errorw("payment_timer_failed", "payment_id", id, "err", err)
	}
}

func (e *Engine) stopTimer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[id]; ok {
		t.Stop()
		delete(e.timers, id)
	}
}

// Pending returns the number of scheduled completions.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// Stop cancels every scheduled completion. Payments left PROCESSING still
// complete lazily on their next read.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

func (e *Engine) record(ctx context.Context, p *models.Payment, prev types.PaymentStatus, data any) {
	logctx.FromCtx(ctx, e.log).Infow("payment_transition", "payment_id", p.ID, "from", prev, "to", p.Status)
	e.metrics.PaymentTransition(string(p.Status))
	if e.events != nil {
		e.events.Transition(ctx, p.ID, string(prev), string(p.Status), data)
	}
}

func (e *Engine) publish(ctx context.Context, userID string, msg relay.Message) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(ctx, relay.NewEnvelope(msg, userID, e.clk.Now()))
}
