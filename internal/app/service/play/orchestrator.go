package play

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/internal/app/service/credit"
	"github.com/fatflowers/gachapon/internal/app/service/inventory"
	"github.com/fatflowers/gachapon/internal/app/service/qrcode"
	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/metrics"
	"github.com/fatflowers/gachapon/pkg/types"
)

type Credentials interface {
	Issue(ctx context.Context, userID, machineID, paymentID string) (*models.QRCredential, error)
	Decode(code string) (*qrcode.Payload, error)
	Validate(ctx context.Context, tx *gorm.DB, code string) (*models.QRCredential, error)
	LatestForPayment(ctx context.Context, userID, paymentID string) (*models.QRCredential, error)
}

type Credits interface {
	Consume(ctx context.Context, tx *gorm.DB, userID, machineID string) (*models.DrawCredit, error)
	Balance(ctx context.Context, userID, machineID string) (int, error)
}

type Inventory interface {
	Append(ctx context.Context, tx *gorm.DB, w inventory.Win) (*models.InventoryItem, error)
}

type Selector interface {
	Draw(catalog []*types.Prize) (*types.Prize, error)
}

type Catalog interface {
	GetMachine(ctx context.Context, id string) (*types.Machine, error)
	Prizes(ctx context.Context, machineID string) ([]*types.Prize, error)
}

type Payments interface {
	Get(ctx context.Context, userID, id string) (*models.Payment, error)
}

type Bus interface {
	Publish(ctx context.Context, env relay.Envelope)
	Subscribe(h relay.Handler) (unsubscribe func())
}

type Options struct {
	// DB runs the redeem, the credit spend and the inventory write of a scan
	// in one transaction.
	DB          *gorm.DB
	Credentials Credentials
	Credits     Credits
	Inventory   Inventory
	Selector    Selector
	Catalog     Catalog
	Payments    Payments
	Bus         Bus
	Clock       clock.Clock
	Log         *zap.SugaredLogger
	Metrics     *metrics.Business
}

// Orchestrator turns completed payments into credentials and scans into draws.
type Orchestrator struct {
	db        *gorm.DB
	qr        Credentials
	credits   Credits
	inventory Inventory
	selector  Selector
	catalog   Catalog
	payments  Payments
	bus       Bus
	clk       clock.Clock
	log       *zap.SugaredLogger
	metrics   *metrics.Business

	unsubscribe func()
}

func New(o Options) *Orchestrator {
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		db:        o.DB,
		qr:        o.Credentials,
		credits:   o.Credits,
		inventory: o.Inventory,
		selector:  o.Selector,
		catalog:   o.Catalog,
		payments:  o.Payments,
		bus:       o.Bus,
		clk:       o.Clock,
		log:       o.Log,
		metrics:   o.Metrics,
	}
}

// Start subscribes to payment completions.
func (o *Orchestrator) Start() {
	o.unsubscribe = o.bus.Subscribe(o)
}

func (o *Orchestrator) Stop() {
	if o.unsubscribe != nil {
		o.unsubscribe()
	}
}

// HandleEnvelope issues the first credential of a completed payment.
func (o *Orchestrator) HandleEnvelope(ctx context.Context, env relay.Envelope) error {
	msg, ok := env.Data.(relay.PaymentCompleted)
	if !ok || env.UserID == "" || msg.CreditsAdded <= 0 {
		return nil
	}
	_, err := o.issue(ctx, env.UserID, msg.MachineID, msg.PaymentID)
	return err
}

func (o *Orchestrator) issue(ctx context.Context, userID, machineID, paymentID string) (*models.QRCredential, error) {
	cred, err := o.qr.Issue(ctx, userID, machineID, paymentID)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, userID, relay.QRCodeGenerated{
		QRID:      cred.ID,
		Code:      cred.Code,
		MachineID: cred.MachineID,
		PaymentID: cred.PaymentID,
		ExpiresAt: cred.ExpiresAt,
	})
	return cred, nil
}

// DrawResult is what the machine needs to dispense.
type DrawResult struct {
	QRID             string                `json:"qr_id"`
	UserID           string                `json:"user_id"`
	MachineID        string                `json:"machine_id"`
	PaymentID        string                `json:"payment_id"`
	Prize            *types.Prize          `json:"prize"`
	InventoryItem    *models.InventoryItem `json:"inventory_item"`
	CreditsRemaining int                   `json:"credits_remaining"`
	NextQRIssued     bool                  `json:"next_qr_issued"`
}

// Scan redeems a credential presented at machineID and performs one draw.
func (o *Orchestrator) Scan(ctx context.Context, machineID, code string) (*DrawResult, error) {
	payload, err := o.qr.Decode(code)
	if err != nil {
		return nil, err
	}
	userID := payload.UserID
	res, err := o.scan(ctx, machineID, code, payload)
	if err != nil {
		logctx.FromCtx(ctx, o.log).Warnw("scan_failed", "machine_id", machineID, "qr_id", payload.QRID, "user_id", userID, "err", err)
		o.publish(ctx, userID, relay.Error{Code: ScanErrorCode(err), Message: ScanErrorMessage(err)})
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) scan(ctx context.Context, machineID, code string, payload *qrcode.Payload) (*DrawResult, error) {
	if payload.MachineID != machineID {
		return nil, fmt.Errorf("%w: code was issued for machine %s", errs.ErrInvalid, payload.MachineID)
	}
	m, err := o.catalog.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	pool, err := o.catalog.Prizes(ctx, machineID)
	if err != nil {
		return nil, err
	}
	var (
		cred   *models.QRCredential
		spent  *models.DrawCredit
		prize  *types.Prize
		item   *models.InventoryItem
	)
	// a failed step rolls back the redeem, so the code stays usable and no draw is lost
	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if cred, err = o.qr.Validate(ctx, tx, code); err != nil {
			return err
		}
		if spent, err = o.credits.Consume(ctx, tx, cred.UserID, machineID); err != nil {
			return err
		}
		if prize, err = o.selector.Draw(pool); err != nil {
			return err
		}
		item, err = o.inventory.Append(ctx, tx, inventory.Win{
			UserID:       cred.UserID,
			MachineID:    machineID,
			PaymentID:    spent.PaymentID,
			DrawCreditID: spent.ID,
			Prize:        prize,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	o.publish(ctx, cred.UserID, relay.QRCodeScanned{
		QRID:                cred.ID,
		MachineID:           m.ID,
		MachineName:         m.Name,
		MachineSerialNumber: m.SerialNumber,
		ScannedAt:           *cred.ConsumedAt,
	})
	o.metrics.Draw(machineID, string(prize.Rarity))
	logctx.FromCtx(ctx, o.log).Infow("draw", "machine_id", machineID, "user_id", cred.UserID, "prize_id", prize.ID, "rarity", prize.Rarity, "item_id", item.ID)

	res := &DrawResult{
		QRID:          cred.ID,
		UserID:        cred.UserID,
		MachineID:     machineID,
		PaymentID:     cred.PaymentID,
		Prize:         prize,
		InventoryItem: item,
	}
	remaining, err := o.credits.Balance(ctx, cred.UserID, machineID)
	if err != nil {
		return nil, err
	}
	res.CreditsRemaining = remaining
	if remaining > 0 {
		if _, err := o.issue(ctx, cred.UserID, machineID, cred.PaymentID); err != nil {
			logctx.FromCtx(ctx, o.log).Errorw("next_qr_issue_failed", "payment_id", cred.PaymentID, "err", err)
		} else {
			res.NextQRIssued = true
		}
	}
	return res, nil
}

// RedirectToPayment tells the user's app to open checkout for machineID.
func (o *Orchestrator) RedirectToPayment(ctx context.Context, machineID, userID, sessionToken string) (*relay.RedirectToPayment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", errs.ErrInvalid)
	}
	m, err := o.catalog.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(m.DrawCost)
	if err != nil {
		return nil, fmt.Errorf("%w: machine %s draw cost %q", errs.ErrInvalid, m.ID, m.DrawCost)
	}
	msg := relay.RedirectToPayment{
		MachineID:           m.ID,
		MachineName:         m.Name,
		MachineSerialNumber: m.SerialNumber,
		PricePerDraw:        price.StringFixed(2),
		Currency:            m.Currency,
		UserID:              userID,
		SessionToken:        sessionToken,
	}
	o.publish(ctx, userID, msg)
	return &msg, nil
}

// Credential returns the usable credential of a succeeded payment. When the last
// one expired unused and draws remain, a fresh one is issued.
func (o *Orchestrator) Credential(ctx context.Context, userID, paymentID string) (*models.QRCredential, error) {
	p, err := o.payments.Get(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != types.PaymentStatusSucceeded {
		return nil, fmt.Errorf("%w: payment %s is %s", errs.ErrInvalid, paymentID, p.Status)
	}
	cred, err := o.qr.LatestForPayment(ctx, userID, paymentID)
	if err == nil || !errors.Is(err, errs.ErrNotFound) {
		return cred, err
	}
	remaining, err := o.credits.Balance(ctx, userID, p.MachineID)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		return nil, fmt.Errorf("%w: no draws left for payment %s", errs.ErrNotFound, paymentID)
	}
	return o.issue(ctx, userID, p.MachineID, paymentID)
}

func (o *Orchestrator) publish(ctx context.Context, userID string, msg relay.Message) {
	o.bus.Publish(ctx, relay.NewEnvelope(msg, userID, o.clk.Now()))
}

// ScanErrorCode maps a scan failure to the code pushed to the app.
func ScanErrorCode(err error) string {
	switch errs.Kind(err) {
	case errs.ErrInvalid:
		if errors.Is(err, credit.ErrNoCredits) {
			return "NO_CREDITS"
		}
		return "QR_INVALID"
	case errs.ErrNotFound:
		return "QR_NOT_FOUND"
	case errs.ErrAlreadyUsed:
		return "QR_ALREADY_USED"
	case errs.ErrExpired:
		return "QR_EXPIRED"
	}
	return "DRAW_FAILED"
}

// ScanErrorMessage is the user facing text for a scan failure.
func ScanErrorMessage(err error) string {
	switch errs.Kind(err) {
	case errs.ErrAlreadyUsed:
		return "this code was already used"
	case errs.ErrExpired:
		return "this code has expired, please refresh it in the app"
	case errs.ErrNotFound:
		return "this code is not recognised"
	case errs.ErrInvalid:
		return "this code cannot be used on this machine"
	}
	return "the draw could not be completed, please try again"
}
