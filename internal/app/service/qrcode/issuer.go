package qrcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/metrics"
	"github.com/fatflowers/gachapon/pkg/tool"
)

const DefaultTTL = 2 * time.Minute

// Payload is the sealed content of a credential.
type Payload struct {
	QRID      string `json:"qr_id"`
	UserID    string `json:"user_id"`
	MachineID string `json:"machine_id"`
	PaymentID string `json:"payment_id"`
	IssuedAt  int64  `json:"issued_at"`
}

type Issuer struct {
	db      *gorm.DB
	sealer  *Sealer
	clk     clock.Clock
	ttl     time.Duration
	log     *zap.SugaredLogger
	metrics *metrics.Business
}

type Options struct {
	DB      *gorm.DB
	Sealer  *Sealer
	Clock   clock.Clock
	TTL     time.Duration
	Log     *zap.SugaredLogger
	Metrics *metrics.Business
}

func NewIssuer(o Options) *Issuer {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
	return &Issuer{db: o.DB, sealer: o.Sealer, clk: o.Clock, ttl: o.TTL, log: o.Log, metrics: o.Metrics}
}

// Issue seals a new single-use credential for one draw and stores it.
func (i *Issuer) Issue(ctx context.Context, userID, machineID, paymentID string) (*models.QRCredential, error) {
	now := i.clk.Now()
	p := Payload{
		QRID:      tool.PrefixedID("qr"),
		UserID:    userID,
		MachineID: machineID,
		PaymentID: paymentID,
		IssuedAt:  now.UnixMilli(),
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	code, err := i.sealer.Seal(b)
	if err != nil {
		return nil, fmt.Errorf("seal qr payload: %w", err)
	}
	cred := &models.QRCredential{
		ID:        p.QRID,
		UserID:    userID,
		MachineID: machineID,
		PaymentID: paymentID,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	if err := i.db.WithContext(ctx).Create(cred).Error; err != nil {
		return nil, fmt.Errorf("store qr credential: %w", err)
	}
	logctx.FromCtx(ctx, i.log).Infow("qr_issued", "qr_id", cred.ID, "payment_id", paymentID, "machine_id", machineID, "expires_at", cred.ExpiresAt)
	return cred, nil
}

// Decode opens a code without touching its stored state.
func (i *Issuer) Decode(code string) (*Payload, error) {
	b, err := i.sealer.Open(code)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil || p.QRID == "" {
		return nil, fmt.Errorf("%w: malformed qr payload", errs.ErrInvalid)
	}
	return &p, nil
}

// Validate redeems a code using tx (or the issuer db when tx is nil). Checks run
// in order: Invalid, NotFound, AlreadyUsed, Expired. A consumed code reports
// AlreadyUsed even once expired.
func (i *Issuer) Validate(ctx context.Context, tx *gorm.DB, code string) (cred *models.QRCredential, err error) {
	defer func() { i.metrics.QRValidation(validationResult(err)) }()

	p, err := i.Decode(code)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		tx = i.db
	}
	var stored models.QRCredential
	err = tx.WithContext(ctx).Where("id = ?", p.QRID).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: qr %s", errs.ErrNotFound, p.QRID)
	}
	if err != nil {
		return nil, err
	}
	if stored.UserID != p.UserID || stored.MachineID != p.MachineID || stored.PaymentID != p.PaymentID {
		return nil, fmt.Errorf("%w: qr %s payload mismatch", errs.ErrInvalid, p.QRID)
	}
	if stored.IsConsumed() {
		return nil, fmt.Errorf("%w: qr %s", errs.ErrAlreadyUsed, p.QRID)
	}
	now := i.clk.Now()
	if stored.IsExpiredAt(now) {
		return nil, fmt.Errorf("%w: qr %s expired at %s", errs.ErrExpired, p.QRID, stored.ExpiresAt.Format(time.RFC3339))
	}
	res := tx.WithContext(ctx).Model(&models.QRCredential{}).
		Where("id = ? AND consumed_at IS NULL", stored.ID).
		Update("consumed_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, fmt.Errorf("%w: qr %s", errs.ErrAlreadyUsed, p.QRID)
	}
	stored.ConsumedAt = &now
	logctx.FromCtx(ctx, i.log).Infow("qr_consumed", "qr_id", stored.ID, "payment_id", stored.PaymentID, "machine_id", stored.MachineID)
	return &stored, nil
}

// LatestForPayment returns the newest credential of a payment that can still be redeemed.
func (i *Issuer) LatestForPayment(ctx context.Context, userID, paymentID string) (*models.QRCredential, error) {
	var cred models.QRCredential
	err := i.db.WithContext(ctx).
		Where("payment_id = ? AND user_id = ? AND consumed_at IS NULL AND expires_at > ?", paymentID, userID, i.clk.Now()).
		Order("issued_at DESC, id DESC").
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no usable qr for payment %s", errs.ErrNotFound, paymentID)
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func validationResult(err error) string {
	if err == nil {
		return "ok"
	}
	switch errs.Kind(err) {
	case errs.ErrInvalid:
		return "invalid"
	case errs.ErrNotFound:
		return "not_found"
	case errs.ErrAlreadyUsed:
		return "already_used"
	case errs.ErrExpired:
		return "expired"
	}
	return "error"
}
