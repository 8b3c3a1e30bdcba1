package models

import (
	"time"

	"github.com/fatflowers/gachapon/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment is a purchase of DrawCount draws on one machine.
type Payment struct {
	ID              string              `gorm:"column:id;primary_key;type:varchar(64);index:idx_payment_user_id_id,priority:2,sort:desc" json:"id"`
	UserID          string              `gorm:"column:user_id;type:varchar(64);not null;index:idx_payment_user_id_id,priority:1" json:"user_id"`
	MachineID       string              `gorm:"column:machine_id;type:varchar(64);not null" json:"machine_id"`
	DrawCount       int                 `gorm:"column:draw_count;not null" json:"draw_count"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency        string              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status          types.PaymentStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	PaymentMethod   string              `gorm:"column:payment_method;type:varchar(32)" json:"payment_method"`
	PaymentIntentID string              `gorm:"column:payment_intent_id;type:varchar(64);not null;uniqueIndex" json:"payment_intent_id"`
	ClientSecret    string              `gorm:"column:client_secret;type:varchar(128);not null" json:"-"`
	ExpiresAt       time.Time           `gorm:"column:expires_at;not null" json:"expires_at"`
	// CompleteAfter is set by confirm; once passed, a PROCESSING payment is completed on the next read.
	CompleteAfter *time.Time `gorm:"column:complete_after;default:null" json:"complete_after,omitempty"`
	CompletedAt   *time.Time `gorm:"column:completed_at;default:null" json:"completed_at,omitempty"`
	CreditsAdded  int        `gorm:"column:credits_added;not null;default:0" json:"credits_added"`
	FailureCode   *string    `gorm:"column:failure_code;type:varchar(64);default:null" json:"failure_code,omitempty"`
	FailureReason *string    `gorm:"column:failure_reason;type:varchar(255);default:null" json:"failure_reason,omitempty"`

	EarnedRewards datatypes.JSONType[[]types.EarnedReward] `gorm:"column:earned_rewards;type:jsonb" json:"earned_rewards"`
	CreatedAt     time.Time                                `json:"created_at"`
	UpdatedAt     time.Time                                `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}

func (p *Payment) GetEarnedRewards() []types.EarnedReward {
	if p == nil {
		return nil
	}
	return p.EarnedRewards.Data()
}

// IsTerminal reports whether the payment reached a final status.
func (p *Payment) IsTerminal() bool {
	return p != nil && p.Status.IsTerminal()
}
