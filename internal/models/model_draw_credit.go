package models

import (
	"time"

	"github.com/fatflowers/gachapon/pkg/types"
)

// DrawCredit is a batch of draws a user may spend on one machine.
type DrawCredit struct {
	ID         string                 `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	UserID     string                 `gorm:"column:user_id;type:varchar(64);not null;index:idx_draw_credit_user_machine,priority:1" json:"user_id"`
	MachineID  string                 `gorm:"column:machine_id;type:varchar(64);not null;index:idx_draw_credit_user_machine,priority:2" json:"machine_id"`
	SourceType types.CreditSourceType `gorm:"column:source_type;type:varchar(32);not null" json:"source_type"`
	SourceID   string                 `gorm:"column:source_id;type:varchar(64);not null" json:"source_id"`
	PaymentID  string                 `gorm:"column:payment_id;type:varchar(64);not null;index" json:"payment_id"`
	Granted    int                    `gorm:"column:granted;not null" json:"granted"`
	Remaining  int                    `gorm:"column:remaining;not null" json:"remaining"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

func (DrawCredit) TableName() string {
	return "draw_credit"
}
