package models

import (
	"time"

	"github.com/fatflowers/gachapon/pkg/types"
	"gorm.io/datatypes"
)

// InventoryItem is a prize won by a user. One row per draw.
type InventoryItem struct {
	ID            string                `gorm:"column:id;primary_key;type:varchar(64);index:idx_inventory_user_id_id,priority:2,sort:desc" json:"id"`
	UserID        string                `gorm:"column:user_id;type:varchar(64);not null;index:idx_inventory_user_id_id,priority:1" json:"user_id"`
	MachineID     string                `gorm:"column:machine_id;type:varchar(64);not null" json:"machine_id"`
	PrizeID       string                `gorm:"column:prize_id;type:varchar(64);not null" json:"prize_id"`
	PaymentID     string                `gorm:"column:payment_id;type:varchar(64)" json:"payment_id"`
	DrawCreditID  string                `gorm:"column:draw_credit_id;type:varchar(64);index" json:"draw_credit_id"`
	Status        types.InventoryStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	WonAt         time.Time             `gorm:"column:won_at;not null" json:"won_at"`
	ClaimedAt     *time.Time            `gorm:"column:claimed_at;default:null" json:"claimed_at,omitempty"`
	CollectedAt   *time.Time            `gorm:"column:collected_at;default:null" json:"collected_at,omitempty"`
	CollectionRef *string               `gorm:"column:collection_ref;type:varchar(64);default:null" json:"collection_ref,omitempty"`

	PrizeSnapshot datatypes.JSONType[*types.Prize] `gorm:"column:prize_snapshot;type:jsonb" json:"prize"`
	CreatedAt     time.Time                        `json:"created_at"`
	UpdatedAt     time.Time                        `json:"updated_at"`
}

func (InventoryItem) TableName() string {
	return "inventory_item"
}
