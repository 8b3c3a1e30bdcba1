package types

import "time"

type MachineStatus string

const (
	MachineStatusAvailable   MachineStatus = "AVAILABLE"
	MachineStatusInUse       MachineStatus = "IN_USE"
	MachineStatusMaintenance MachineStatus = "MAINTENANCE"
	MachineStatusOffline     MachineStatus = "OFFLINE"
)

type PrizeType string

const (
	PrizeTypePhysical PrizeType = "PHYSICAL"
	PrizeTypeEVoucher PrizeType = "EVOUCHER"
	PrizeTypeFreePlay PrizeType = "FREE_PLAY"
)

type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityRare      Rarity = "RARE"
	RarityLegendary Rarity = "LEGENDARY"
)

type PrizeStatus string

const (
	PrizeStatusActive       PrizeStatus = "ACTIVE"
	PrizeStatusDiscontinued PrizeStatus = "DISCONTINUED"
)

type EventRewardType string

const (
	EventRewardTypeExtraSpin EventRewardType = "EXTRA_SPIN"
	EventRewardTypeVoucher   EventRewardType = "VOUCHER"
	EventRewardTypeDiscount  EventRewardType = "DISCOUNT"
	EventRewardTypeFreePrize EventRewardType = "FREE_PRIZE"
)

type EventJoinMode string

const (
	EventJoinModeAuto   EventJoinMode = "AUTO_JOIN"
	EventJoinModeManual EventJoinMode = "MANUAL_JOIN"
)

type EventStatus string

const (
	EventStatusActive   EventStatus = "ACTIVE"
	EventStatusUpcoming EventStatus = "UPCOMING"
	EventStatusEnded    EventStatus = "ENDED"
)

// Machine is a physical gachapon machine. DrawCost is a decimal string in the
// machine currency, e.g. "5.00".
type Machine struct {
	ID           string        `mapstructure:"id" json:"id"`
	Name         string        `mapstructure:"name" json:"name"`
	SerialNumber string        `mapstructure:"serial_number" json:"serial_number"`
	Location     string        `mapstructure:"location" json:"location"`
	Status       MachineStatus `mapstructure:"status" json:"status"`
	DrawCost     string        `mapstructure:"draw_cost" json:"draw_cost"`
	Currency     string        `mapstructure:"currency" json:"currency"`
	ImageURL     string        `mapstructure:"image_url" json:"image_url"`
	Description  string        `mapstructure:"description" json:"description"`
	PrizeIDs     []string      `mapstructure:"prize_ids" json:"prize_ids"`
}

type Prize struct {
	ID          string      `mapstructure:"id" json:"id"`
	Name        string      `mapstructure:"name" json:"name"`
	Description string      `mapstructure:"description" json:"description"`
	ImageURL    string      `mapstructure:"image_url" json:"image_url"`
	Type        PrizeType   `mapstructure:"type" json:"type"`
	Rarity      Rarity      `mapstructure:"rarity" json:"rarity"`
	Status      PrizeStatus `mapstructure:"status" json:"status"`
}

// Event is a merchant promotion. An empty MachineIDs list makes it global.
type Event struct {
	ID                  string          `mapstructure:"id" json:"id"`
	Title               string          `mapstructure:"title" json:"title"`
	Description         string          `mapstructure:"description" json:"description"`
	RewardType          EventRewardType `mapstructure:"reward_type" json:"reward_type"`
	JoinMode            EventJoinMode   `mapstructure:"join_mode" json:"join_mode"`
	Status              EventStatus     `mapstructure:"status" json:"status"`
	StartDate           time.Time       `mapstructure:"start_date" json:"start_date"`
	EndDate             time.Time       `mapstructure:"end_date" json:"end_date"`
	MachineIDs          []string        `mapstructure:"machine_ids" json:"machine_ids,omitempty"`
	MinimumDrawCount    int             `mapstructure:"minimum_draw_count" json:"minimum_draw_count"`
	MinimumPurchaseSpin int             `mapstructure:"minimum_purchase_spin" json:"minimum_purchase_spin"`
	RewardValue         string          `mapstructure:"reward_value" json:"reward_value"`
}

// IsActiveAt reports whether the event runs at t.
func (e *Event) IsActiveAt(t time.Time) bool {
	if e == nil || e.Status != EventStatusActive {
		return false
	}
	return !t.Before(e.StartDate) && !t.After(e.EndDate)
}

// AppliesTo reports whether the event covers the machine.
func (e *Event) AppliesTo(machineID string) bool {
	if len(e.MachineIDs) == 0 {
		return true
	}
	for _, id := range e.MachineIDs {
		if id == machineID {
			return true
		}
	}
	return false
}
