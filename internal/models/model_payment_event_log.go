package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentEventLogStatus string

const (
	PaymentEventLogStatusReceived     PaymentEventLogStatus = "received"
	PaymentEventLogStatusHandled      PaymentEventLogStatus = "handled"
	PaymentEventLogStatusHandleFailed PaymentEventLogStatus = "handle_failed"
)

type PaymentEventSource string

const (
	PaymentEventSourceEngine  PaymentEventSource = "engine"
	PaymentEventSourceWebhook PaymentEventSource = "webhook"
)

// PaymentEventLog is the audit trail of payment transitions and gateway webhooks.
type PaymentEventLog struct {
	ID         string                `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	PaymentID  string                `gorm:"column:payment_id;type:varchar(64);index" json:"payment_id"`
	UserID     *string               `gorm:"column:user_id;type:varchar(64)" json:"user_id"`
	TraceID    string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Source     PaymentEventSource    `gorm:"column:source;type:varchar(32);not null" json:"source"`
	FromStatus string                `gorm:"column:from_status;type:varchar(32)" json:"from_status"`
	ToStatus   string                `gorm:"column:to_status;type:varchar(32)" json:"to_status"`
	EventTime  time.Time             `gorm:"column:event_time" json:"event_time"`
	Data       datatypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	Result     *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	Status     PaymentEventLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func (PaymentEventLog) TableName() string { return "payment_event_log" }
