package models

import "time"

// QRCredential is a single-use encrypted code that lets a machine dispense one draw.
type QRCredential struct {
	ID         string     `gorm:"column:id;primary_key;type:varchar(64)" json:"id"`
	UserID     string     `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	MachineID  string     `gorm:"column:machine_id;type:varchar(64);not null" json:"machine_id"`
	PaymentID  string     `gorm:"column:payment_id;type:varchar(64);not null;index" json:"payment_id"`
	Code       string     `gorm:"column:code;type:text;not null" json:"code"`
	IssuedAt   time.Time  `gorm:"column:issued_at;not null" json:"issued_at"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	ConsumedAt *time.Time `gorm:"column:consumed_at;default:null" json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (QRCredential) TableName() string {
	return "qr_credential"
}

func (q *QRCredential) IsConsumed() bool {
	return q != nil && q.ConsumedAt != nil
}

func (q *QRCredential) IsExpiredAt(t time.Time) bool {
	return q != nil && !t.Before(q.ExpiresAt)
}
