package notification_handler

import (
	"context"
	"time"

	"github.com/fatflowers/gachapon/internal/app/service/payment"
)

type NotificationParser interface {
	GetProvider(ctx context.Context) string
	GetNotificationTime(ctx context.Context) time.Time
	GetPaymentIntentID(ctx context.Context) string
	GetEvent(ctx context.Context) (*payment.GatewayEvent, error)
	GetData(ctx context.Context) any
}
