package notification_handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/gachapon/internal/app/service/payment"
	"github.com/fatflowers/gachapon/pkg/errs"
)

const ProviderGateway = "gateway"

// SignatureHeader carries hex(HMAC-SHA256(secret, body)), optionally prefixed with "sha256=".
const SignatureHeader = "X-Gateway-Signature"

type GatewayNotificationParser struct {
	NotificationTime time.Time
	Notification     *payment.GatewayEvent
}

func (p *GatewayNotificationParser) GetProvider(ctx context.Context) string {
	return ProviderGateway
}

func (p *GatewayNotificationParser) GetNotificationTime(ctx context.Context) time.Time {
	return p.NotificationTime
}

func (p *GatewayNotificationParser) GetPaymentIntentID(ctx context.Context) string {
	return p.Notification.PaymentIntentID
}

func (p *GatewayNotificationParser) GetEvent(ctx context.Context) (*payment.GatewayEvent, error) {
	if p.Notification.PaymentIntentID == "" {
		return nil, fmt.Errorf("%w: payment_intent_id is empty", errs.ErrInvalid)
	}
	if p.Notification.Event == "" {
		return nil, fmt.Errorf("%w: event is empty", errs.ErrInvalid)
	}
	return p.Notification, nil
}

func (p *GatewayNotificationParser) GetData(ctx context.Context) any {
	return p.Notification
}

// Sign returns the signature the gateway sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against body. An empty secret disables the check.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return nil
	}
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(got) == 0 {
		return fmt.Errorf("%w: malformed signature", errs.ErrInvalid)
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	if !hmac.Equal(got, want) {
		return fmt.Errorf("%w: signature mismatch", errs.ErrInvalid)
	}
	return nil
}

func GetGatewayNotificationParser(secret string, body []byte, signature string, notificationTime time.Time) (NotificationParser, error) {
	if notificationTime.IsZero() {
		notificationTime = time.Now()
	}
	if err := VerifySignature(secret, body, signature); err != nil {
		return nil, err
	}
	var ev payment.GatewayEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalid, err)
	}
	return &GatewayNotificationParser{NotificationTime: notificationTime, Notification: &ev}, nil
}
