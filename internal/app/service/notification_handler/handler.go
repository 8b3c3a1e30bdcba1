package notification_handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/gachapon/internal/app/service/eventlog"
	"github.com/fatflowers/gachapon/internal/app/service/payment"
	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/config"
	"github.com/fatflowers/gachapon/pkg/logctx"
)

type GatewayEventHandler interface {
	HandleGatewayEvent(ctx context.Context, ev payment.GatewayEvent) (*payment.StatusView, error)
}

type EventLogger interface {
	Save(ctx context.Context, entry *models.PaymentEventLog)
}

type NotificationHandler struct {
	secret   string
	payments GatewayEventHandler
	logs     EventLogger
	clk      clock.Clock
	Logger   *zap.SugaredLogger
}

func NewNotificationHandler(cfg *config.Config, payments *payment.Engine, logs *eventlog.Service, clk clock.Clock, log *zap.SugaredLogger) *NotificationHandler {
	return New(cfg.Gateway.WebhookSecret, payments, logs, clk, log)
}

func New(secret string, payments GatewayEventHandler, logs EventLogger, clk clock.Clock, log *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{secret: secret, payments: payments, logs: logs, clk: clk, Logger: log}
}

// HandleNotification verifies and applies one gateway webhook. Every parsed
// notification leaves a received and a handled (or handle_failed) log row.
func (h *NotificationHandler) HandleNotification(ctx context.Context, body []byte, signature string) (view *payment.StatusView, resErr error) {
	parser, err := GetGatewayNotificationParser(h.secret, body, signature, h.clk.Now())
	if err != nil {
		return nil, err
	}
	provider := parser.GetProvider(ctx)
	dataBytes, _ := json.Marshal(parser.GetData(ctx))

	h.logs.Save(ctx, &models.PaymentEventLog{
		Source:    models.PaymentEventSourceWebhook,
		EventTime: parser.GetNotificationTime(ctx),
		Data:      datatypes.JSON(dataBytes),
		Status:    models.PaymentEventLogStatusReceived,
	})

	defer func() {
		resMap := map[string]any{
			"provider":          provider,
			"payment_intent_id": parser.GetPaymentIntentID(ctx),
			"payment":           view,
		}
		if resErr != nil {
			resMap["error"] = resErr.Error()
		}
		resBytes, _ := json.Marshal(resMap)
		result := datatypes.JSON(resBytes)
		status := models.PaymentEventLogStatusHandled
		if resErr != nil {
			status = models.PaymentEventLogStatusHandleFailed
		}
		entry := &models.PaymentEventLog{
			Source:    models.PaymentEventSourceWebhook,
			EventTime: h.clk.Now(),
			Data:      datatypes.JSON(dataBytes),
			Result:    &result,
			Status:    status,
		}
		if view != nil {
			entry.PaymentID = view.PaymentID
			entry.ToStatus = string(view.Status)
		}
		h.logs.Save(ctx, entry)
	}()

	ev, resErr := parser.GetEvent(ctx)
	if resErr != nil {
		return nil, resErr
	}
	view, resErr = h.payments.HandleGatewayEvent(ctx, *ev)
	if resErr != nil {
		logctx.FromCtx(ctx, h.Logger).Errorw("gateway_event_failed", "payment_intent_id", ev.PaymentIntentID, "event", ev.Event, "error", resErr.Error())
		return nil, fmt.Errorf("failed to apply gateway event: %w", resErr)
	}
	logctx.FromCtx(ctx, h.Logger).Infow("gateway_event_applied", "payment_id", view.PaymentID, "status", view.Status)
	return view, nil
}
