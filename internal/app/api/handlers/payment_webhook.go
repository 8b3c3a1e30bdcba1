package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	nh "github.com/fatflowers/gachapon/internal/app/service/notification_handler"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/response"
)

const maxWebhookBody = 64 << 10

// @Summary      Gateway Webhook
// @Description  Applies a payment gateway notification. The body is signed with HMAC-SHA256 in X-Gateway-Signature.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        X-Gateway-Signature header string true "hex HMAC-SHA256 of the body"
// @Param        payload body payment.GatewayEvent true "Gateway notification"
// @Success      200  {object}  handlers.RespStatus
// @Router       /api/v1/payments/webhook [post]
func ApiGatewayWebhook(h *nh.NotificationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		logctx.FromGin(c, h.Logger).Infow("webhook_gateway_received")

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		view, err := h.HandleNotification(c.Request.Context(), body, c.GetHeader(nh.SignatureHeader))
		if err != nil {
			logctx.FromGin(c, h.Logger).Errorw("webhook_gateway_handle_error", "error", err.Error())
			fail(c, h.Logger, err)
			return
		}
		logctx.FromGin(c, h.Logger).Infow("webhook_gateway_handled", "payment_id", view.PaymentID, "status", view.Status)
		c.JSON(http.StatusOK, response.OKT(view))
	}
}

func RegisterPaymentWebhookRoutes(r gin.IRouter, h *nh.NotificationHandler) {
	r.POST("/webhook", ApiGatewayWebhook(h))
}
