package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/payment"
	"github.com/fatflowers/gachapon/internal/app/service/play"
	"github.com/fatflowers/gachapon/pkg/response"
	"github.com/fatflowers/gachapon/pkg/types"
)

const maxListPayments = 100

type PreviewPaymentRequest struct {
	MachineID string `json:"machine_id" binding:"required"`
	DrawCount int    `json:"draw_count"`
}

type CreatePaymentRequest struct {
	MachineID     string              `json:"machine_id" binding:"required"`
	DrawCount     int                 `json:"draw_count"`
	PaymentMethod types.PaymentMethod `json:"payment_method"`
}

// @Summary      Preview a payment
// @Description  Prices a draw count on a machine and lists the events it qualifies for.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body PreviewPaymentRequest true "Machine and draw count"
// @Success      200  {object}  handlers.RespPreview
// @Router       /api/v1/payments/preview [post]
func ApiPreviewPayment(e *payment.Engine, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PreviewPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := e.Preview(c.Request.Context(), req.MachineID, req.DrawCount)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Create a payment
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body CreatePaymentRequest true "Machine, draw count and method"
// @Success      200  {object}  handlers.RespIntent
// @Router       /api/v1/payments [post]
func ApiCreatePayment(e *payment.Engine, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		in, err := e.Create(c.Request.Context(), payment.CreateRequest{
			UserID:        userID(c),
			MachineID:     req.MachineID,
			DrawCount:     req.DrawCount,
			PaymentMethod: req.PaymentMethod,
		})
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(in))
	}
}

// owned runs op on a payment the caller owns.
func owned(e *payment.Engine, log *zap.SugaredLogger, op func(c *gin.Context, id string) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := e.Get(c.Request.Context(), userID(c), id); err != nil {
			fail(c, log, err)
			return
		}
		res, err := op(c, id)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Confirm a payment
// @Description  Moves the payment to PROCESSING. Completion follows after a short delay or a gateway webhook.
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.RespStatus
// @Router       /api/v1/payments/{id}/confirm [post]
func ApiConfirmPayment(e *payment.Engine, log *zap.SugaredLogger) gin.HandlerFunc {
	return owned(e, log, func(c *gin.Context, id string) (any, error) {
		return e.Confirm(c.Request.Context(), id)
	})
}

// @Summary      Cancel a payment
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.RespStatus
// @Router       /api/v1/payments/{id}/cancel [post]
func ApiCancelPayment(e *payment.Engine, log *zap.SugaredLogger) gin.HandlerFunc {
	return owned(e, log, func(c *gin.Context, id string) (any, error) {
		return e.Cancel(c.Request.Context(), id)
	})
}

// @Summary      Get payment status
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.RespStatus
// @Router       /api/v1/payments/{id} [get]
func ApiGetPayment(e *payment.Engine, log *zap.SugaredLogger) gin.HandlerFunc {
	return owned(e, log, func(c *gin.Context, id string) (any, error) {
		return e.GetStatus(c.Request.Context(), id)
	})
}

// @Summary      Wait for a payment to finish
// @Description  Polls until the payment is terminal. Gives up with code 40800.
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Param        attempts query int false "Maximum status checks"
// @Param        interval_ms query int false "Delay between checks"
// @Success      200  {object}  handlers.RespStatus
// @Router       /api/v1/payments/{id}/poll [get]
func ApiPollPayment(e *payment.Engine, log *zap.SugaredLogger) gin.HandlerFunc {
	return owned(e, log, func(c *gin.Context, id string) (any, error) {
		attempts, _ := strconv.Atoi(c.Query("attempts"))
		intervalMS, _ := strconv.Atoi(c.Query("interval_ms"))
		return e.Poll(c.Request.Context(), id, attempts, time.Duration(intervalMS)*time.Millisecond)
	})
}

// @Summary      Current QR code of a payment
// @Description  Returns the usable QR credential of a succeeded payment, issuing a new one when the last expired and draws remain.
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.RespCredential
// @Router       /api/v1/payments/{id}/qr [get]
func ApiPaymentQR(o *play.Orchestrator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, err := o.Credential(c.Request.Context(), userID(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(cred))
	}
}

// @Summary      List own payments
// @Tags         Payment
// @Produce      json
// @Param        limit query int false "Maximum items, newest first"
// @Success      200  {object}  handlers.RespStatuses
// @Router       /api/v1/payments [get]
func ApiListPayments(e *payment.Engine, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				badRequest(c, "invalid limit")
				return
			}
			limit = min(n, maxListPayments)
		}
		res, err := e.ListByUser(c.Request.Context(), userID(c), limit)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// RegisterPaymentRoutes mounts the player payment APIs. limit guards the
// routes that allocate payments.
func RegisterPaymentRoutes(r gin.IRouter, e *payment.Engine, o *play.Orchestrator, limit gin.HandlerFunc, log *zap.SugaredLogger) {
	r.POST("/preview", limit, ApiPreviewPayment(e, log))
	r.POST("", limit, ApiCreatePayment(e, log))
	r.GET("", ApiListPayments(e, log))
	r.GET("/:id", ApiGetPayment(e, log))
	r.POST("/:id/confirm", ApiConfirmPayment(e, log))
	r.POST("/:id/cancel", ApiCancelPayment(e, log))
	r.GET("/:id/poll", ApiPollPayment(e, log))
	r.GET("/:id/qr", ApiPaymentQR(o, log))
}
