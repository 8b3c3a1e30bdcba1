package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/eventlog"
	"github.com/fatflowers/gachapon/internal/app/service/payment"
	"github.com/fatflowers/gachapon/internal/app/service/statistics"
	models "github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/response"
	"github.com/fatflowers/gachapon/pkg/types"
)

type ListPaymentsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type PaymentItem struct {
	ID              string               `json:"id"`
	UserID          string               `json:"user_id"`
	MachineID       string               `json:"machine_id"`
	DrawCount       int                  `json:"draw_count"`
	Amount          string               `json:"amount"`
	Currency        string               `json:"currency"`
	Status          types.PaymentStatus  `json:"status"`
	PaymentMethod   string               `json:"payment_method"`
	PaymentIntentID string               `json:"payment_intent_id"`
	CreditsAdded    int                  `json:"credits_added"`
	EarnedRewards   []types.EarnedReward `json:"earned_rewards"`
	FailureCode     *string              `json:"failure_code"`
	ExpiresAt       time.Time            `json:"expires_at"`
	CompletedAt     *time.Time           `json:"completed_at"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

func toPaymentItem(m *models.Payment) *PaymentItem {
	return &PaymentItem{
		ID:              m.ID,
		UserID:          m.UserID,
		MachineID:       m.MachineID,
		DrawCount:       m.DrawCount,
		Amount:          m.Amount.StringFixed(2),
		Currency:        m.Currency,
		Status:          m.Status,
		PaymentMethod:   m.PaymentMethod,
		PaymentIntentID: m.PaymentIntentID,
		CreditsAdded:    m.CreditsAdded,
		EarnedRewards:   m.GetEarnedRewards(),
		FailureCode:     m.FailureCode,
		ExpiresAt:       m.ExpiresAt,
		CompletedAt:     m.CompletedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type ListPaymentsResponse struct {
	Items []*PaymentItem `json:"items"`
	Total int64          `json:"total"`
}

// @Summary      List Payments (Admin)
// @Description  Retrieves a paginated and filterable list of all payments.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListPaymentsRequest true "List payments request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListPayments
// @Router       /api/v1/admin/list_payments [post]
func ApiListPaymentsAdmin(e *payment.Engine, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListPaymentsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := e.ScanPayments(c.Request.Context(), &payment.ScanRequest{
			Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder,
		})
		if err != nil {
			fail(c, log, err)
			return
		}
		items := lo.Map(res.Items, func(it *models.Payment, _ int) *PaymentItem { return toPaymentItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListPaymentsResponse{Items: items, Total: res.Total}))
	}
}

// @Summary      Payment Audit Trail (Admin)
// @Description  Returns the status transitions and webhooks recorded for a payment, oldest first.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.RespPaymentEvents
// @Router       /api/v1/admin/payments/{id}/events [get]
func ApiPaymentEvents(logs *eventlog.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := logs.ListByPayment(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      Payment Statistics (Admin)
// @Description  Daily payment counts, revenue, draws and conversion, optionally filtered.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.PaymentStatisticRequest true "Data items and filters"
// @Success      200  {object}  handlers.RespPaymentStatistic
// @Router       /api/v1/admin/get_payment_statistic [post]
func ApiPaymentStatistic(s *statistics.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.PaymentStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := s.GetPaymentStatistic(c.Request.Context(), &req)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminPaymentRoutes(r gin.IRouter, e *payment.Engine, logs *eventlog.Service, stats *statistics.Service, log *zap.SugaredLogger) {
	r.POST("/list_payments", ApiListPaymentsAdmin(e, log))
	r.GET("/payments/:id/events", ApiPaymentEvents(logs, log))
	r.POST("/get_payment_statistic", ApiPaymentStatistic(stats, log))
}
