package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/play"
	"github.com/fatflowers/gachapon/pkg/logctx"
	"github.com/fatflowers/gachapon/pkg/response"
)

type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

type RedirectRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	SessionToken string `json:"session_token"`
}

// @Summary      Scan a QR code
// @Description  Redeems a QR credential at the machine and performs one draw.
// @Tags         Machine
// @Accept       json
// @Produce      json
// @Param        X-Machine-Key header string true "Machine key"
// @Param        id path string true "Machine ID"
// @Param        request body ScanRequest true "Scanned code"
// @Success      200  {object}  handlers.RespDraw
// @Router       /api/v1/machines/{id}/scan [post]
func ApiMachineScan(o *play.Orchestrator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := o.Scan(c.Request.Context(), c.Param("id"), req.Code)
		if err != nil {
			logctx.FromGin(c, log).Infow("machine_scan_rejected", "machine_id", c.Param("id"), "code", play.ScanErrorCode(err))
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Send the player to checkout
// @Description  Pushes REDIRECT_TO_PAYMENT to the player's app.
// @Tags         Machine
// @Accept       json
// @Produce      json
// @Param        X-Machine-Key header string true "Machine key"
// @Param        id path string true "Machine ID"
// @Param        request body RedirectRequest true "Player"
// @Success      200  {object}  handlers.RespRedirect
// @Router       /api/v1/machines/{id}/redirect [post]
func ApiMachineRedirect(o *play.Orchestrator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RedirectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := o.RedirectToPayment(c.Request.Context(), c.Param("id"), req.UserID, req.SessionToken)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterMachineRoutes(r gin.IRouter, o *play.Orchestrator, log *zap.SugaredLogger) {
	r.POST("/:id/scan", ApiMachineScan(o, log))
	r.POST("/:id/redirect", ApiMachineRedirect(o, log))
}
