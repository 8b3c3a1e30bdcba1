package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/credit"
	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/response"
)

type CreditsResponse struct {
	MachineID string               `json:"machine_id,omitempty"`
	Balance   int                  `json:"balance"`
	Credits   []*models.DrawCredit `json:"credits"`
}

// @Summary      Draw credits
// @Description  Lists the caller's draw credits and the draws left, optionally for one machine.
// @Tags         Credits
// @Produce      json
// @Param        machine_id query string false "Machine ID"
// @Success      200  {object}  handlers.RespCredits
// @Router       /api/v1/credits [get]
func ApiListCredits(svc *credit.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		machineID := c.Query("machine_id")
		credits, err := svc.List(c.Request.Context(), userID(c), machineID)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&CreditsResponse{
			MachineID: machineID,
			Balance:   lo.SumBy(credits, func(cr *models.DrawCredit) int { return cr.Remaining }),
			Credits:   credits,
		}))
	}
}

func RegisterCreditRoutes(r gin.IRouter, svc *credit.Service, log *zap.SugaredLogger) {
	r.GET("/credits", ApiListCredits(svc, log))
}
