package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/inventory"
	"github.com/fatflowers/gachapon/internal/models"
	"github.com/fatflowers/gachapon/pkg/response"
	"github.com/fatflowers/gachapon/pkg/types"
)

// @Summary      List inventory
// @Tags         Inventory
// @Produce      json
// @Param        status query string false "UNCLAIMED, CLAIMED or COLLECTED"
// @Success      200  {object}  handlers.RespInventory
// @Router       /api/v1/inventory [get]
func ApiListInventory(svc *inventory.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := types.InventoryStatus(c.Query("status"))
		switch status {
		case "", types.InventoryStatusUnclaimed, types.InventoryStatusClaimed, types.InventoryStatusCollected:
		default:
			badRequest(c, "invalid status")
			return
		}
		items, err := svc.List(c.Request.Context(), userID(c), status)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

type inventoryOp func(ctx context.Context, userID, id string) (*models.InventoryItem, error)

func inventoryItem(op inventoryOp, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := op(c.Request.Context(), userID(c), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(item))
	}
}

// @Summary      Get inventory item
// @Tags         Inventory
// @Produce      json
// @Param        id path string true "Item ID"
// @Success      200  {object}  handlers.RespInventoryItem
// @Router       /api/v1/inventory/{id} [get]
func ApiGetInventoryItem(svc *inventory.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return inventoryItem(svc.Get, log)
}

// @Summary      Claim a prize
// @Description  Moves an UNCLAIMED item to CLAIMED and assigns a collection reference.
// @Tags         Inventory
// @Produce      json
// @Param        id path string true "Item ID"
// @Success      200  {object}  handlers.RespInventoryItem
// @Router       /api/v1/inventory/{id}/claim [post]
func ApiClaimInventoryItem(svc *inventory.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return inventoryItem(svc.Claim, log)
}

// @Summary      Collect a prize
// @Description  Moves a CLAIMED item to COLLECTED.
// @Tags         Inventory
// @Produce      json
// @Param        id path string true "Item ID"
// @Success      200  {object}  handlers.RespInventoryItem
// @Router       /api/v1/inventory/{id}/collect [post]
func ApiCollectInventoryItem(svc *inventory.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return inventoryItem(svc.Collect, log)
}

func RegisterInventoryRoutes(r gin.IRouter, svc *inventory.Service, log *zap.SugaredLogger) {
	r.GET("/inventory", ApiListInventory(svc, log))
	r.GET("/inventory/:id", ApiGetInventoryItem(svc, log))
	r.POST("/inventory/:id/claim", ApiClaimInventoryItem(svc, log))
	r.POST("/inventory/:id/collect", ApiCollectInventoryItem(svc, log))
}
