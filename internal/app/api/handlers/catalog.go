package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/gachapon/internal/app/service/catalog"
	"github.com/fatflowers/gachapon/pkg/response"
	"github.com/fatflowers/gachapon/pkg/types"
)

type MachineDetail struct {
	*types.Machine
	ActiveEvents []*types.Event `json:"active_events"`
}

// @Summary      List machines
// @Tags         Catalog
// @Produce      json
// @Param        token query string false "Session token"
// @Success      200  {object}  handlers.RespMachines
// @Router       /api/v1/machines [get]
func ApiListMachines(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OKT(cat.ListMachines(c.Request.Context())))
	}
}

// @Summary      Get machine
// @Description  Returns a machine with the events active on it right now.
// @Tags         Catalog
// @Produce      json
// @Param        id path string true "Machine ID"
// @Success      200  {object}  handlers.RespMachine
// @Router       /api/v1/machines/{id} [get]
func ApiGetMachine(cat *catalog.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		m, err := cat.GetMachine(ctx, c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		events, err := cat.GetActiveEventsForMachine(ctx, m.ID)
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&MachineDetail{Machine: m, ActiveEvents: events}))
	}
}

// @Summary      List events
// @Tags         Catalog
// @Produce      json
// @Param        active query bool false "Only events running now"
// @Success      200  {object}  handlers.RespEvents
// @Router       /api/v1/events [get]
func ApiListEvents(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := c.Query("active") == "true"
		c.JSON(http.StatusOK, response.OKT(cat.ListEvents(c.Request.Context(), active)))
	}
}

// @Summary      Get event
// @Tags         Catalog
// @Produce      json
// @Param        id path string true "Event ID"
// @Success      200  {object}  handlers.RespEvent
// @Router       /api/v1/events/{id} [get]
func ApiGetEvent(cat *catalog.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ev, err := cat.GetEvent(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(ev))
	}
}

func RegisterCatalogRoutes(r gin.IRouter, cat *catalog.Service, log *zap.SugaredLogger) {
	r.GET("/machines", ApiListMachines(cat))
	r.GET("/machines/:id", ApiGetMachine(cat, log))
	r.GET("/events", ApiListEvents(cat))
	r.GET("/events/:id", ApiGetEvent(cat, log))
}
