package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/gachapon/pkg/response"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database,omitempty"`
	Subscribers int    `json:"subscribers"`
}

// @Summary      Health check
// @Description  Reports database reachability and the number of relay subscribers
// @Tags         System
// @Produce      json
// @Success      200  {object}  handlers.RespHealth
// @Router       /healthz [get]
func ApiHealthz(db Pinger, bus interface{ Subscribers() int }) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := HealthResponse{Status: "ok"}
		if bus != nil {
			res.Subscribers = bus.Subscribers()
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			res.Database = "ok"
			if err := db.PingContext(ctx); err != nil {
				res.Status, res.Database = "degraded", err.Error()
			}
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterHealthRoutes(r gin.IRouter, db Pinger, bus interface{ Subscribers() int }) {
	r.GET("/healthz", ApiHealthz(db, bus))
}
