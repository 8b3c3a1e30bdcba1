package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/docs"
	"github.com/fatflowers/gachapon/internal/app/api/handlers"
	mw "github.com/fatflowers/gachapon/internal/app/api/middleware"
	"github.com/fatflowers/gachapon/internal/app/service/catalog"
	"github.com/fatflowers/gachapon/internal/app/service/credit"
	"github.com/fatflowers/gachapon/internal/app/service/eventlog"
	"github.com/fatflowers/gachapon/internal/app/service/inventory"
	nh "github.com/fatflowers/gachapon/internal/app/service/notification_handler"
	"github.com/fatflowers/gachapon/internal/app/service/payment"
	"github.com/fatflowers/gachapon/internal/app/service/play"
	"github.com/fatflowers/gachapon/internal/app/service/relay"
	"github.com/fatflowers/gachapon/internal/app/service/session"
	"github.com/fatflowers/gachapon/internal/app/service/statistics"
	cfgpkg "github.com/fatflowers/gachapon/pkg/config"
	metrics "github.com/fatflowers/gachapon/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeParams struct {
	fx.In

	Lifecycle     fx.Lifecycle
	Engine        *gin.Engine
	Config        *cfgpkg.Config
	Log           *zap.SugaredLogger
	Clock         clock.Clock
	DB            *gorm.DB
	Validator     session.Validator
	Catalog       *catalog.Service
	Payments      *payment.Engine
	Play          *play.Orchestrator
	Credits       *credit.Service
	Inventory     *inventory.Service
	EventLog      *eventlog.Service
	Statistics    *statistics.Service
	Relay         *relay.Relay
	Notifications *nh.NotificationHandler
}

func registerRoutes(p routeParams) {
	r, cfg, log := p.Engine, p.Config, p.Log

	// Prometheus metrics on their own listener
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return "unmatched"
			},
			Logger: log,
		})
		r.Use(prom.HandlerFunc())
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				prom.Serve(cfg.MetricsAddr)
				log.Infow("metrics started", "addr", cfg.MetricsAddr)
				return nil
			},
			OnStop: prom.Shutdown,
		})
	}
	logged := []gin.HandlerFunc{mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log)}
	sess := mw.Session(p.Validator, log)
	limiter := mw.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, p.Clock)

	// Public group: request logger + access log
	pub := r.Group("/", logged...)
	var pinger handlers.Pinger
	if sqlDB, err := p.DB.DB(); err == nil {
		pinger = sqlDB
	}
	handlers.RegisterHealthRoutes(pub, pinger, p.Relay)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1", logged...)

	// Gateway webhook is authenticated by its signature
	handlers.RegisterPaymentWebhookRoutes(apiV1.Group("/payments"), p.Notifications)

	// Kiosk APIs
	handlers.RegisterMachineRoutes(apiV1.Group("/machines", mw.MachineKey(cfg.Machine.APIKey)), p.Play, log)

	// Player APIs
	player := apiV1.Group("", sess)
	handlers.RegisterCatalogRoutes(player, p.Catalog, log)
	handlers.RegisterPaymentRoutes(player.Group("/payments"), p.Payments, p.Play, limiter.Middleware(), log)
	handlers.RegisterCreditRoutes(player, p.Credits, log)
	handlers.RegisterInventoryRoutes(player, p.Inventory, log)

	// Admin APIs
	handlers.RegisterAdminPaymentRoutes(apiV1.Group("/admin", sess, mw.RequireRole("admin")), p.Payments, p.EventLog, p.Statistics, log)

	// Notification stream
	handlers.RegisterWebsocketRoutes(r.Group("/", append(logged, sess)...), p.Relay, p.Clock, cfg.Relay.Buffer, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
