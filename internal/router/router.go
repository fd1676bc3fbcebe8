package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-fulfillment/config"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/controller"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/middleware"
)

type Router struct {
	divisionController       *controller.DivisionController
	splitProcedureController *controller.SplitProcedureController
	notificationController   *controller.NotificationController
	realtimeController       *controller.RealtimeController
	healthController         *controller.HealthController
	authMiddleware           *middleware.AuthMiddleware
	config                   *config.Config
}

func NewRouter(
	divisionController *controller.DivisionController,
	splitProcedureController *controller.SplitProcedureController,
	notificationController *controller.NotificationController,
	realtimeController *controller.RealtimeController,
	healthController *controller.HealthController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		divisionController:       divisionController,
		splitProcedureController: splitProcedureController,
		notificationController:   notificationController,
		realtimeController:       realtimeController,
		healthController:         healthController,
		authMiddleware:           authMiddleware,
		config:                   cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", r.healthController.Health)

	// 다른 인스턴스가 호출하는 분할 프로시저
	internal := router.Group("/internal", middleware.RequireAPIKey(r.config.SplitRPC.APIKey))
	{
		internal.POST("/split-order", r.splitProcedureController.SplitOrder)
	}

	ws := router.Group("/ws", r.authMiddleware.Authenticate())
	{
		ws.GET("", r.realtimeController.Connect)
		ws.GET("/orders/:id", r.realtimeController.WatchOrder)
	}

	v1 := router.Group("/api/v1", r.authMiddleware.Authenticate())
	{
		orders := v1.Group("/orders")
		{
			orders.GET("/:id/divisions", r.divisionController.GetDivisions)
			orders.GET("/:id/delivery-eligibility", r.divisionController.GetDeliveryEligibility)
			orders.POST("/:id/route",
				r.authMiddleware.RequireRole(model.RoleAdmin),
				r.divisionController.RouteOrder,
			)
			orders.POST("/:id/split",
				r.authMiddleware.RequireRole(model.RoleAdmin),
				r.divisionController.SplitOrder,
			)
			orders.POST("/:id/aggregate",
				r.authMiddleware.RequireRole(model.RoleAdmin),
				r.divisionController.RecomputeAggregate,
			)
		}

		divisions := v1.Group("/divisions",
			r.authMiddleware.RequireRole(model.RoleSeller, model.RoleAdmin),
		)
		{
			divisions.POST("/:id/response", r.divisionController.RespondToDivision)
			divisions.PUT("/:id/status", r.divisionController.UpdateDivisionStatus)
		}

		v1.GET("/stores/:id/divisions",
			r.authMiddleware.RequireRole(model.RoleSeller, model.RoleAdmin),
			r.divisionController.ListStoreDivisions,
		)

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", r.notificationController.GetNotifications)
			notifications.PUT("/:id/read", r.notificationController.MarkAsRead)
		}

		admin := v1.Group("/admin", r.authMiddleware.RequireRole(model.RoleAdmin))
		{
			admin.GET("/split-failures", r.divisionController.ListSplitFailures)
			admin.GET("/orders/:id/split-report.xlsx", r.divisionController.DownloadSplitReport)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
