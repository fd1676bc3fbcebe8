package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-fulfillment/internal/changefeed"
	"github.com/ikkim/udonggeum-fulfillment/internal/reconcile"
	"gorm.io/gorm"
)

const healthCheckTimeout = 2 * time.Second

// FeedMonitor 변경 알림 구독 상태 (*reconcile.Reconciler)
type FeedMonitor interface {
	State(relation string) reconcile.State
	StaleDropped() int64
}

type HealthController struct {
	db      *gorm.DB
	monitor FeedMonitor
	pingers map[string]func(ctx context.Context) error
}

// NewHealthController monitor는 nil 허용, pingers는 DB 외 의존성 (redis 등)
func NewHealthController(db *gorm.DB, monitor FeedMonitor, pingers map[string]func(ctx context.Context) error) *HealthController {
	return &HealthController{
		db:      db,
		monitor: monitor,
		pingers: pingers,
	}
}

// Health GET /health
// DB 장애만 503, 변경 알림이 끊긴 상태는 degraded로 표시 (주기적 재조회로 계속 동작)
func (ctrl *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := gin.H{}

	if err := ctrl.pingDB(ctx); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}

	for name, ping := range ctrl.pingers {
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		checks[name] = "ok"
	}

	body := gin.H{
		"status": status,
		"checks": checks,
	}

	if ctrl.monitor != nil {
		feeds := gin.H{}
		for _, relation := range []string{changefeed.RelationOrders, changefeed.RelationDivisions} {
			state := ctrl.monitor.State(relation)
			feeds[relation] = state
			if state != reconcile.StateLive && status == "healthy" {
				status = "degraded"
			}
		}
		body["status"] = status
		body["change_feed"] = feeds
		body["stale_dropped"] = ctrl.monitor.StaleDropped()
	}

	c.JSON(code, body)
}

func (ctrl *HealthController) pingDB(ctx context.Context) error {
	sqlDB, err := ctrl.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
