package controller

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/service"
	apperrors "github.com/ikkim/udonggeum-fulfillment/internal/errors"
	"github.com/ikkim/udonggeum-fulfillment/internal/middleware"
	ws "github.com/ikkim/udonggeum-fulfillment/internal/websocket"
)

const authorizeTimeout = 5 * time.Second

// RealtimeController 집계/알림 실시간 구독 (WebSocket)
type RealtimeController struct {
	hub        *ws.Hub
	completion service.CompletionService
	statuses   service.DivisionStatusService
	upgrader   websocket.Upgrader
}

// NewRealtimeController allowedOrigins가 비어 있으면 Origin 검사 안 함 (개발 환경)
func NewRealtimeController(
	hub *ws.Hub,
	completion service.CompletionService,
	statuses service.DivisionStatusService,
	allowedOrigins []string,
) *RealtimeController {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	ctrl := &RealtimeController{
		hub:        hub,
		completion: completion,
		statuses:   statuses,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
	}
	hub.SetAuthorizer(ctrl.Authorize)
	return ctrl
}

// Connect GET /ws
// 연결 후 {"type":"subscribe","topic":"order:12"} 형태로 구독
func (ctrl *RealtimeController) Connect(c *gin.Context) {
	if _, ok := middleware.GetActor(c); !ok {
		apperrors.Unauthorized(c, "")
		return
	}
	ctrl.serve(c, "")
}

// WatchOrder GET /ws/orders/:id
// 원 주문 토픽을 바로 구독한 상태로 연결
func (ctrl *RealtimeController) WatchOrder(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	allowed, err := ctrl.completion.CanView(c.Request.Context(), actor, orderID)
	if err != nil {
		respondServiceError(c, err, "watch order")
		return
	}
	if !allowed {
		apperrors.Forbidden(c, "본인의 주문만 구독할 수 있습니다")
		return
	}

	ctrl.serve(c, ws.OrderTopic(orderID))
}

func (ctrl *RealtimeController) serve(c *gin.Context, topic string) {
	log := middleware.GetLoggerFromContext(c)
	actor, _ := middleware.GetActor(c)

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err)
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, actor.UserID, string(actor.Role))
	ctrl.hub.Register(client)

	// 본인 알림 토픽은 항상 구독
	if actor.IsAdmin() {
		ctrl.hub.Subscribe(client, ws.AdminTopic)
	} else if actor.Role == model.RoleUser {
		ctrl.hub.Subscribe(client, ws.CustomerTopic(actor.UserID))
	}
	if topic != "" {
		ctrl.hub.Subscribe(client, topic)
	}

	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established", map[string]interface{}{
		"user_id": actor.UserID,
		"topic":   topic,
	})
}

// Authorize 클라이언트가 보낸 구독 요청 검사
func (ctrl *RealtimeController) Authorize(client *ws.Client, topic string) bool {
	actor := model.Actor{UserID: client.UserID, Role: model.UserRole(client.Role)}
	if actor.IsAdmin() {
		return true
	}

	kind, rawID, found := strings.Cut(topic, ":")
	if !found {
		return false
	}
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), authorizeTimeout)
	defer cancel()

	switch kind {
	case "order":
		allowed, err := ctrl.completion.CanView(ctx, actor, uint(id))
		return err == nil && allowed
	case "vendor":
		allowed, err := ctrl.statuses.CanAccessStore(ctx, actor, uint(id))
		return err == nil && allowed
	case "customer":
		return uint(id) == actor.UserID
	}
	return false
}
