package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/repository"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/service"
	apperrors "github.com/ikkim/udonggeum-fulfillment/internal/errors"
	"github.com/ikkim/udonggeum-fulfillment/internal/middleware"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationController 알림 컨트롤러
type NotificationController struct {
	service  service.NotificationService
	statuses service.DivisionStatusService
}

// NewNotificationController 알림 컨트롤러 생성자
func NewNotificationController(service service.NotificationService, statuses service.DivisionStatusService) *NotificationController {
	return &NotificationController{
		service:  service,
		statuses: statuses,
	}
}

// GetNotifications 알림 목록 조회
// GET /api/v1/notifications?unread=true&limit=20 (판매자는 store_id 필수)
func (ctrl *NotificationController) GetNotifications(c *gin.Context) {
	recipientType, recipientID, ok := ctrl.resolveRecipient(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultNotificationLimit)))
	if limit <= 0 || limit > maxNotificationLimit {
		limit = defaultNotificationLimit
	}
	unreadOnly := c.Query("unread") == "true"

	notifications, err := ctrl.service.List(c.Request.Context(), recipientType, recipientID, unreadOnly, limit)
	if err != nil {
		apperrors.InternalError(c, "알림 목록을 조회하는 중 오류가 발생했습니다")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  notifications,
		"count": len(notifications),
	})
}

// MarkAsRead 알림 읽음 처리
// PUT /api/v1/notifications/:id/read
func (ctrl *NotificationController) MarkAsRead(c *gin.Context) {
	notificationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	recipientType, recipientID, ok := ctrl.resolveRecipient(c)
	if !ok {
		return
	}

	if err := ctrl.service.MarkAsRead(c.Request.Context(), notificationID, recipientType, recipientID); err != nil {
		if repository.IsNotFound(err) {
			apperrors.NotFound(c, apperrors.NotificationNotFound, "알림을 찾을 수 없습니다")
			return
		}
		apperrors.InternalError(c, "알림 읽음 처리 중 오류가 발생했습니다")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "알림이 읽음 처리되었습니다",
	})
}

// resolveRecipient 관리자 → admin, 판매자 → 매장(vendor), 일반 사용자 → customer
func (ctrl *NotificationController) resolveRecipient(c *gin.Context) (model.RecipientType, uint, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return "", 0, false
	}

	switch actor.Role {
	case model.RoleAdmin:
		return model.RecipientAdmin, 0, true
	case model.RoleSeller:
		storeID, err := strconv.ParseUint(c.Query("store_id"), 10, 32)
		if err != nil || storeID == 0 {
			apperrors.BadRequest(c, apperrors.ValidationRequired, "store_id가 필요합니다")
			return "", 0, false
		}
		allowed, err := ctrl.statuses.CanAccessStore(c.Request.Context(), actor, uint(storeID))
		if err != nil {
			apperrors.InternalError(c, "")
			return "", 0, false
		}
		if !allowed {
			apperrors.Forbidden(c, "본인 매장의 알림만 조회할 수 있습니다")
			return "", 0, false
		}
		return model.RecipientVendor, uint(storeID), true
	default:
		return model.RecipientCustomer, actor.UserID, true
	}
}
