package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/service"
	apperrors "github.com/ikkim/udonggeum-fulfillment/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) notificationRouter(userID uint, role model.UserRole) *gin.Engine {
	ctrl := NewNotificationController(e.notifications, e.statuses)

	router := gin.New()
	router.Use(setActor(userID, role))
	router.GET("/notifications", ctrl.GetNotifications)
	router.PUT("/notifications/:id/read", ctrl.MarkAsRead)
	return router
}

type notificationList struct {
	Data  []model.Notification `json:"data"`
	Count int                  `json:"count"`
}

func TestNotificationController_RecipientByRole(t *testing.T) {
	e := setupEnv(t)
	order := e.createOrder(t, "Jongno Gold", "Busan Silver")
	_, err := e.divisions.Route(t.Context(), order.ID)
	require.NoError(t, err)

	// 매장 배정 알림은 매장 ID로 수신
	w := doJSON(t, e.notificationRouter(jongnoOwnerID, model.RoleSeller), http.MethodGet,
		fmt.Sprintf("/notifications?store_id=%d", e.jongno.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list notificationList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, model.EventDivisionAssigned, list.Data[0].Event)
	assert.Equal(t, model.RecipientVendor, list.Data[0].RecipientType)

	// 다른 매장 알림은 조회 불가
	w = doJSON(t, e.notificationRouter(busanOwnerID, model.RoleSeller), http.MethodGet,
		fmt.Sprintf("/notifications?store_id=%d", e.jongno.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, e.notificationRouter(busanOwnerID, model.RoleSeller), http.MethodGet, "/notifications", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ValidationRequired, errorCodeOf(t, w))

	// 고객은 아직 받은 알림 없음
	w = doJSON(t, e.notificationRouter(customerID, model.RoleUser), http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Zero(t, list.Count)
}

func TestNotificationController_MarkAsRead(t *testing.T) {
	e := setupEnv(t)
	require.NoError(t, e.notifications.Notify(t.Context(), service.Notice{
		RecipientType: model.RecipientAdmin,
		Event:         model.EventSplitFailed,
	}))
	router := e.notificationRouter(adminID, model.RoleAdmin)

	w := doJSON(t, router, http.MethodGet, "/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list notificationList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	id := list.Data[0].ID

	// 고객은 관리자 알림을 읽음 처리할 수 없음
	w = doJSON(t, e.notificationRouter(customerID, model.RoleUser), http.MethodPut, fmt.Sprintf("/notifications/%d/read", id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.NotificationNotFound, errorCodeOf(t, w))

	w = doJSON(t, router, http.MethodPut, fmt.Sprintf("/notifications/%d/read", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Zero(t, list.Count)
}
