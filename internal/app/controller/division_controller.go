package controller

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/aggregate"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/service"
	apperrors "github.com/ikkim/udonggeum-fulfillment/internal/errors"
	"github.com/ikkim/udonggeum-fulfillment/internal/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SummaryCache 변경 알림으로 유지되는 최근 집계 (*reconcile.Reconciler)
type SummaryCache interface {
	CachedOrder(id uint) (model.Order, bool)
	CachedSummary(parentID uint) (aggregate.Summary, bool)
}

// DivisionController 주문 분배/분할 주문/집계 컨트롤러
type DivisionController struct {
	divisions  service.DivisionService
	statuses   service.DivisionStatusService
	completion service.CompletionService
	cache      SummaryCache
}

// NewDivisionController cache는 nil 허용 (저장소 장애 시 캐시 응답 안 함)
func NewDivisionController(
	divisions service.DivisionService,
	statuses service.DivisionStatusService,
	completion service.CompletionService,
	cache SummaryCache,
) *DivisionController {
	return &DivisionController{
		divisions:  divisions,
		statuses:   statuses,
		completion: completion,
		cache:      cache,
	}
}

type RespondToDivisionRequest struct {
	Accepted    *bool      `json:"accepted" binding:"required"`
	Reason      string     `json:"reason" binding:"max=500"`
	RespondedAt *time.Time `json:"responded_at"`
}

type UpdateDivisionStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
	Reason string            `json:"reason" binding:"max=500"`
}

// RouteOrder 주문을 단일 매장이면 이관, 여러 매장이면 분할
// POST /api/v1/orders/:id/route (관리자)
func (ctrl *DivisionController) RouteOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := ctrl.divisions.Route(c.Request.Context(), orderID)
	if err != nil {
		log.Warn("Order routing failed", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
		var split *service.SplitResult
		if result != nil {
			split = result.Split
		}
		respondSplitError(c, err, split, "route order")
		return
	}

	log.Info("Order routed", map[string]interface{}{
		"order_id": orderID,
		"mode":     result.Mode,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "주문이 분배되었습니다",
		"result":  result,
	})
}

// SplitOrder 매장 수와 무관하게 분할 (원격 프로시저 우선, 실패 시 로컬)
// POST /api/v1/orders/:id/split (관리자)
func (ctrl *DivisionController) SplitOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := ctrl.divisions.Split(c.Request.Context(), orderID)
	if err != nil {
		respondSplitError(c, err, result, "split order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "주문이 분할되었습니다",
		"result":  result,
	})
}

// GetDivisions 원 주문의 분할 주문 목록과 집계
// GET /api/v1/orders/:id/divisions
// 저장소를 읽을 수 없으면 마지막으로 계산된 집계를 cached=true로 응답
func (ctrl *DivisionController) GetDivisions(c *gin.Context) {
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
		if !ctrl.respondCached(c, actor, orderID, err) {
			respondServiceError(c, err, "get order")
		}
		return
	}
	if !allowed {
		apperrors.Forbidden(c, "본인의 주문만 조회할 수 있습니다")
		return
	}

	summary, err := ctrl.completion.Summary(c.Request.Context(), orderID)
	if err != nil {
		if !ctrl.respondCached(c, actor, orderID, err) {
			respondServiceError(c, err, "get divisions")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
	})
}

// respondCached 저장소 장애일 때만 캐시로 응답. 응답했으면 true
func (ctrl *DivisionController) respondCached(c *gin.Context, actor model.Actor, orderID uint, cause error) bool {
	if ctrl.cache == nil || !isStorageFailure(cause) {
		return false
	}
	parent, ok := ctrl.cache.CachedOrder(orderID)
	if !ok || parent.IsDivision() {
		return false
	}
	summary, ok := ctrl.cache.CachedSummary(orderID)
	if !ok {
		return false
	}

	if !actor.IsAdmin() && (parent.CustomerUserID == nil || *parent.CustomerUserID != actor.UserID) {
		apperrors.Forbidden(c, "본인의 주문만 조회할 수 있습니다")
		return true
	}

	middleware.GetLoggerFromContext(c).Warn("Serving cached division summary", map[string]interface{}{
		"order_id": orderID,
		"error":    cause.Error(),
	})
	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"cached":  true,
	})
	return true
}

// RecomputeAggregate 집계를 다시 계산해 저장
// POST /api/v1/orders/:id/aggregate (관리자)
func (ctrl *DivisionController) RecomputeAggregate(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	summary, err := ctrl.completion.Recompute(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err, "recompute aggregate")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
	})
}

// GetDeliveryEligibility 배송 진행 가능 여부
// GET /api/v1/orders/:id/delivery-eligibility
func (ctrl *DivisionController) GetDeliveryEligibility(c *gin.Context) {
	orderID, ok := ctrl.authorizeOrderView(c)
	if !ok {
		return
	}

	eligibility, err := ctrl.completion.DeliveryEligibility(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err, "delivery eligibility")
		return
	}

	c.JSON(http.StatusOK, eligibility)
}

// RespondToDivision 매장의 처리 가능 여부 응답
// POST /api/v1/divisions/:id/response
func (ctrl *DivisionController) RespondToDivision(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	actor, ok := middleware.GetActor(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	divisionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RespondToDivisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "accepted 값이 필요합니다")
		return
	}

	resp := service.VendorResponse{
		Accepted: *req.Accepted,
		Reason:   req.Reason,
	}
	if req.RespondedAt != nil {
		resp.RespondedAt = *req.RespondedAt
	}

	division, err := ctrl.statuses.RespondToDivision(c.Request.Context(), actor, divisionID, resp)
	if err != nil {
		respondServiceError(c, err, "division response")
		return
	}

	log.Info("Division response recorded", map[string]interface{}{
		"division_id": divisionID,
		"accepted":    resp.Accepted,
		"user_id":     actor.UserID,
	})

	c.JSON(http.StatusOK, gin.H{
		"division": division,
	})
}

// UpdateDivisionStatus 분할 주문 진행 상태 변경
// PUT /api/v1/divisions/:id/status
func (ctrl *DivisionController) UpdateDivisionStatus(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	divisionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateDivisionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "status 값이 필요합니다")
		return
	}

	division, err := ctrl.statuses.UpdateDivisionStatus(c.Request.Context(), actor, divisionID, req.Status, req.Reason)
	if err != nil {
		respondServiceError(c, err, "update division status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"division": division,
	})
}

// ListStoreDivisions 매장에 배정된 분할 주문 목록 (?status=pending,preparing)
// GET /api/v1/stores/:id/divisions
func (ctrl *DivisionController) ListStoreDivisions(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	storeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var statuses []model.OrderStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, model.OrderStatus(s))
			}
		}
	}

	divisions, err := ctrl.statuses.ListStoreDivisions(c.Request.Context(), actor, storeID, statuses...)
	if err != nil {
		respondServiceError(c, err, "list store divisions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"divisions": divisions,
		"count":     len(divisions),
	})
}

// ListSplitFailures 분할 실패로 남아 있는 원 주문 목록
// GET /api/v1/admin/split-failures
func (ctrl *DivisionController) ListSplitFailures(c *gin.Context) {
	orders, err := ctrl.divisions.ListSplitFailures(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "list split failures")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// DownloadSplitReport 분할 결과 엑셀 보고서
// GET /api/v1/admin/orders/:id/split-report.xlsx
func (ctrl *DivisionController) DownloadSplitReport(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	workbook, err := ctrl.divisions.SplitReport(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err, "split report")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=split-report-%d.xlsx", orderID))
	c.Data(http.StatusOK, xlsxContentType, workbook)
}

// authorizeOrderView 관리자 또는 주문자 본인만 조회 가능
func (ctrl *DivisionController) authorizeOrderView(c *gin.Context) (uint, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return 0, false
	}

	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return 0, false
	}

	allowed, err := ctrl.completion.CanView(c.Request.Context(), actor, orderID)
	if err != nil {
		respondServiceError(c, err, "get order")
		return 0, false
	}
	if !allowed {
		apperrors.Forbidden(c, "본인의 주문만 조회할 수 있습니다")
		return 0, false
	}
	return orderID, true
}
