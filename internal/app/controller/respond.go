package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/repository"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/service"
	apperrors "github.com/ikkim/udonggeum-fulfillment/internal/errors"
	"github.com/ikkim/udonggeum-fulfillment/internal/middleware"
)

// parseIDParam 경로 파라미터를 uint ID로 변환 (실패 시 400 응답 후 false)
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "잘못된 ID입니다")
		return 0, false
	}
	return uint(id), true
}

// respondSplitError 일부 분할 실패면 성공한 그룹까지 포함한 전체 결과를 details로 응답
func respondSplitError(c *gin.Context, err error, split *service.SplitResult, context string) {
	var partialErr *service.PartialSplitFailureError
	if split != nil && errors.As(err, &partialErr) {
		apperrors.RespondWithDetails(c, http.StatusConflict, apperrors.OrderPartialSplit,
			"일부 매장의 분할 주문 생성에 실패했습니다. 다시 시도해주세요", split)
		return
	}
	respondServiceError(c, err, context)
}

// isStorageFailure 도메인 에러가 아닌 저장소 접근 실패
func isStorageFailure(err error) bool {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrOrderIsDivision),
		errors.Is(err, service.ErrDivisionNotFound),
		errors.Is(err, service.ErrAggregationInputMissing),
		repository.IsNotFound(err):
		return false
	}
	return true
}

// respondServiceError 서비스 에러를 HTTP 응답으로 변환
func respondServiceError(c *gin.Context, err error, context string) {
	var vendorErr *service.VendorNotFoundError
	var partialErr *service.PartialSplitFailureError

	switch {
	case errors.As(err, &partialErr):
		apperrors.RespondWithDetails(c, http.StatusConflict, apperrors.OrderPartialSplit,
			"일부 매장의 분할 주문 생성에 실패했습니다. 다시 시도해주세요", partialErr.Failed)
	case errors.As(err, &vendorErr):
		apperrors.RespondWithDetails(c, http.StatusUnprocessableEntity, apperrors.OrderVendorNotFound,
			"상품의 매장을 찾을 수 없습니다", gin.H{"vendor": vendorErr.Name})
	case errors.Is(err, service.ErrOrderNotFound):
		apperrors.NotFound(c, apperrors.OrderNotFound, "주문을 찾을 수 없습니다")
	case errors.Is(err, service.ErrDivisionNotFound):
		apperrors.NotFound(c, apperrors.DivisionNotFound, "분할 주문을 찾을 수 없습니다")
	case errors.Is(err, service.ErrNoItemsToRoute):
		apperrors.RespondWithError(c, http.StatusUnprocessableEntity, apperrors.OrderNoItems, "분배할 상품이 없습니다")
	case errors.Is(err, service.ErrOrderIsDivision):
		apperrors.Conflict(c, apperrors.OrderIsDivision, "이미 분할된 주문입니다")
	case errors.Is(err, service.ErrOrderNotRoutable):
		apperrors.Conflict(c, apperrors.OrderNotRoutable, "현재 상태에서는 주문을 분배할 수 없습니다")
	case errors.Is(err, service.ErrNotSplitOrder):
		apperrors.Conflict(c, apperrors.OrderNotSplit, "분할되지 않은 주문입니다")
	case errors.Is(err, service.ErrAggregationInputMissing):
		apperrors.Conflict(c, apperrors.AggregateInputMissing, "분할 주문을 찾을 수 없어 집계할 수 없습니다")
	case errors.Is(err, service.ErrStaleWriteIgnored):
		apperrors.Conflict(c, apperrors.DivisionStaleResponse, "이미 더 최근 응답이 기록되어 있습니다")
	case errors.Is(err, service.ErrNotDivisionStore):
		apperrors.RespondWithError(c, http.StatusForbidden, apperrors.DivisionNotOwner, "배정된 매장만 처리할 수 있습니다")
	case errors.Is(err, service.ErrInvalidDivisionStatus):
		apperrors.BadRequest(c, apperrors.DivisionInvalidStatus, "허용되지 않는 상태 변경입니다")
	case repository.IsNotFound(err):
		apperrors.ParseAndRespond(c, http.StatusNotFound, err, context)
	default:
		middleware.GetLoggerFromContext(c).Error("Request failed", err, map[string]interface{}{
			"context": context,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, context)
	}
}
