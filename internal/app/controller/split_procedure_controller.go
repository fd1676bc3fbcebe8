package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/service"
	apperrors "github.com/ikkim/udonggeum-fulfillment/internal/errors"
	"github.com/ikkim/udonggeum-fulfillment/internal/middleware"
	"github.com/ikkim/udonggeum-fulfillment/pkg/splitrpc"
)

// SplitProcedureController 다른 인스턴스가 호출하는 분할 프로시저 (X-API-Key 보호)
type SplitProcedureController struct {
	divisions service.DivisionService
}

func NewSplitProcedureController(divisions service.DivisionService) *SplitProcedureController {
	return &SplitProcedureController{divisions: divisions}
}

// SplitOrder POST /internal/split-order
// 일부 매장 실패도 200으로 응답하고 success=false로 알린다
func (ctrl *SplitProcedureController) SplitOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req splitrpc.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "original_order_id가 필요합니다")
		return
	}

	result, err := ctrl.divisions.SplitLocal(c.Request.Context(), req.OriginalOrderID)
	var partialErr *service.PartialSplitFailureError
	if err != nil && !(errors.As(err, &partialErr) && result != nil) {
		respondServiceError(c, err, "split order")
		return
	}

	log.Info("Split procedure served", map[string]interface{}{
		"order_id":          req.OriginalOrderID,
		"success":           result.Success,
		"successful_splits": result.SuccessfulSplits,
	})

	c.JSON(http.StatusOK, toSplitResponse(result))
}

func toSplitResponse(result *service.SplitResult) splitrpc.SplitResponse {
	resp := splitrpc.SplitResponse{
		Success:          result.Success,
		SuccessfulSplits: result.SuccessfulSplits,
		TotalStores:      result.TotalStores,
		Results:          make([]splitrpc.StoreResult, 0, len(result.Results)),
	}
	for _, r := range result.Results {
		resp.Results = append(resp.Results, splitrpc.StoreResult{
			StoreName: r.StoreName,
			Success:   r.Success,
			OrderID:   r.OrderID,
			Error:     r.Error,
		})
	}
	return resp
}
