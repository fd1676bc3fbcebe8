package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOrderNotFound              = errors.New("order not found")
	ErrDivisionNotFound           = errors.New("division not found")
	ErrNoItemsToRoute             = errors.New("order has no items to route")
	ErrOrderIsDivision            = errors.New("order is already a division of another order")
	ErrOrderNotRoutable           = errors.New("order status does not allow routing")
	ErrRemoteProcedureUnavailable = errors.New("remote split procedure unavailable")
	ErrAggregationInputMissing    = errors.New("no divisions found for split order")
	ErrStaleWriteIgnored          = errors.New("stale write ignored")
	ErrNotDivisionStore           = errors.New("only the assigned store may act on this division")
	ErrInvalidDivisionStatus      = errors.New("invalid division status transition")
	ErrNotSplitOrder              = errors.New("order has no divisions")
)

// VendorNotFoundError Transfer 대상 매장을 찾지 못함
type VendorNotFoundError struct {
	Name string
}

func (e *VendorNotFoundError) Error() string {
	return fmt.Sprintf("vendor not found: %q", e.Name)
}

// PartialSplitFailureError 일부 매장 그룹의 분할 주문 생성 실패 (원 주문은 split_failed로 보존)
type PartialSplitFailureError struct {
	OrderID uint
	Failed  []SplitOutcome
}

func (e *PartialSplitFailureError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		names = append(names, fmt.Sprintf("%s (%s)", f.StoreName, f.Error))
	}
	return fmt.Sprintf("split of order %d failed for %d store group(s): %s",
		e.OrderID, len(e.Failed), strings.Join(names, ", "))
}
