// Package aggregate derives the display status of each division and the single
// aggregate status of an original order from its divisions' current rows.
//
// Every function here is pure: the result depends only on the row state passed
// in, never on the order in which changes were observed.
package aggregate

import (
	"sort"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/shopspring/decimal"
)

// DivisionView 분할 주문 한 건의 표시용 상태
type DivisionView struct {
	OrderID             uint                      `json:"order_id"`
	Code                string                    `json:"code"`
	StoreID             *uint                     `json:"store_id,omitempty"`
	StoreName           string                    `json:"store_name"`
	Status              model.DivisionStatus      `json:"status"`
	OrderStatus         model.OrderStatus         `json:"order_status"`
	StoreResponseStatus model.StoreResponseStatus `json:"store_response_status"`
	RejectionReason     string                    `json:"rejection_reason,omitempty"`
	ReturnReason        string                    `json:"return_reason,omitempty"`
	ItemsCount          int                       `json:"items_count"`
	TotalAmount         float64                   `json:"total_amount"`
}

// Summary 원 주문 기준 집계 결과 (모든 화면이 이 값을 사용)
type Summary struct {
	ParentOrderID uint                         `json:"parent_order_id"`
	Aggregate     model.AggregateStatus        `json:"aggregate_status"`
	Divisions     []DivisionView               `json:"divisions"`
	Counts        map[model.DivisionStatus]int `json:"counts"`
	Total         int                          `json:"total"`
	TotalAmount   float64                      `json:"total_amount"`
	InputMissing  bool                         `json:"input_missing,omitempty"`
}

// DivisionStatusOf first match wins:
// delivered, returned, rejected, accepted, assigned, processing, pending.
func DivisionStatusOf(d *model.Order) model.DivisionStatus {
	switch {
	case d.Status == model.OrderStatusDelivered:
		return model.DivisionStatusDelivered
	case d.Status == model.OrderStatusReturned:
		return model.DivisionStatusReturned
	case d.StoreResponseStatus.IsDeclined() || d.Status == model.OrderStatusRejected:
		return model.DivisionStatusRejected
	case d.StoreResponseStatus.IsConfirmed():
		return model.DivisionStatusAccepted
	case d.Status == model.OrderStatusAssigned:
		return model.DivisionStatusAssigned
	case d.Status == model.OrderStatusPreparing || d.Status == model.OrderStatusReady:
		return model.DivisionStatusProcessing
	default:
		return model.DivisionStatusPending
	}
}

// ViewOf builds the presentation row for one division.
func ViewOf(d *model.Order) DivisionView {
	status := DivisionStatusOf(d)
	view := DivisionView{
		OrderID:             d.ID,
		Code:                d.Code,
		StoreID:             d.AssignedStoreID,
		StoreName:           d.AssignedStoreName,
		Status:              status,
		OrderStatus:         d.Status,
		StoreResponseStatus: d.StoreResponseStatus,
		ItemsCount:          d.ItemsCount,
		TotalAmount:         d.TotalAmount,
	}
	if status == model.DivisionStatusRejected {
		view.RejectionReason = d.RejectionReason
	}
	if status == model.DivisionStatusReturned {
		view.ReturnReason = d.ReturnReasonText()
	}
	return view
}

// Compute returns the aggregate status of a division set. First match wins:
//
//	empty set                                       -> empty
//	all delivered                                   -> delivered
//	all returned                                    -> returned
//	all confirmed by the vendor and none rejected   -> complete
//	any awaiting a response, or pending/assigned    -> incomplete
//	any rejected                                    -> mixed
//	otherwise                                       -> processing
func Compute(divisions []model.Order) model.AggregateStatus {
	if len(divisions) == 0 {
		return model.AggregateEmpty
	}

	allDelivered, allReturned, allConfirmed := true, true, true
	anyRejected, anyIncomplete := false, false

	for i := range divisions {
		d := &divisions[i]
		status := DivisionStatusOf(d)

		if status != model.DivisionStatusDelivered {
			allDelivered = false
		}
		if status != model.DivisionStatusReturned {
			allReturned = false
		}
		if !d.StoreResponseStatus.IsConfirmed() {
			allConfirmed = false
		}
		if status == model.DivisionStatusRejected {
			anyRejected = true
		}
		if d.StoreResponseStatus.IsAwaiting() ||
			d.Status == model.OrderStatusPending ||
			d.Status == model.OrderStatusAssigned {
			anyIncomplete = true
		}
	}

	switch {
	case allDelivered:
		return model.AggregateDelivered
	case allReturned:
		return model.AggregateReturned
	case allConfirmed && !anyRejected:
		return model.AggregateComplete
	case anyIncomplete:
		return model.AggregateIncomplete
	case anyRejected:
		return model.AggregateMixed
	default:
		return model.AggregateProcessing
	}
}

// Summarize is the single view every consumer renders. Divisions are listed by id.
func Summarize(parentID uint, divisions []model.Order) Summary {
	sorted := make([]model.Order, len(divisions))
	copy(sorted, divisions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	summary := Summary{
		ParentOrderID: parentID,
		Aggregate:     Compute(sorted),
		Divisions:     make([]DivisionView, 0, len(sorted)),
		Counts:        make(map[model.DivisionStatus]int),
		Total:         len(sorted),
	}

	total := decimal.Zero
	for i := range sorted {
		view := ViewOf(&sorted[i])
		summary.Divisions = append(summary.Divisions, view)
		summary.Counts[view.Status]++
		total = total.Add(decimal.NewFromFloat(sorted[i].TotalAmount))
	}
	summary.TotalAmount = total.Round(2).InexactFloat64()

	return summary
}
