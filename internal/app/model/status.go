package model

type OrderStatus string         // 주문 상태 코드
type StoreResponseStatus string // 매장 응답 상태
type DivisionStatus string      // 분할 주문 표시 상태
type AggregateStatus string     // 원 주문 집계 상태

const (
	OrderStatusPending          OrderStatus = "pending"           // 주문 접수
	OrderStatusAssigned         OrderStatus = "assigned"          // 매장 배정 (응답 대기)
	OrderStatusPreparing        OrderStatus = "preparing"         // 준비 중
	OrderStatusReady            OrderStatus = "ready"             // 준비 완료
	OrderStatusDelivered        OrderStatus = "delivered"         // 배송 완료
	OrderStatusReturned         OrderStatus = "returned"          // 반품
	OrderStatusRejected         OrderStatus = "rejected"          // 매장 거절
	OrderStatusCustomerRejected OrderStatus = "customer_rejected" // 고객 수령 거절
	OrderStatusSplitting        OrderStatus = "splitting"         // 분할 완료, 삭제 대기
	OrderStatusSplitFailed      OrderStatus = "split_failed"      // 일부 분할 실패, 재시도 필요
)

const (
	StoreResponseNone        StoreResponseStatus = ""
	StoreResponsePending     StoreResponseStatus = "pending"
	StoreResponseAvailable   StoreResponseStatus = "available"
	StoreResponseUnavailable StoreResponseStatus = "unavailable"
	StoreResponseAccepted    StoreResponseStatus = "accepted"
	StoreResponseRejected    StoreResponseStatus = "rejected"
)

const (
	DivisionStatusDelivered  DivisionStatus = "delivered"
	DivisionStatusReturned   DivisionStatus = "returned"
	DivisionStatusRejected   DivisionStatus = "rejected"
	DivisionStatusAccepted   DivisionStatus = "accepted"
	DivisionStatusAssigned   DivisionStatus = "assigned"
	DivisionStatusProcessing DivisionStatus = "processing"
	DivisionStatusPending    DivisionStatus = "pending"
)

const (
	AggregateComplete   AggregateStatus = "complete"
	AggregateIncomplete AggregateStatus = "incomplete"
	AggregateMixed      AggregateStatus = "mixed"
	AggregateDelivered  AggregateStatus = "delivered"
	AggregateReturned   AggregateStatus = "returned"
	AggregateProcessing AggregateStatus = "processing"
	AggregateEmpty      AggregateStatus = "empty"
)

// IsConfirmed available/accepted는 동의어 (매장이 처리 가능하다고 응답)
func (s StoreResponseStatus) IsConfirmed() bool {
	return s == StoreResponseAvailable || s == StoreResponseAccepted
}

// IsDeclined unavailable/rejected는 동의어 (매장이 거절)
func (s StoreResponseStatus) IsDeclined() bool {
	return s == StoreResponseUnavailable || s == StoreResponseRejected
}

// IsAwaiting 아직 응답이 없는 상태
func (s StoreResponseStatus) IsAwaiting() bool {
	return s == StoreResponseNone || s == StoreResponsePending
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusReturned, OrderStatusRejected, OrderStatusCustomerRejected:
		return true
	}
	return false
}

// IsActive splitting 상태의 원 주문은 어떤 소비자에게도 활성 주문이 아니다
func (s OrderStatus) IsActive() bool {
	return s != OrderStatusSplitting
}

// IsFinal delivered/returned 집계는 더 이상 변하지 않는다
func (a AggregateStatus) IsFinal() bool {
	return a == AggregateDelivered || a == AggregateReturned
}
