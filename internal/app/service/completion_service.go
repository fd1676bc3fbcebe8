package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/aggregate"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/repository"
	"github.com/ikkim/udonggeum-fulfillment/internal/websocket"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
)

// DeliveryEligibility 배송 진행 가능 여부 (집계가 complete일 때만 허용)
type DeliveryEligibility struct {
	OrderID   uint                  `json:"order_id"`
	Eligible  bool                  `json:"eligible"`
	Aggregate model.AggregateStatus `json:"aggregate_status"`
}

type CompletionService interface {
	Recompute(ctx context.Context, parentID uint) (*aggregate.Summary, error)
	Summary(ctx context.Context, parentID uint) (*aggregate.Summary, error)
	DeliveryEligibility(ctx context.Context, parentID uint) (*DeliveryEligibility, error)
	CanView(ctx context.Context, actor model.Actor, parentID uint) (bool, error)
}

type completionService struct {
	orderRepo repository.OrderRepository
	notifier  Notifier
	hub       *websocket.Hub
	now       func() time.Time
}

func NewCompletionService(orderRepo repository.OrderRepository, notifier Notifier, hub *websocket.Hub) CompletionService {
	return &completionService{
		orderRepo: orderRepo,
		notifier:  notifier,
		hub:       hub,
		now:       time.Now,
	}
}

// transitionEvents 이 집계 상태로 바뀔 때만 고객/관리자에게 알림
var transitionEvents = map[model.AggregateStatus]model.NotificationEvent{
	model.AggregateComplete:  model.EventDivisionsComplete,
	model.AggregateDelivered: model.EventDivisionsDelivered,
	model.AggregateMixed:     model.EventDivisionsMixed,
}

func (s *completionService) loadParent(ctx context.Context, parentID uint) (*model.Order, error) {
	// 분할이 끝난 원 주문은 소프트 삭제 상태이므로 Unscoped 조회
	parent, err := s.orderRepo.FindByIDUnscoped(ctx, parentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %d: %w", parentID, err)
	}
	if parent.IsDivision() {
		return nil, ErrOrderIsDivision
	}
	return parent, nil
}

func (s *completionService) summarize(ctx context.Context, parent *model.Order) (*aggregate.Summary, error) {
	divisions, err := s.orderRepo.FindDivisions(ctx, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to load divisions of order %d: %w", parent.ID, err)
	}
	summary := aggregate.Summarize(parent.ID, divisions)
	return &summary, nil
}

// Recompute 분할 주문 행으로부터 집계를 다시 계산하고 바뀐 경우에만 원 주문에 기록한다.
// 같은 행 상태로 여러 번 호출해도 결과와 부수 효과는 한 번과 같다.
func (s *completionService) Recompute(ctx context.Context, parentID uint) (*aggregate.Summary, error) {
	parent, err := s.loadParent(ctx, parentID)
	if err != nil {
		return nil, err
	}

	summary, err := s.summarize(ctx, parent)
	if err != nil {
		return nil, err
	}

	var inputErr error
	if summary.Total == 0 {
		switch parent.Status {
		case model.OrderStatusSplitting:
			summary.InputMissing = true
			inputErr = ErrAggregationInputMissing
			logger.Warn("Split order has no divisions", map[string]interface{}{
				"order_id": parent.ID,
			})
		case model.OrderStatusSplitFailed:
			// 모든 그룹이 실패한 경우도 empty로 기록
		default:
			return summary, ErrNotSplitOrder
		}
	}

	previous := parent.AggregateStatus
	changed, err := s.orderRepo.UpdateAggregate(ctx, parent.ID, summary.Aggregate, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to store aggregate of order %d: %w", parent.ID, err)
	}

	if changed {
		logger.Info("Aggregate status changed", map[string]interface{}{
			"order_id": parent.ID,
			"previous": previous,
			"current":  summary.Aggregate,
		})
		s.broadcast(summary)
		s.notifyTransition(ctx, parent, previous, summary)
	}

	return summary, inputErr
}

func (s *completionService) broadcast(summary *aggregate.Summary) {
	if s.hub == nil {
		return
	}
	for _, topic := range []string{websocket.OrderTopic(summary.ParentOrderID), websocket.AdminTopic} {
		if err := s.hub.Publish(topic, "aggregate_updated", summary); err != nil {
			logger.Warn("Failed to broadcast aggregate", map[string]interface{}{
				"order_id": summary.ParentOrderID,
				"topic":    topic,
				"error":    err.Error(),
			})
		}
	}
}

func (s *completionService) notifyTransition(ctx context.Context, parent *model.Order, previous model.AggregateStatus, summary *aggregate.Summary) {
	event, ok := transitionEvents[summary.Aggregate]
	if !ok || s.notifier == nil {
		return
	}

	orderID := parent.ID
	data := map[string]interface{}{
		"code":               parent.Code,
		"aggregate_status":   summary.Aggregate,
		"previous_aggregate": previous,
		"divisions":          summary.Total,
	}

	notices := []Notice{{RecipientType: model.RecipientAdmin, Event: event, OrderID: &orderID, Data: data}}
	if parent.CustomerUserID != nil {
		notices = append(notices, Notice{
			RecipientType: model.RecipientCustomer,
			RecipientID:   *parent.CustomerUserID,
			Event:         event,
			OrderID:       &orderID,
			Data:          data,
		})
	}

	for _, n := range notices {
		if err := s.notifier.Notify(ctx, n); err != nil {
			logger.Warn("Failed to notify aggregate transition", map[string]interface{}{
				"order_id":       parent.ID,
				"recipient_type": n.RecipientType,
				"error":          err.Error(),
			})
		}
	}
}

// Summary 현재 행 기준 집계 (저장하지 않음)
func (s *completionService) Summary(ctx context.Context, parentID uint) (*aggregate.Summary, error) {
	parent, err := s.loadParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(ctx, parent)
	if err != nil {
		return nil, err
	}
	if summary.Total == 0 {
		if parent.Status == model.OrderStatusSplitting {
			summary.InputMissing = true
		} else if parent.Status != model.OrderStatusSplitFailed {
			return nil, ErrNotSplitOrder
		}
	}
	return summary, nil
}

func (s *completionService) DeliveryEligibility(ctx context.Context, parentID uint) (*DeliveryEligibility, error) {
	parent, err := s.loadParent(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.AggregateStatus == "" {
		return nil, ErrNotSplitOrder
	}
	return &DeliveryEligibility{
		OrderID:   parent.ID,
		Eligible:  parent.AggregateStatus == model.AggregateComplete,
		Aggregate: parent.AggregateStatus,
	}, nil
}

// CanView 관리자 또는 원 주문의 고객만 집계를 조회/구독할 수 있다
func (s *completionService) CanView(ctx context.Context, actor model.Actor, parentID uint) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	parent, err := s.loadParent(ctx, parentID)
	if err != nil {
		return false, err
	}
	return parent.CustomerUserID != nil && *parent.CustomerUserID == actor.UserID, nil
}
