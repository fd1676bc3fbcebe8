package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/repository"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
)

// VendorResponse 매장의 처리 가능 여부 응답. RespondedAt이 비어 있으면 현재 시각.
type VendorResponse struct {
	Accepted    bool
	Reason      string
	RespondedAt time.Time
}

type DivisionStatusService interface {
	RespondToDivision(ctx context.Context, actor model.Actor, divisionID uint, resp VendorResponse) (*model.Order, error)
	UpdateDivisionStatus(ctx context.Context, actor model.Actor, divisionID uint, status model.OrderStatus, reason string) (*model.Order, error)
	ListStoreDivisions(ctx context.Context, actor model.Actor, storeID uint, statuses ...model.OrderStatus) ([]model.Order, error)
	CanAccessStore(ctx context.Context, actor model.Actor, storeID uint) (bool, error)
	RemindAwaiting(ctx context.Context, olderThan time.Duration) (int, error)
}

type divisionStatusService struct {
	orderRepo  repository.OrderRepository
	storeRepo  repository.StoreRepository
	completion CompletionService
	notifier   Notifier
	now        func() time.Time
}

func NewDivisionStatusService(
	orderRepo repository.OrderRepository,
	storeRepo repository.StoreRepository,
	completion CompletionService,
	notifier Notifier,
) DivisionStatusService {
	return &divisionStatusService{
		orderRepo:  orderRepo,
		storeRepo:  storeRepo,
		completion: completion,
		notifier:   notifier,
		now:        time.Now,
	}
}

// fulfillmentTransitions 매장이 직접 바꿀 수 있는 상태 전이
var fulfillmentTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:   {model.OrderStatusPreparing, model.OrderStatusRejected},
	model.OrderStatusAssigned:  {model.OrderStatusPreparing, model.OrderStatusRejected},
	model.OrderStatusPreparing: {model.OrderStatusReady, model.OrderStatusRejected},
	model.OrderStatusReady:     {model.OrderStatusDelivered, model.OrderStatusCustomerRejected},
	model.OrderStatusDelivered: {model.OrderStatusReturned},
}

func canTransition(from, to model.OrderStatus) bool {
	for _, next := range fulfillmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func isFulfillmentStatus(status model.OrderStatus) bool {
	switch status {
	case model.OrderStatusPreparing, model.OrderStatusReady, model.OrderStatusDelivered,
		model.OrderStatusReturned, model.OrderStatusRejected, model.OrderStatusCustomerRejected:
		return true
	}
	return false
}

// CanAccessStore 관리자 또는 매장 소유자
func (s *divisionStatusService) CanAccessStore(ctx context.Context, actor model.Actor, storeID uint) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	if actor.Role != model.RoleSeller {
		return false, nil
	}
	store, err := s.storeRepo.FindByID(ctx, storeID)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return store.OwnerUserID != nil && *store.OwnerUserID == actor.UserID, nil
}

func (s *divisionStatusService) loadForActor(ctx context.Context, actor model.Actor, divisionID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, divisionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrDivisionNotFound
		}
		return nil, fmt.Errorf("failed to load division %d: %w", divisionID, err)
	}
	if !order.Status.IsActive() {
		return nil, ErrDivisionNotFound
	}

	if actor.IsAdmin() {
		return order, nil
	}
	if order.AssignedStoreID == nil {
		return nil, ErrNotDivisionStore
	}
	ok, err := s.CanAccessStore(ctx, actor, *order.AssignedStoreID)
	if err != nil {
		return nil, fmt.Errorf("failed to check store ownership: %w", err)
	}
	if !ok {
		logger.Warn("Division access denied", map[string]interface{}{
			"division_id": divisionID,
			"user_id":     actor.UserID,
		})
		return nil, ErrNotDivisionStore
	}
	return order, nil
}

// RespondToDivision 매장 응답 기록. 이미 기록된 응답보다 오래된 응답은 ErrStaleWriteIgnored.
func (s *divisionStatusService) RespondToDivision(ctx context.Context, actor model.Actor, divisionID uint, resp VendorResponse) (*model.Order, error) {
	division, err := s.loadForActor(ctx, actor, divisionID)
	if err != nil {
		return nil, err
	}
	// 클라이언트 시각은 현재 시각을 넘을 수 없음 (미래 시각이면 이후 응답이 모두 stale 처리됨)
	now := s.now()
	at := resp.RespondedAt
	if at.IsZero() || at.After(now) {
		at = now
	}
	if division.StoreResponseAt != nil && at.Before(*division.StoreResponseAt) {
		logger.Info("Ignored stale store response", map[string]interface{}{
			"division_id":  division.ID,
			"responded_at": at,
		})
		return nil, ErrStaleWriteIgnored
	}
	if division.Status.IsTerminal() {
		return nil, ErrInvalidDivisionStatus
	}

	upd := repository.ResponseUpdate{At: at}
	if resp.Accepted {
		upd.Status = model.StoreResponseAccepted
		if division.Status == model.OrderStatusAssigned || division.Status == model.OrderStatusPending {
			upd.OrderStatus = model.OrderStatusPreparing
		}
	} else {
		upd.Status = model.StoreResponseRejected
		upd.RejectionReason = resp.Reason
		upd.OrderStatus = model.OrderStatusRejected
	}

	applied, err := s.orderRepo.UpdateResponse(ctx, division.ID, upd)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrDivisionNotFound
		}
		return nil, fmt.Errorf("failed to record store response: %w", err)
	}
	if !applied {
		logger.Info("Ignored stale store response", map[string]interface{}{
			"division_id":  division.ID,
			"responded_at": at,
		})
		return nil, ErrStaleWriteIgnored
	}

	logger.Info("Store responded to division", map[string]interface{}{
		"division_id": division.ID,
		"accepted":    resp.Accepted,
		"user_id":     actor.UserID,
	})
	return s.reloadAndRecompute(ctx, division.ID)
}

func (s *divisionStatusService) UpdateDivisionStatus(ctx context.Context, actor model.Actor, divisionID uint, status model.OrderStatus, reason string) (*model.Order, error) {
	if !isFulfillmentStatus(status) {
		return nil, ErrInvalidDivisionStatus
	}

	division, err := s.loadForActor(ctx, actor, divisionID)
	if err != nil {
		return nil, err
	}

	// 같은 상태 재적용은 변경 없이 성공
	if division.Status == status {
		return division, nil
	}
	if !actor.IsAdmin() && !canTransition(division.Status, status) {
		logger.Warn("Invalid division status transition", map[string]interface{}{
			"division_id": division.ID,
			"from":        division.Status,
			"to":          status,
		})
		return nil, ErrInvalidDivisionStatus
	}

	if err := s.orderRepo.UpdateFulfillment(ctx, division.ID, status, reason); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrDivisionNotFound
		}
		return nil, fmt.Errorf("failed to update division status: %w", err)
	}

	logger.Info("Division status updated", map[string]interface{}{
		"division_id": division.ID,
		"from":        division.Status,
		"to":          status,
		"user_id":     actor.UserID,
	})
	return s.reloadAndRecompute(ctx, division.ID)
}

func (s *divisionStatusService) reloadAndRecompute(ctx context.Context, id uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload division %d: %w", id, err)
	}

	if parentID, ok := ParentID(ctx, s.orderRepo, order); ok && s.completion != nil {
		if _, err := s.completion.Recompute(ctx, parentID); err != nil && !errors.Is(err, ErrAggregationInputMissing) {
			logger.Warn("Failed to recompute aggregate", map[string]interface{}{
				"division_id":     order.ID,
				"parent_order_id": parentID,
				"error":           err.Error(),
			})
		}
	}
	return order, nil
}

// ParentID 분할 주문의 원 주문 ID (FK 우선, 없으면 레거시 마커로 조회)
func ParentID(ctx context.Context, orders repository.OrderRepository, order *model.Order) (uint, bool) {
	if order.ParentOrderID != nil {
		return *order.ParentOrderID, true
	}
	ref, ok := model.ParseSplitMarker(order.OrderDetails)
	if !ok {
		return 0, false
	}
	parent, err := orders.FindByRef(ctx, ref)
	if err != nil || parent.ID == order.ID {
		return 0, false
	}
	return parent.ID, true
}

func (s *divisionStatusService) ListStoreDivisions(ctx context.Context, actor model.Actor, storeID uint, statuses ...model.OrderStatus) ([]model.Order, error) {
	ok, err := s.CanAccessStore(ctx, actor, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check store ownership: %w", err)
	}
	if !ok {
		return nil, ErrNotDivisionStore
	}
	return s.orderRepo.FindByAssignedStore(ctx, storeID, statuses...)
}

// RemindAwaiting 배정 후 olderThan 이상 응답이 없는 매장에 한 번씩 리마인더 발송
func (s *divisionStatusService) RemindAwaiting(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.now()
	orders, err := s.orderRepo.FindAwaitingResponse(ctx, now.Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to find orders awaiting response: %w", err)
	}

	sent := 0
	for i := range orders {
		order := &orders[i]
		if order.AssignedStoreID == nil {
			continue
		}

		orderID := order.ID
		if err := s.notifier.Notify(ctx, Notice{
			RecipientType: model.RecipientVendor,
			RecipientID:   *order.AssignedStoreID,
			Event:         model.EventDivisionResponseReminder,
			OrderID:       &orderID,
			Data: map[string]interface{}{
				"code":        order.Code,
				"assigned_at": order.CreatedAt,
			},
		}); err != nil {
			logger.Warn("Failed to send response reminder", map[string]interface{}{
				"order_id": order.ID,
				"error":    err.Error(),
			})
			continue
		}
		if err := s.orderRepo.MarkReminded(ctx, order.ID, now); err != nil {
			continue
		}
		sent++
	}

	if sent > 0 {
		logger.Info("Store response reminders sent", map[string]interface{}{
			"count": sent,
		})
	}
	return sent, nil
}
