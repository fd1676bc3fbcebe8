package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/changefeed"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResponseUpdate 매장 응답 기록 (OrderStatus가 비어 있으면 주문 상태는 유지)
type ResponseUpdate struct {
	Status          model.StoreResponseStatus
	At              time.Time
	RejectionReason string
	OrderStatus     model.OrderStatus
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	FindByIDUnscoped(ctx context.Context, id uint) (*model.Order, error)
	FindByRef(ctx context.Context, ref string) (*model.Order, error)
	FindDivisions(ctx context.Context, parent *model.Order) ([]model.Order, error)
	FindByAssignedStore(ctx context.Context, storeID uint, statuses ...model.OrderStatus) ([]model.Order, error)
	FindByStatuses(ctx context.Context, statuses ...model.OrderStatus) ([]model.Order, error)
	FindActiveSplitParentIDs(ctx context.Context) ([]uint, error)
	FindAwaitingResponse(ctx context.Context, assignedBefore time.Time) ([]model.Order, error)

	CreateDivision(ctx context.Context, division *model.Order) error
	Transfer(ctx context.Context, orderID uint, store model.Store) (*model.Order, error)
	UpdateStatus(ctx context.Context, id uint, status model.OrderStatus) error
	UpdateFulfillment(ctx context.Context, id uint, status model.OrderStatus, reason string) error
	UpdateResponse(ctx context.Context, id uint, upd ResponseUpdate) (bool, error)
	UpdateAggregate(ctx context.Context, id uint, status model.AggregateStatus, at time.Time) (bool, error)
	SoftDelete(ctx context.Context, id uint) error
	MarkReminded(ctx context.Context, id uint, at time.Time) error
}

type orderRepository struct {
	db   *gorm.DB
	feed changefeed.Publisher
}

func NewOrderRepository(db *gorm.DB, feed changefeed.Publisher) OrderRepository {
	if feed == nil {
		feed = changefeed.Nop{}
	}
	return &orderRepository{db: db, feed: feed}
}

// publish 변경 알림은 힌트일 뿐이므로 실패해도 쓰기는 유지
func (r *orderRepository) publish(ctx context.Context, eventType changefeed.EventType, id uint, parentID *uint) {
	relation := changefeed.RelationOrders
	if parentID != nil {
		relation = changefeed.RelationDivisions
	}

	event := changefeed.Event{
		Relation: relation,
		Type:     eventType,
		ID:       id,
		ParentID: parentID,
		At:       time.Now().UTC(),
	}
	if err := r.feed.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish order change", map[string]interface{}{
			"order_id": id,
			"relation": relation,
			"error":    err.Error(),
		})
	}
}

func (r *orderRepository) publishByID(ctx context.Context, eventType changefeed.EventType, id uint) {
	var row model.Order
	if err := r.db.WithContext(ctx).Unscoped().Select("id", "parent_order_id").Take(&row, id).Error; err != nil {
		logger.Warn("Failed to resolve order for change event", map[string]interface{}{
			"order_id": id,
			"error":    err.Error(),
		})
		return
	}
	r.publish(ctx, eventType, row.ID, row.ParentOrderID)
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"code":         order.Code,
		"total_amount": order.TotalAmount,
		"items":        len(order.OrderItems),
	})

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"code": order.Code,
		})
		return err
	}

	r.publish(ctx, changefeed.EventInsert, order.ID, order.ParentOrderID)
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	logger.Debug("Finding order by ID in database", map[string]interface{}{
		"order_id": id,
	})

	var order model.Order
	if err := r.db.WithContext(ctx).Preload("OrderItems").First(&order, id).Error; err != nil {
		logger.Error("Failed to find order by ID in database", err, map[string]interface{}{
			"order_id": id,
		})
		return nil, err
	}
	return &order, nil
}

// FindByIDUnscoped 소프트 삭제된 원 주문도 조회 (분할 후 집계 기록용)
func (r *orderRepository) FindByIDUnscoped(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Unscoped().Preload("OrderItems").First(&order, id).Error; err != nil {
		logger.Error("Failed to find order (unscoped) in database", err, map[string]interface{}{
			"order_id": id,
		})
		return nil, err
	}
	return &order, nil
}

// FindByRef 레거시 마커의 참조값(id 또는 code)으로 조회
func (r *orderRepository) FindByRef(ctx context.Context, ref string) (*model.Order, error) {
	query := r.db.WithContext(ctx).Unscoped()
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		query = query.Where("id = ? OR code = ?", id, ref)
	} else {
		query = query.Where("code = ?", ref)
	}

	var order model.Order
	if err := query.Order("id").First(&order).Error; err != nil {
		logger.Error("Failed to find order by reference", err, map[string]interface{}{
			"ref": ref,
		})
		return nil, err
	}
	return &order, nil
}

// FindDivisions parent_order_id FK와 레거시 마커 모두로 분할 주문 조회
func (r *orderRepository) FindDivisions(ctx context.Context, parent *model.Order) ([]model.Order, error) {
	logger.Debug("Finding divisions in database", map[string]interface{}{
		"parent_order_id": parent.ID,
	})

	var candidates []model.Order
	if err := r.db.WithContext(ctx).Preload("OrderItems").
		Where("parent_order_id = ? OR (parent_order_id IS NULL AND LOWER(order_details) LIKE ?)",
			parent.ID, "%split from original order%").
		Find(&candidates).Error; err != nil {
		logger.Error("Failed to find divisions in database", err, map[string]interface{}{
			"parent_order_id": parent.ID,
		})
		return nil, err
	}

	idRef := strconv.FormatUint(uint64(parent.ID), 10)
	seen := make(map[uint]bool, len(candidates))
	divisions := make([]model.Order, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.ID] || c.ID == parent.ID {
			continue
		}
		if c.ParentOrderID != nil {
			if *c.ParentOrderID != parent.ID {
				continue
			}
		} else {
			// LIKE is only a prefilter; the marker must reference this parent exactly
			ref, ok := model.ParseSplitMarker(c.OrderDetails)
			if !ok || (ref != idRef && ref != parent.Code) {
				continue
			}
		}
		seen[c.ID] = true
		divisions = append(divisions, c)
	}

	sort.Slice(divisions, func(i, j int) bool { return divisions[i].ID < divisions[j].ID })

	logger.Debug("Divisions found in database", map[string]interface{}{
		"parent_order_id": parent.ID,
		"count":           len(divisions),
	})
	return divisions, nil
}

func (r *orderRepository) FindByAssignedStore(ctx context.Context, storeID uint, statuses ...model.OrderStatus) ([]model.Order, error) {
	query := r.db.WithContext(ctx).Preload("OrderItems").Where("assigned_store_id = ?", storeID)
	if len(statuses) > 0 {
		query = query.Where("order_status IN ?", statuses)
	}

	var orders []model.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by assigned store", err, map[string]interface{}{
			"store_id": storeID,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) FindByStatuses(ctx context.Context, statuses ...model.OrderStatus) ([]model.Order, error) {
	var orders []model.Order
	if err := r.db.WithContext(ctx).Preload("OrderItems").
		Where("order_status IN ?", statuses).
		Order("id").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by status", err, map[string]interface{}{
			"statuses": statuses,
		})
		return nil, err
	}
	return orders, nil
}

// FindActiveSplitParentIDs 집계가 아직 최종(delivered/returned)이 아닌 원 주문 ID
func (r *orderRepository) FindActiveSplitParentIDs(ctx context.Context) ([]uint, error) {
	parents := r.db.Model(&model.Order{}).
		Select("parent_order_id").
		Where("parent_order_id IS NOT NULL")

	var ids []uint
	if err := r.db.WithContext(ctx).Unscoped().Model(&model.Order{}).
		Where("id IN (?)", parents).
		Where("aggregate_status IS NULL OR aggregate_status NOT IN ?",
			[]model.AggregateStatus{model.AggregateDelivered, model.AggregateReturned}).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		logger.Error("Failed to find active split parents", err)
		return nil, err
	}
	return ids, nil
}

// FindAwaitingResponse 배정 후 응답이 없고 리마인더도 보내지 않은 주문
func (r *orderRepository) FindAwaitingResponse(ctx context.Context, assignedBefore time.Time) ([]model.Order, error) {
	var orders []model.Order
	if err := r.db.WithContext(ctx).
		Where("order_status = ?", model.OrderStatusAssigned).
		Where("store_response_status IS NULL OR store_response_status IN ?",
			[]model.StoreResponseStatus{model.StoreResponseNone, model.StoreResponsePending}).
		Where("response_reminded_at IS NULL").
		Where("created_at <= ?", assignedBefore.UTC()).
		Order("id").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders awaiting store response", err)
		return nil, err
	}
	return orders, nil
}

// CreateDivision 분할 주문과 항목을 하나의 트랜잭션으로 생성
func (r *orderRepository) CreateDivision(ctx context.Context, division *model.Order) error {
	logger.Debug("Creating division in database", map[string]interface{}{
		"parent_order_id": division.ParentOrderID,
		"store_name":      division.AssignedStoreName,
		"items":           len(division.OrderItems),
	})

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(division).Error
	})
	if err != nil {
		logger.Error("Failed to create division in database", err, map[string]interface{}{
			"parent_order_id": division.ParentOrderID,
			"store_name":      division.AssignedStoreName,
		})
		return err
	}

	r.publish(ctx, changefeed.EventInsert, division.ID, division.ParentOrderID)
	return nil
}

// Transfer 단일 매장 배정: 주문, 정규화 항목, 스냅샷을 한 트랜잭션으로 갱신
func (r *orderRepository) Transfer(ctx context.Context, orderID uint, store model.Store) (*model.Order, error) {
	logger.Debug("Transferring order in database", map[string]interface{}{
		"order_id": orderID,
		"store_id": store.ID,
	})

	var updated model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}

		storeID := store.ID
		items := make([]model.ItemSnapshot, len(order.Items))
		for i, item := range order.Items {
			item.StoreID = &storeID
			item.StoreName = store.Name
			items[i] = item
		}

		if err := tx.Model(&order).Updates(map[string]interface{}{
			"assigned_store_id":   store.ID,
			"assigned_store_name": store.Name,
			"main_store_name":     store.Name,
			"order_status":        model.OrderStatusAssigned,
			"items":               datatypes.JSONSlice[model.ItemSnapshot](items),
		}).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.OrderItem{}).
			Where("order_id = ?", orderID).
			Updates(map[string]interface{}{
				"store_id":   store.ID,
				"store_name": store.Name,
			}).Error; err != nil {
			return err
		}

		return tx.Preload("OrderItems").First(&updated, orderID).Error
	})
	if err != nil {
		logger.Error("Failed to transfer order in database", err, map[string]interface{}{
			"order_id": orderID,
			"store_id": store.ID,
		})
		return nil, err
	}

	r.publish(ctx, changefeed.EventUpdate, updated.ID, updated.ParentOrderID)
	return &updated, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uint, status model.OrderStatus) error {
	logger.Debug("Updating order status in database", map[string]interface{}{
		"order_id": id,
		"status":   status,
	})

	result := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Update("order_status", status)
	if result.Error != nil {
		logger.Error("Failed to update order status in database", result.Error, map[string]interface{}{
			"order_id": id,
			"status":   status,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	r.publishByID(ctx, changefeed.EventUpdate, id)
	return nil
}

// UpdateFulfillment 사유는 반품이면 return_reason, 거절이면 rejection_reason에 기록
func (r *orderRepository) UpdateFulfillment(ctx context.Context, id uint, status model.OrderStatus, reason string) error {
	updates := map[string]interface{}{"order_status": status}
	if reason != "" {
		switch status {
		case model.OrderStatusReturned:
			updates["return_reason"] = reason
		case model.OrderStatusRejected, model.OrderStatusCustomerRejected:
			updates["rejection_reason"] = reason
		}
	}

	result := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		logger.Error("Failed to update fulfillment status in database", result.Error, map[string]interface{}{
			"order_id": id,
			"status":   status,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	r.publishByID(ctx, changefeed.EventUpdate, id)
	return nil
}

// UpdateResponse store_response_at이 더 최신인 응답만 기록. 반영되지 않으면 false.
func (r *orderRepository) UpdateResponse(ctx context.Context, id uint, upd ResponseUpdate) (bool, error) {
	at := upd.At.UTC().Truncate(time.Microsecond)
	updates := map[string]interface{}{
		"store_response_status": upd.Status,
		"store_response_at":     at,
		"rejection_reason":      upd.RejectionReason,
	}
	if upd.OrderStatus != "" {
		updates["order_status"] = upd.OrderStatus
	}

	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND (store_response_at IS NULL OR store_response_at <= ?)", id, at).
		Updates(updates)
	if result.Error != nil {
		logger.Error("Failed to update store response in database", result.Error, map[string]interface{}{
			"order_id": id,
		})
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, gorm.ErrRecordNotFound
		}
		logger.Debug("Ignored stale store response", map[string]interface{}{
			"order_id":    id,
			"response_at": at,
		})
		return false, nil
	}

	r.publishByID(ctx, changefeed.EventUpdate, id)
	return true, nil
}

// UpdateAggregate 집계 상태가 바뀐 경우에만 기록 (삭제된 원 주문 포함). 변경 여부 반환.
func (r *orderRepository) UpdateAggregate(ctx context.Context, id uint, status model.AggregateStatus, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Unscoped().Model(&model.Order{}).
		Where("id = ? AND (aggregate_status IS NULL OR aggregate_status <> ?)", id, status).
		Updates(map[string]interface{}{
			"aggregate_status":     status,
			"aggregate_updated_at": at.UTC(),
		})
	if result.Error != nil {
		logger.Error("Failed to update aggregate status in database", result.Error, map[string]interface{}{
			"order_id":  id,
			"aggregate": status,
		})
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	r.publish(ctx, changefeed.EventUpdate, id, nil)
	return true, nil
}

func (r *orderRepository) SoftDelete(ctx context.Context, id uint) error {
	logger.Debug("Soft deleting order in database", map[string]interface{}{
		"order_id": id,
	})

	result := r.db.WithContext(ctx).Delete(&model.Order{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete order in database", result.Error, map[string]interface{}{
			"order_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	r.publish(ctx, changefeed.EventDelete, id, nil)
	return nil
}

func (r *orderRepository) MarkReminded(ctx context.Context, id uint, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		UpdateColumn("response_reminded_at", at.UTC()).Error; err != nil {
		logger.Error("Failed to mark order reminded", err, map[string]interface{}{
			"order_id": id,
		})
		return err
	}
	return nil
}

// IsNotFound gorm not-found 여부
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
