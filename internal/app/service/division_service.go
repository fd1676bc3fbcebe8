package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/repository"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
	"github.com/ikkim/udonggeum-fulfillment/pkg/report"
	"github.com/ikkim/udonggeum-fulfillment/pkg/splitrpc"
	"github.com/shopspring/decimal"
)

const unknownVendor = "unknown vendor"

type SplitPath string

const (
	SplitPathRemote SplitPath = "remote"
	SplitPathLocal  SplitPath = "local"
)

type RouteMode string

const (
	RouteModeTransfer RouteMode = "transfer"
	RouteModeSplit    RouteMode = "split"
)

// SplitOutcome 매장 그룹 하나의 분할 결과
type SplitOutcome struct {
	StoreName string `json:"store_name"`
	StoreID   *uint  `json:"store_id,omitempty"`
	Success   bool   `json:"success"`
	OrderID   *uint  `json:"order_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Unrouted  bool   `json:"unrouted,omitempty"` // 등록되지 않은 매장 (배정 매장 없음)
	Skipped   bool   `json:"skipped,omitempty"`  // 이미 생성된 분할 주문
}

// SplitResult 원격/로컬 분할 모두 같은 형태로 반환
type SplitResult struct {
	OriginalOrderID  uint           `json:"original_order_id"`
	Success          bool           `json:"success"`
	SuccessfulSplits int            `json:"successful_splits"`
	TotalStores      int            `json:"total_stores"`
	Results          []SplitOutcome `json:"results"`
	Path             SplitPath      `json:"path"`
	OriginalDeleted  bool           `json:"original_deleted"`
	ReportURL        string         `json:"report_url,omitempty"`
}

type RouteResult struct {
	Mode  RouteMode    `json:"mode"`
	Order *model.Order `json:"order,omitempty"`
	Split *SplitResult `json:"split,omitempty"`
}

// RemoteSplitter 원격 분할 프로시저 (*splitrpc.Client)
type RemoteSplitter interface {
	SplitOrder(ctx context.Context, originalOrderID uint) (*splitrpc.SplitResponse, error)
}

// ReportArchiver 분할 결과 보고서 보관소 (*storage.S3Storage)
type ReportArchiver interface {
	ArchiveSplitReport(ctx context.Context, orderID uint, workbook []byte) (string, error)
}

type DivisionService interface {
	Route(ctx context.Context, orderID uint) (*RouteResult, error)
	Split(ctx context.Context, orderID uint) (*SplitResult, error)
	SplitLocal(ctx context.Context, orderID uint) (*SplitResult, error)
	ListSplitFailures(ctx context.Context) ([]model.Order, error)
	SplitReport(ctx context.Context, orderID uint) ([]byte, error)
}

type divisionService struct {
	orderRepo  repository.OrderRepository
	storeRepo  repository.StoreRepository
	completion CompletionService
	notifier   Notifier
	remote     RemoteSplitter
	archiver   ReportArchiver
}

// NewDivisionService remote, archiver는 nil 허용 (로컬 분할만 사용, 보고서 보관 안 함)
func NewDivisionService(
	orderRepo repository.OrderRepository,
	storeRepo repository.StoreRepository,
	completion CompletionService,
	notifier Notifier,
	remote RemoteSplitter,
	archiver ReportArchiver,
) DivisionService {
	return &divisionService{
		orderRepo:  orderRepo,
		storeRepo:  storeRepo,
		completion: completion,
		notifier:   notifier,
		remote:     remote,
		archiver:   archiver,
	}
}

// vendorGroup 같은 매장으로 묶인 항목
type vendorGroup struct {
	key   string
	name  string
	store *model.Store
	items []model.ItemSnapshot
}

func (g *vendorGroup) storeID() *uint {
	if g.store == nil {
		return nil
	}
	id := g.store.ID
	return &id
}

// vendorNameOf 항목 store_name → vendor_name → 주문 대표 매장명 → unknown vendor
func vendorNameOf(item model.ItemSnapshot, order *model.Order) string {
	for _, name := range []string{item.StoreName, item.VendorName, order.MainStoreName} {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			return trimmed
		}
	}
	return unknownVendor
}

func findStoreByName(stores []model.Store, name string) *model.Store {
	for i := range stores {
		if stores[i].MatchesName(name) {
			return &stores[i]
		}
	}
	return nil
}

func storeKey(id uint) string { return fmt.Sprintf("id:%d", id) }
func nameKey(name string) string { return "name:" + model.NormalizeStoreName(name) }

// planGroups 항목을 매장별로 묶는다. 항목에 알려진 store_id가 있으면 ID로, 없으면 이름으로.
// 그룹 순서는 항목이 처음 등장한 순서.
func planGroups(order *model.Order, stores []model.Store) []*vendorGroup {
	byID := make(map[uint]*model.Store, len(stores))
	for i := range stores {
		byID[stores[i].ID] = &stores[i]
	}

	var groups []*vendorGroup
	index := make(map[string]*vendorGroup)
	for _, item := range order.EffectiveItems() {
		name := vendorNameOf(item, order)

		var store *model.Store
		if item.StoreID != nil {
			store = byID[*item.StoreID]
		}
		if store == nil {
			store = findStoreByName(stores, name)
		}

		key := nameKey(name)
		if store != nil {
			key = storeKey(store.ID)
			name = store.Name
		}

		group, ok := index[key]
		if !ok {
			group = &vendorGroup{key: key, name: name, store: store}
			index[key] = group
			groups = append(groups, group)
		}
		group.items = append(group.items, item)
	}
	return groups
}

func divisionKey(d *model.Order) string {
	if d.AssignedStoreID != nil {
		return storeKey(*d.AssignedStoreID)
	}
	return nameKey(d.AssignedStoreName)
}

// itemsTotal Σ (할인가가 있으면 할인가, 없으면 정가) × 수량, 소수 둘째 자리 반올림
func itemsTotal(items []model.ItemSnapshot) float64 {
	total := decimal.Zero
	for _, item := range items {
		unit := item.Price
		if item.DiscountedPrice > 0 {
			unit = item.DiscountedPrice
		}
		total = total.Add(decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Round(2).InexactFloat64()
}

func (s *divisionService) loadRoutable(ctx context.Context, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	if order.IsDivision() {
		return nil, ErrOrderIsDivision
	}
	switch order.Status {
	case model.OrderStatusPending, model.OrderStatusAssigned, model.OrderStatusSplitFailed:
		return order, nil
	default:
		logger.Warn("Order status does not allow routing", map[string]interface{}{
			"order_id": order.ID,
			"status":   order.Status,
		})
		return nil, ErrOrderNotRoutable
	}
}

func (s *divisionService) plan(ctx context.Context, order *model.Order) ([]*vendorGroup, error) {
	stores, err := s.storeRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}
	groups := planGroups(order, stores)
	if len(groups) == 0 {
		logger.Warn("Order has no items to route", map[string]interface{}{
			"order_id": order.ID,
		})
		return nil, ErrNoItemsToRoute
	}
	return groups, nil
}

// Route 매장 그룹이 하나면 Transfer, 둘 이상이면 Split
func (s *divisionService) Route(ctx context.Context, orderID uint) (*RouteResult, error) {
	order, err := s.loadRoutable(ctx, orderID)
	if err != nil {
		return nil, err
	}
	groups, err := s.plan(ctx, order)
	if err != nil {
		return nil, err
	}

	logger.Info("Routing order", map[string]interface{}{
		"order_id":     order.ID,
		"store_groups": len(groups),
	})

	if len(groups) == 1 {
		transferred, err := s.transfer(ctx, order, groups[0])
		if err != nil {
			return nil, err
		}
		return &RouteResult{Mode: RouteModeTransfer, Order: transferred}, nil
	}

	result, err := s.split(ctx, order, groups)
	if result == nil {
		return nil, err
	}
	return &RouteResult{Mode: RouteModeSplit, Split: result}, err
}

func (s *divisionService) transfer(ctx context.Context, order *model.Order, group *vendorGroup) (*model.Order, error) {
	if group.store == nil {
		logger.Warn("Transfer target vendor not found", map[string]interface{}{
			"order_id":    order.ID,
			"vendor_name": group.name,
		})
		return nil, &VendorNotFoundError{Name: group.name}
	}
	store := *group.store

	if alreadyTransferred(order, store.ID) {
		logger.Debug("Order already transferred to vendor", map[string]interface{}{
			"order_id": order.ID,
			"store_id": store.ID,
		})
		return order, nil
	}

	transferred, err := s.orderRepo.Transfer(ctx, order.ID, store)
	if err != nil {
		return nil, fmt.Errorf("failed to transfer order %d to %q: %w", order.ID, store.Name, err)
	}

	logger.Info("Order transferred", map[string]interface{}{
		"order_id":   order.ID,
		"store_id":   store.ID,
		"store_name": store.Name,
	})
	s.notifyAssigned(ctx, transferred, store.ID)
	return transferred, nil
}

func alreadyTransferred(order *model.Order, storeID uint) bool {
	if order.Status != model.OrderStatusAssigned || order.AssignedStoreID == nil || *order.AssignedStoreID != storeID {
		return false
	}
	for _, item := range order.EffectiveItems() {
		if item.StoreID == nil || *item.StoreID != storeID {
			return false
		}
	}
	return true
}

func (s *divisionService) Split(ctx context.Context, orderID uint) (*SplitResult, error) {
	order, err := s.loadRoutable(ctx, orderID)
	if err != nil {
		return nil, err
	}
	groups, err := s.plan(ctx, order)
	if err != nil {
		return nil, err
	}
	return s.split(ctx, order, groups)
}

// split 원격 프로시저 우선, 실패하면 같은 계획을 로컬에서 실행
func (s *divisionService) split(ctx context.Context, order *model.Order, groups []*vendorGroup) (*SplitResult, error) {
	if s.remote != nil {
		result, err := s.splitRemote(ctx, order.ID)
		if err == nil {
			s.recompute(ctx, order.ID)
			return result, nil
		}
		logger.Warn("Falling back to local split", map[string]interface{}{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
	return s.materialize(ctx, order, groups)
}

func (s *divisionService) splitRemote(ctx context.Context, orderID uint) (*SplitResult, error) {
	resp, err := s.remote.SplitOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteProcedureUnavailable, err)
	}

	result := &SplitResult{
		OriginalOrderID:  orderID,
		Success:          resp.Success,
		SuccessfulSplits: resp.SuccessfulSplits,
		TotalStores:      resp.TotalStores,
		Results:          make([]SplitOutcome, 0, len(resp.Results)),
		Path:             SplitPathRemote,
		OriginalDeleted:  resp.Success,
	}
	for _, r := range resp.Results {
		result.Results = append(result.Results, SplitOutcome{
			StoreName: r.StoreName,
			Success:   r.Success,
			OrderID:   r.OrderID,
			Error:     r.Error,
		})
	}

	logger.Info("Remote split completed", map[string]interface{}{
		"order_id":          orderID,
		"successful_splits": result.SuccessfulSplits,
		"total_stores":      result.TotalStores,
	})
	return result, nil
}

// SplitLocal 원격 호출 없이 로컬에서 분할 (호스팅 프로시저에서 사용)
func (s *divisionService) SplitLocal(ctx context.Context, orderID uint) (*SplitResult, error) {
	order, err := s.loadRoutable(ctx, orderID)
	if err != nil {
		return nil, err
	}
	groups, err := s.plan(ctx, order)
	if err != nil {
		return nil, err
	}
	return s.materialize(ctx, order, groups)
}

// materialize 매장 그룹마다 분할 주문을 만든다. 이미 만들어진 그룹은 건너뛰므로 재시도해도 안전.
// 모든 그룹을 시도하기 전까지 원 주문은 건드리지 않는다.
func (s *divisionService) materialize(ctx context.Context, order *model.Order, groups []*vendorGroup) (*SplitResult, error) {
	existing, err := s.orderRepo.FindDivisions(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing divisions of order %d: %w", order.ID, err)
	}
	existingByKey := make(map[string]*model.Order, len(existing))
	for i := range existing {
		existingByKey[divisionKey(&existing[i])] = &existing[i]
	}

	result := &SplitResult{
		OriginalOrderID: order.ID,
		TotalStores:     len(groups),
		Results:         make([]SplitOutcome, 0, len(groups)),
		Path:            SplitPathLocal,
	}

	var failed []SplitOutcome
	seq := nextDivisionSeq(order.Code, existing)
	for _, group := range groups {
		outcome := SplitOutcome{
			StoreName: group.name,
			StoreID:   group.storeID(),
			Unrouted:  group.store == nil,
		}

		if d, ok := existingByKey[group.key]; ok {
			id := d.ID
			outcome.Success = true
			outcome.OrderID = &id
			outcome.Skipped = true
		} else {
			division := buildDivision(order, group, seq)
			if err := s.orderRepo.CreateDivision(ctx, division); err != nil {
				logger.Error("Failed to create division", err, map[string]interface{}{
					"order_id":   order.ID,
					"store_name": group.name,
				})
				outcome.Error = err.Error()
			} else {
				seq++
				id := division.ID
				outcome.Success = true
				outcome.OrderID = &id
				if group.store != nil {
					s.notifyAssigned(ctx, division, group.store.ID)
				}
			}
		}

		if outcome.Success {
			result.SuccessfulSplits++
		} else {
			failed = append(failed, outcome)
		}
		result.Results = append(result.Results, outcome)
	}

	if len(failed) > 0 {
		return s.failSplit(ctx, order, result, failed)
	}

	result.Success = true
	if err := s.retireOriginal(ctx, order.ID); err != nil {
		return result, err
	}
	result.OriginalDeleted = true

	logger.Info("Order split completed", map[string]interface{}{
		"order_id":     order.ID,
		"store_groups": result.TotalStores,
	})
	s.recompute(ctx, order.ID)
	return result, nil
}

// retireOriginal 원 주문을 splitting으로 바꾼 뒤 삭제.
// 원격 프로시저가 커밋 후 응답 전에 타임아웃된 경우 이미 삭제되어 있을 수 있다.
func (s *divisionService) retireOriginal(ctx context.Context, orderID uint) error {
	current, err := s.orderRepo.FindByIDUnscoped(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to reload split order %d: %w", orderID, err)
	}
	if current.DeletedAt.Valid {
		logger.Info("Split order already retired", map[string]interface{}{
			"order_id": orderID,
		})
		return nil
	}

	if current.Status != model.OrderStatusSplitting {
		if err := s.orderRepo.UpdateStatus(ctx, orderID, model.OrderStatusSplitting); err != nil {
			return fmt.Errorf("failed to mark order %d as splitting: %w", orderID, err)
		}
	}
	if err := s.orderRepo.SoftDelete(ctx, orderID); err != nil {
		return fmt.Errorf("failed to delete split order %d: %w", orderID, err)
	}
	return nil
}

// nextDivisionSeq 기존 분할 주문 코드(<원 주문 코드>-NN)의 최대 번호 다음 값
func nextDivisionSeq(parentCode string, existing []model.Order) int {
	prefix := parentCode + "-"
	maxSeq := 0
	for _, d := range existing {
		suffix, ok := strings.CutPrefix(d.Code, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > maxSeq {
			maxSeq = n
		}
	}
	return maxSeq + 1
}

// failSplit 일부 실패: 원 주문을 split_failed로 남기고 보고서 보관 후 관리자에게 알림
func (s *divisionService) failSplit(ctx context.Context, order *model.Order, result *SplitResult, failed []SplitOutcome) (*SplitResult, error) {
	logger.Warn("Order split partially failed", map[string]interface{}{
		"order_id":     order.ID,
		"failed":       len(failed),
		"store_groups": result.TotalStores,
	})

	if err := s.orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusSplitFailed); err != nil {
		logger.Error("Failed to mark order split_failed", err, map[string]interface{}{
			"order_id": order.ID,
		})
	}

	if s.archiver != nil {
		workbook, err := report.BuildSplitReport(report.SplitMeta{
			OrderID:     order.ID,
			OrderCode:   order.Code,
			Status:      string(model.OrderStatusSplitFailed),
			Path:        string(result.Path),
			GeneratedAt: time.Now(),
		}, splitRows(result.Results))
		if err != nil {
			logger.Error("Failed to build split report", err, map[string]interface{}{
				"order_id": order.ID,
			})
		} else if url, err := s.archiver.ArchiveSplitReport(ctx, order.ID, workbook); err == nil {
			result.ReportURL = url
		}
	}

	if s.notifier != nil {
		orderID := order.ID
		names := make([]string, 0, len(failed))
		for _, f := range failed {
			names = append(names, f.StoreName)
		}
		data := map[string]interface{}{
			"code":          order.Code,
			"failed_stores": names,
		}
		if result.ReportURL != "" {
			data["report_url"] = result.ReportURL
		}
		if err := s.notifier.Notify(ctx, Notice{
			RecipientType: model.RecipientAdmin,
			Event:         model.EventSplitFailed,
			OrderID:       &orderID,
			Data:          data,
		}); err != nil {
			logger.Warn("Failed to notify split failure", map[string]interface{}{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	s.recompute(ctx, order.ID)
	return result, &PartialSplitFailureError{OrderID: order.ID, Failed: failed}
}

func buildDivision(order *model.Order, group *vendorGroup, seq int) *model.Order {
	storeID := group.storeID()

	snapshot := make([]model.ItemSnapshot, 0, len(group.items))
	orderItems := make([]model.OrderItem, 0, len(group.items))
	for _, item := range group.items {
		item.StoreID = storeID
		item.StoreName = group.name
		snapshot = append(snapshot, item)
		orderItems = append(orderItems, model.OrderItem{
			ProductName:     item.ProductName,
			StoreID:         storeID,
			StoreName:       group.name,
			VendorName:      item.VendorName,
			Price:           item.Price,
			DiscountedPrice: item.DiscountedPrice,
			Quantity:        item.Quantity,
		})
	}

	parentID := order.ID
	return &model.Order{
		Code:              fmt.Sprintf("%s-%02d", order.Code, seq),
		CustomerUserID:    order.CustomerUserID,
		CustomerName:      order.CustomerName,
		CustomerPhone:     order.CustomerPhone,
		CustomerAddress:   order.CustomerAddress,
		Notes:             order.Notes,
		Status:            model.OrderStatusAssigned,
		AssignedStoreID:   storeID,
		AssignedStoreName: group.name,
		MainStoreName:     group.name,
		OrderDetails:      model.SplitMarker(order.Code),
		ParentOrderID:     &parentID,
		Items:             snapshot,
		TotalAmount:       itemsTotal(group.items),
		ItemsCount:        len(group.items),
		OrderItems:        orderItems,
	}
}

func splitRows(outcomes []SplitOutcome) []report.SplitRow {
	rows := make([]report.SplitRow, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, report.SplitRow{
			StoreName: o.StoreName,
			Success:   o.Success,
			OrderID:   o.OrderID,
			Error:     o.Error,
			Skipped:   o.Skipped,
			Unrouted:  o.Unrouted,
		})
	}
	return rows
}

func (s *divisionService) notifyAssigned(ctx context.Context, order *model.Order, storeID uint) {
	if s.notifier == nil {
		return
	}
	orderID := order.ID
	data := map[string]interface{}{
		"code":        order.Code,
		"items_count": order.ItemsCount,
	}
	if order.ParentOrderID != nil {
		data["parent_order_id"] = *order.ParentOrderID
	}
	if err := s.notifier.Notify(ctx, Notice{
		RecipientType: model.RecipientVendor,
		RecipientID:   storeID,
		Event:         model.EventDivisionAssigned,
		OrderID:       &orderID,
		Data:          data,
	}); err != nil {
		logger.Warn("Failed to notify vendor of assignment", map[string]interface{}{
			"order_id": order.ID,
			"store_id": storeID,
			"error":    err.Error(),
		})
	}
}

func (s *divisionService) recompute(ctx context.Context, parentID uint) {
	if s.completion == nil {
		return
	}
	if _, err := s.completion.Recompute(ctx, parentID); err != nil && !errors.Is(err, ErrNotSplitOrder) {
		logger.Warn("Failed to recompute aggregate after split", map[string]interface{}{
			"order_id": parentID,
			"error":    err.Error(),
		})
	}
}

func (s *divisionService) ListSplitFailures(ctx context.Context) ([]model.Order, error) {
	orders, err := s.orderRepo.FindByStatuses(ctx, model.OrderStatusSplitFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list split failures: %w", err)
	}
	return orders, nil
}

// SplitReport 현재 계획과 이미 생성된 분할 주문을 대조한 보고서
func (s *divisionService) SplitReport(ctx context.Context, orderID uint) ([]byte, error) {
	order, err := s.orderRepo.FindByIDUnscoped(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	if order.IsDivision() {
		return nil, ErrOrderIsDivision
	}

	stores, err := s.storeRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}
	existing, err := s.orderRepo.FindDivisions(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to load divisions of order %d: %w", order.ID, err)
	}
	if len(existing) == 0 && order.Status != model.OrderStatusSplitFailed && order.Status != model.OrderStatusSplitting {
		return nil, ErrNotSplitOrder
	}
	existingByKey := make(map[string]*model.Order, len(existing))
	for i := range existing {
		existingByKey[divisionKey(&existing[i])] = &existing[i]
	}

	var rows []report.SplitRow
	for _, group := range planGroups(order, stores) {
		row := report.SplitRow{StoreName: group.name, Unrouted: group.store == nil}
		if d, ok := existingByKey[group.key]; ok {
			id := d.ID
			row.Success = true
			row.OrderID = &id
			delete(existingByKey, group.key)
		} else {
			row.Error = "division missing"
		}
		rows = append(rows, row)
	}
	// 계획에 없는 분할 주문 (레거시 또는 항목이 바뀐 경우)
	for i := range existing {
		if _, ok := existingByKey[divisionKey(&existing[i])]; !ok {
			continue
		}
		id := existing[i].ID
		rows = append(rows, report.SplitRow{
			StoreName: existing[i].AssignedStoreName,
			Success:   true,
			OrderID:   &id,
			Unrouted:  existing[i].AssignedStoreID == nil,
		})
	}

	return report.BuildSplitReport(report.SplitMeta{
		OrderID:     order.ID,
		OrderCode:   order.Code,
		Status:      string(order.Status),
		GeneratedAt: time.Now(),
	}, rows)
}
