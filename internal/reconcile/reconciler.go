// Package reconcile keeps a local view of split orders and their divisions
// consistent with storage. Change feed events only say which row moved; the
// row itself is always refetched, and a periodic full refetch repairs
// anything the feed dropped.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/aggregate"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/repository"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/service"
	"github.com/ikkim/udonggeum-fulfillment/internal/changefeed"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
)

// State connection state of one relation subscription
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateLive         State = "live"
	StateDegraded     State = "degraded"
)

type Config struct {
	ReconnectBackoff time.Duration
	MaxBackoff       time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = time.Second
	}
	if c.MaxBackoff < c.ReconnectBackoff {
		c.MaxBackoff = 30 * time.Second
		if c.MaxBackoff < c.ReconnectBackoff {
			c.MaxBackoff = c.ReconnectBackoff
		}
	}
	return c
}

// flight per-parent recompute in progress; rerun is set when another trigger
// arrives while it runs
type flight struct {
	rerun bool
}

type Reconciler struct {
	orders     repository.OrderRepository
	completion service.CompletionService
	feed       changefeed.Subscriber
	cfg        Config

	mu        sync.RWMutex
	states    map[string]State
	rows      map[uint]model.Order
	summaries map[uint]aggregate.Summary

	flightMu sync.Mutex
	flights  map[uint]*flight

	staleDropped atomic.Int64
}

func New(
	orders repository.OrderRepository,
	completion service.CompletionService,
	feed changefeed.Subscriber,
	cfg Config,
) *Reconciler {
	return &Reconciler{
		orders:     orders,
		completion: completion,
		feed:       feed,
		cfg:        cfg.withDefaults(),
		states: map[string]State{
			changefeed.RelationOrders:    StateDisconnected,
			changefeed.RelationDivisions: StateDisconnected,
		},
		rows:      make(map[uint]model.Order),
		summaries: make(map[uint]aggregate.Summary),
		flights:   make(map[uint]*flight),
	}
}

// Run watches both relations until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, relation := range []string{changefeed.RelationOrders, changefeed.RelationDivisions} {
		wg.Add(1)
		go func(relation string) {
			defer wg.Done()
			r.Watch(ctx, relation)
		}(relation)
	}
	wg.Wait()
}

// Watch subscribes to one relation and reconnects with exponential backoff
// whenever the subscription fails or drops. The cache keeps serving while
// degraded.
func (r *Reconciler) Watch(ctx context.Context, relation string) {
	backoff := r.cfg.ReconnectBackoff
	for {
		r.setState(relation, StateConnecting)

		events, err := r.feed.Subscribe(ctx, relation)
		if err != nil {
			if ctx.Err() != nil {
				r.setState(relation, StateDisconnected)
				return
			}
			r.setState(relation, StateDegraded)
			logger.Warn("Change feed subscription failed", map[string]interface{}{
				"relation": relation,
				"retry_in": backoff.String(),
				"error":    err.Error(),
			})
		} else {
			r.setState(relation, StateLive)
			backoff = r.cfg.ReconnectBackoff
			r.consume(ctx, relation, events)

			if ctx.Err() != nil {
				r.setState(relation, StateDisconnected)
				return
			}
			r.setState(relation, StateDegraded)
			logger.Warn("Change feed subscription dropped", map[string]interface{}{
				"relation": relation,
				"retry_in": backoff.String(),
			})
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.setState(relation, StateDisconnected)
			return
		case <-timer.C:
		}

		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}
}

func (r *Reconciler) consume(ctx context.Context, relation string, events <-chan changefeed.Event) {
	for event := range events {
		if err := r.HandleEvent(ctx, event); err != nil && !errors.Is(err, service.ErrStaleWriteIgnored) {
			logger.Warn("Failed to apply change event", map[string]interface{}{
				"relation": relation,
				"order_id": event.ID,
				"type":     event.Type,
				"error":    err.Error(),
			})
		}
	}
}

// HandleEvent refetches the changed row, replaces the cached copy, and
// recomputes the aggregate of the affected parent only. A refetched division
// whose store response is older than the cached one is dropped with
// service.ErrStaleWriteIgnored.
func (r *Reconciler) HandleEvent(ctx context.Context, event changefeed.Event) error {
	if event.Type == changefeed.EventDelete {
		parentID, ok := r.evict(event.ID, event.ParentID)
		if ok {
			r.recompute(ctx, parentID)
		}
		return nil
	}

	row, err := r.orders.FindByIDUnscoped(ctx, event.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			parentID, ok := r.evict(event.ID, event.ParentID)
			if ok {
				r.recompute(ctx, parentID)
			}
			return nil
		}
		return fmt.Errorf("failed to refetch order %d: %w", event.ID, err)
	}

	// 분할 주문이 삭제되면 캐시에서도 제거
	if row.IsDivision() && row.DeletedAt.Valid {
		parentID, ok := service.ParentID(ctx, r.orders, row)
		r.evict(row.ID, nil)
		if ok {
			r.recompute(ctx, parentID)
		}
		return nil
	}

	if !r.store(row) {
		r.staleDropped.Add(1)
		logger.Debug("Dropped stale division refetch", map[string]interface{}{
			"order_id": row.ID,
		})
		return service.ErrStaleWriteIgnored
	}

	if parentID, ok := r.affectedParent(ctx, row); ok {
		r.recompute(ctx, parentID)
	}
	return nil
}

// Refetch reloads every split parent whose aggregate can still change, plus
// its divisions, and recomputes each one. It runs regardless of feed state.
func (r *Reconciler) Refetch(ctx context.Context) (int, error) {
	ids, err := r.orders.FindActiveSplitParentIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active split parents: %w", err)
	}

	refreshed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}

		parent, err := r.orders.FindByIDUnscoped(ctx, id)
		if err != nil {
			logger.Warn("Failed to refetch split parent", map[string]interface{}{
				"parent_order_id": id,
				"error":           err.Error(),
			})
			continue
		}
		divisions, err := r.orders.FindDivisions(ctx, parent)
		if err != nil {
			logger.Warn("Failed to refetch divisions", map[string]interface{}{
				"parent_order_id": id,
				"error":           err.Error(),
			})
			continue
		}

		r.replace(parent, divisions)
		r.recompute(ctx, id)
		refreshed++
	}

	logger.Debug("Split parents refetched", map[string]interface{}{
		"count": refreshed,
	})
	return refreshed, nil
}

func (r *Reconciler) affectedParent(ctx context.Context, row *model.Order) (uint, bool) {
	if row.IsDivision() {
		return service.ParentID(ctx, r.orders, row)
	}
	switch row.Status {
	case model.OrderStatusSplitting, model.OrderStatusSplitFailed:
		return row.ID, true
	}
	return 0, false
}

// recompute runs at most one Recompute per parent at a time; triggers that
// arrive meanwhile collapse into a single rerun.
func (r *Reconciler) recompute(ctx context.Context, parentID uint) {
	r.flightMu.Lock()
	if f, ok := r.flights[parentID]; ok {
		f.rerun = true
		r.flightMu.Unlock()
		return
	}
	f := &flight{}
	r.flights[parentID] = f
	r.flightMu.Unlock()

	for {
		summary, err := r.completion.Recompute(ctx, parentID)
		switch {
		case err == nil:
			r.mu.Lock()
			r.summaries[parentID] = *summary
			r.mu.Unlock()
		case errors.Is(err, service.ErrAggregationInputMissing) && summary != nil:
			r.mu.Lock()
			r.summaries[parentID] = *summary
			r.mu.Unlock()
		default:
			logger.Warn("Failed to recompute aggregate", map[string]interface{}{
				"parent_order_id": parentID,
				"error":           err.Error(),
			})
		}

		r.flightMu.Lock()
		if !f.rerun {
			delete(r.flights, parentID)
			r.flightMu.Unlock()
			return
		}
		f.rerun = false
		r.flightMu.Unlock()
	}
}

// store replaces the cached row. Returns false when the row is a division
// whose store response predates the cached one.
func (r *Reconciler) store(row *model.Order) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.rows[row.ID]; ok && row.IsDivision() {
		if cached.StoreResponseAt != nil && row.StoreResponseAt != nil &&
			row.StoreResponseAt.Before(*cached.StoreResponseAt) {
			return false
		}
	}
	r.rows[row.ID] = *row
	return true
}

// replace swaps in the refetched parent and its divisions; cached divisions
// of that parent missing from the refetch are evicted.
func (r *Reconciler) replace(parent *model.Order, divisions []model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := make(map[uint]bool, len(divisions))
	for _, d := range divisions {
		current[d.ID] = true
	}
	for id, row := range r.rows {
		if row.ParentOrderID != nil && *row.ParentOrderID == parent.ID && !current[id] {
			delete(r.rows, id)
		}
	}

	r.rows[parent.ID] = *parent
	for _, d := range divisions {
		r.rows[d.ID] = d
	}
}

func (r *Reconciler) evict(id uint, parentHint *uint) (uint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cached, ok := r.rows[id]
	delete(r.rows, id)
	delete(r.summaries, id)

	if parentHint != nil {
		return *parentHint, true
	}
	if ok && cached.ParentOrderID != nil {
		return *cached.ParentOrderID, true
	}
	return 0, false
}

func (r *Reconciler) setState(relation string, state State) {
	r.mu.Lock()
	prev := r.states[relation]
	r.states[relation] = state
	r.mu.Unlock()

	if prev != state {
		logger.Info("Change feed state changed", map[string]interface{}{
			"relation": relation,
			"from":     prev,
			"to":       state,
		})
	}
}

func (r *Reconciler) State(relation string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if state, ok := r.states[relation]; ok {
		return state
	}
	return StateDisconnected
}

// CachedOrder last refetched copy of an order or division row
func (r *Reconciler) CachedOrder(id uint) (model.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	return row, ok
}

// CachedSummary last computed aggregate for a split parent
func (r *Reconciler) CachedSummary(parentID uint) (aggregate.Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summary, ok := r.summaries[parentID]
	return summary, ok
}

func (r *Reconciler) StaleDropped() int64 {
	return r.staleDropped.Load()
}
