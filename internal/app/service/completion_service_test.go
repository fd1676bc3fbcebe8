package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) splitOrder(t *testing.T) (*model.Order, []model.Order) {
	t.Helper()
	order := f.createOrder(t,
		item("Ring", "Jongno Gold", 100, 1),
		item("Cup", "Busan Silver", 20, 1),
	)
	result, err := f.divisions.Route(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, RouteModeSplit, result.Mode)

	divisions := f.divisionsOf(t, order.ID)
	require.Len(t, divisions, 2)
	return order, divisions
}

func (f *fixture) setDivision(t *testing.T, id uint, updates map[string]interface{}) {
	t.Helper()
	require.NoError(t, f.db.Model(&model.Order{}).Where("id = ?", id).Updates(updates).Error)
}

func TestCompletionService_Recompute_IsIdempotent(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	parent, divisions := f.splitOrder(t)

	for _, d := range divisions {
		f.setDivision(t, d.ID, map[string]interface{}{
			"store_response_status": model.StoreResponseAccepted,
			"order_status":          model.OrderStatusPreparing,
		})
	}

	first, err := f.completion.Recompute(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AggregateComplete, first.Aggregate)
	stored := f.parent(t, parent.ID)
	require.NotNil(t, stored.AggregateUpdatedAt)
	firstWrite := *stored.AggregateUpdatedAt

	second, err := f.completion.Recompute(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored = f.parent(t, parent.ID)
	assert.Equal(t, model.AggregateComplete, stored.AggregateStatus)
	assert.True(t, firstWrite.Equal(*stored.AggregateUpdatedAt), "unchanged aggregate must not be rewritten")

	assert.Equal(t, int64(1), f.countNotifications(t, model.RecipientCustomer, model.EventDivisionsComplete))
	assert.Equal(t, int64(1), f.countNotifications(t, model.RecipientAdmin, model.EventDivisionsComplete))
}

func TestCompletionService_Recompute_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		first    map[string]interface{}
		second   map[string]interface{}
		expected model.AggregateStatus
		event    model.NotificationEvent
	}{
		{
			name:     "all delivered",
			first:    map[string]interface{}{"order_status": model.OrderStatusDelivered},
			second:   map[string]interface{}{"order_status": model.OrderStatusDelivered, "store_response_status": model.StoreResponseRejected},
			expected: model.AggregateDelivered,
			event:    model.EventDivisionsDelivered,
		},
		{
			name:     "available and pending",
			first:    map[string]interface{}{"store_response_status": model.StoreResponseAvailable, "order_status": model.OrderStatusPreparing},
			second:   map[string]interface{}{"store_response_status": model.StoreResponsePending},
			expected: model.AggregateIncomplete,
		},
		{
			name:     "available and rejected",
			first:    map[string]interface{}{"store_response_status": model.StoreResponseAvailable, "order_status": model.OrderStatusPreparing},
			second:   map[string]interface{}{"store_response_status": model.StoreResponseRejected, "order_status": model.OrderStatusRejected},
			expected: model.AggregateMixed,
			event:    model.EventDivisionsMixed,
		},
		{
			name:     "all returned",
			first:    map[string]interface{}{"order_status": model.OrderStatusReturned},
			second:   map[string]interface{}{"order_status": model.OrderStatusReturned},
			expected: model.AggregateReturned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t, nil)
			parent, divisions := f.splitOrder(t)
			f.setDivision(t, divisions[0].ID, tt.first)
			f.setDivision(t, divisions[1].ID, tt.second)

			summary, err := f.completion.Recompute(context.Background(), parent.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, summary.Aggregate)
			assert.Equal(t, tt.expected, f.parent(t, parent.ID).AggregateStatus)

			if tt.event != "" {
				assert.Equal(t, int64(1), f.countNotifications(t, model.RecipientCustomer, tt.event))
			}
		})
	}
}

func TestCompletionService_Recompute_MissingDivisions(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()

	order := f.createOrder(t, item("Ring", "Jongno Gold", 100, 1))
	f.setDivision(t, order.ID, map[string]interface{}{"order_status": model.OrderStatusSplitting})

	summary, err := f.completion.Recompute(ctx, order.ID)
	assert.ErrorIs(t, err, ErrAggregationInputMissing)
	require.NotNil(t, summary)
	assert.True(t, summary.InputMissing)
	assert.Equal(t, model.AggregateEmpty, summary.Aggregate)
	assert.Equal(t, model.AggregateEmpty, f.parent(t, order.ID).AggregateStatus)
}

func TestCompletionService_Recompute_InvalidTargets(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()

	_, err := f.completion.Recompute(ctx, 404)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	plain := f.createOrder(t, item("Ring", "Jongno Gold", 100, 1))
	_, err = f.completion.Recompute(ctx, plain.ID)
	assert.ErrorIs(t, err, ErrNotSplitOrder)
	assert.Empty(t, f.parent(t, plain.ID).AggregateStatus)

	_, divisions := f.splitOrder(t)
	_, err = f.completion.Recompute(ctx, divisions[0].ID)
	assert.ErrorIs(t, err, ErrOrderIsDivision)
}

func TestCompletionService_DeliveryEligibility(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	parent, divisions := f.splitOrder(t)

	eligibility, err := f.completion.DeliveryEligibility(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, model.AggregateIncomplete, eligibility.Aggregate)

	for _, d := range divisions {
		f.setDivision(t, d.ID, map[string]interface{}{
			"store_response_status": model.StoreResponseAvailable,
			"order_status":          model.OrderStatusReady,
		})
	}
	_, err = f.completion.Recompute(ctx, parent.ID)
	require.NoError(t, err)

	eligibility, err = f.completion.DeliveryEligibility(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)

	plain := f.createOrder(t, item("Ring", "Jongno Gold", 100, 1))
	_, err = f.completion.DeliveryEligibility(ctx, plain.ID)
	assert.ErrorIs(t, err, ErrNotSplitOrder)
}

func TestCompletionService_Summary_DoesNotWrite(t *testing.T) {
	f := setupFixture(t, nil)
	parent, divisions := f.splitOrder(t)

	f.setDivision(t, divisions[1].ID, map[string]interface{}{
		"store_response_status": model.StoreResponseRejected,
		"order_status":          model.OrderStatusRejected,
		"rejection_reason":      "out of stock",
	})

	summary, err := f.completion.Summary(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 120.0, summary.TotalAmount)
	require.Len(t, summary.Divisions, 2)
	assert.Equal(t, model.DivisionStatusAssigned, summary.Divisions[0].Status)
	assert.Equal(t, model.DivisionStatusRejected, summary.Divisions[1].Status)
	assert.Equal(t, "out of stock", summary.Divisions[1].RejectionReason)

	// 저장된 집계는 분할 직후 값 그대로
	assert.Equal(t, model.AggregateIncomplete, f.parent(t, parent.ID).AggregateStatus)
}

func TestCompletionService_BroadcastsAggregateChange(t *testing.T) {
	f := setupFixture(t, nil)
	parent, divisions := f.splitOrder(t)

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	watcher := websocket.NewClient(hub, nil, customerID, string(model.RoleUser))
	hub.Register(watcher)
	require.True(t, hub.Subscribe(watcher, websocket.OrderTopic(parent.ID)))

	completion := NewCompletionService(f.orders, f.notifier, hub)
	f.setDivision(t, divisions[0].ID, map[string]interface{}{"order_status": model.OrderStatusDelivered})
	f.setDivision(t, divisions[1].ID, map[string]interface{}{"order_status": model.OrderStatusDelivered})

	_, err := completion.Recompute(context.Background(), parent.ID)
	require.NoError(t, err)

	select {
	case raw := <-watcher.Send:
		var msg struct {
			Type string `json:"type"`
			Data struct {
				Aggregate model.AggregateStatus `json:"aggregate_status"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "aggregate_updated", msg.Type)
		assert.Equal(t, model.AggregateDelivered, msg.Data.Aggregate)
	case <-time.After(time.Second):
		t.Fatal("no aggregate broadcast received")
	}
}

func TestCompletionService_CanView(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	parent, divisions := f.splitOrder(t)

	ok, err := f.completion.CanView(ctx, model.Actor{UserID: customerID, Role: model.RoleUser}, parent.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.completion.CanView(ctx, model.Actor{UserID: customerID + 1, Role: model.RoleUser}, parent.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.completion.CanView(ctx, model.Actor{UserID: 1, Role: model.RoleAdmin}, 404)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.completion.CanView(ctx, model.Actor{UserID: customerID, Role: model.RoleUser}, divisions[0].ID)
	assert.ErrorIs(t, err, ErrOrderIsDivision)
}
