package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/repository"
	"github.com/ikkim/udonggeum-fulfillment/internal/db"
	"github.com/ikkim/udonggeum-fulfillment/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingForwarder struct {
	err       error
	forwarded []model.Notification
}

func (f *recordingForwarder) Forward(_ context.Context, notification *model.Notification) error {
	f.forwarded = append(f.forwarded, *notification)
	return f.err
}

func setupNotificationService(t *testing.T, hub *websocket.Hub, forwarders ...Forwarder) (NotificationService, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return NewNotificationService(repository.NewNotificationRepository(testDB), hub, forwarders...), testDB
}

func TestNotificationService_Notify_PersistsAndForwards(t *testing.T) {
	forwarder := &recordingForwarder{}
	svc, testDB := setupNotificationService(t, nil, forwarder)
	ctx := context.Background()

	orderID := uint(42)
	err := svc.Notify(ctx, Notice{
		RecipientType: model.RecipientVendor,
		RecipientID:   3,
		Event:         model.EventDivisionAssigned,
		OrderID:       &orderID,
		Data:          map[string]interface{}{"code": "ORD-1-01"},
	})
	require.NoError(t, err)

	var stored model.Notification
	require.NoError(t, testDB.First(&stored).Error)
	assert.Equal(t, model.RecipientVendor, stored.RecipientType)
	assert.Equal(t, uint(3), stored.RecipientID)
	assert.Equal(t, model.EventDivisionAssigned, stored.Event)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, orderID, *stored.OrderID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(stored.Payload, &payload))
	assert.Equal(t, "ORD-1-01", payload["code"])

	require.Len(t, forwarder.forwarded, 1)
	assert.Equal(t, stored.ID, forwarder.forwarded[0].ID)
}

func TestNotificationService_Notify_ForwardFailureIsNotFatal(t *testing.T) {
	broken := &recordingForwarder{err: errors.New("queue unreachable")}
	healthy := &recordingForwarder{}
	svc, testDB := setupNotificationService(t, nil, broken, healthy)

	err := svc.Notify(context.Background(), Notice{
		RecipientType: model.RecipientAdmin,
		Event:         model.EventSplitFailed,
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, testDB.Model(&model.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Len(t, broken.forwarded, 1)
	assert.Len(t, healthy.forwarded, 1)
}

func TestNotificationService_Notify_PushesToRecipientTopic(t *testing.T) {
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	svc, _ := setupNotificationService(t, hub)

	seller := websocket.NewClient(hub, nil, jongnoOwnerID, string(model.RoleSeller))
	hub.Register(seller)
	require.True(t, hub.Subscribe(seller, websocket.VendorTopic(5)))

	require.NoError(t, svc.Notify(context.Background(), Notice{
		RecipientType: model.RecipientVendor,
		RecipientID:   5,
		Event:         model.EventDivisionResponseReminder,
	}))

	select {
	case raw := <-seller.Send:
		var msg websocket.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "notification", msg.Type)
		assert.Equal(t, websocket.VendorTopic(5), msg.Topic)
	case <-time.After(time.Second):
		t.Fatal("notification was not pushed")
	}
}

func TestNotificationService_ListAndMarkAsRead(t *testing.T) {
	svc, _ := setupNotificationService(t, nil)
	ctx := context.Background()

	for _, event := range []model.NotificationEvent{model.EventDivisionsComplete, model.EventDivisionsDelivered} {
		require.NoError(t, svc.Notify(ctx, Notice{
			RecipientType: model.RecipientCustomer,
			RecipientID:   customerID,
			Event:         event,
		}))
	}

	all, err := svc.List(ctx, model.RecipientCustomer, customerID, false, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, svc.MarkAsRead(ctx, all[0].ID, model.RecipientCustomer, customerID))

	unread, err := svc.List(ctx, model.RecipientCustomer, customerID, true, 10)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	// 다른 사용자의 알림은 읽음 처리 불가
	err = svc.MarkAsRead(ctx, all[1].ID, model.RecipientCustomer, customerID+1)
	assert.True(t, repository.IsNotFound(err))

	err = svc.MarkAsRead(ctx, 9999, model.RecipientCustomer, customerID)
	assert.True(t, repository.IsNotFound(err))
}
