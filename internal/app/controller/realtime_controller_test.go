package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	ws "github.com/ikkim/udonggeum-fulfillment/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) realtimeServer(t *testing.T, hub *ws.Hub, userID uint, role model.UserRole) *httptest.Server {
	t.Helper()
	ctrl := NewRealtimeController(hub, e.completion, e.statuses, nil)

	router := gin.New()
	router.Use(setActor(userID, role))
	router.GET("/ws", ctrl.Connect)
	router.GET("/ws/orders/:id", ctrl.WatchOrder)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func runHub(t *testing.T) *ws.Hub {
	t.Helper()
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestRealtimeController_WatchOrder_ReceivesTopicMessages(t *testing.T) {
	e := setupEnv(t)
	order := e.createOrder(t, "Jongno Gold", "Busan Silver")
	hub := runHub(t)
	server := e.realtimeServer(t, hub, customerID, model.RoleUser)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + fmt.Sprintf("/ws/orders/%d", order.ID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	topic := ws.OrderTopic(order.ID)
	require.Eventually(t, func() bool { return hub.SubscriberCount(topic) == 1 }, time.Second, 10*time.Millisecond)
	// 고객 본인 알림 토픽도 함께 구독
	assert.Equal(t, 1, hub.SubscriberCount(ws.CustomerTopic(customerID)))

	require.NoError(t, hub.Publish(topic, "aggregate_updated", map[string]string{"aggregate_status": "complete"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ws.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "aggregate_updated", msg.Type)
	assert.Equal(t, topic, msg.Topic)
}

func TestRealtimeController_WatchOrder_RejectsOtherCustomer(t *testing.T) {
	e := setupEnv(t)
	order := e.createOrder(t, "Jongno Gold", "Busan Silver")
	server := e.realtimeServer(t, runHub(t), customerID+1, model.RoleUser)

	resp, err := http.Get(server.URL + fmt.Sprintf("/ws/orders/%d", order.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRealtimeController_Authorize(t *testing.T) {
	e := setupEnv(t)
	order := e.createOrder(t, "Jongno Gold", "Busan Silver")
	hub := ws.NewHub()
	ctrl := NewRealtimeController(hub, e.completion, e.statuses, []string{"http://localhost:3000"})

	customer := ws.NewClient(hub, nil, customerID, string(model.RoleUser))
	seller := ws.NewClient(hub, nil, jongnoOwnerID, string(model.RoleSeller))
	admin := ws.NewClient(hub, nil, adminID, string(model.RoleAdmin))

	tests := []struct {
		name     string
		client   *ws.Client
		topic    string
		expected bool
	}{
		{"customer own order", customer, ws.OrderTopic(order.ID), true},
		{"customer own inbox", customer, ws.CustomerTopic(customerID), true},
		{"customer other inbox", customer, ws.CustomerTopic(customerID + 1), false},
		{"customer vendor topic", customer, ws.VendorTopic(e.jongno.ID), false},
		{"customer admin topic", customer, ws.AdminTopic, false},
		{"seller own store", seller, ws.VendorTopic(e.jongno.ID), true},
		{"seller other store", seller, ws.VendorTopic(e.busan.ID), false},
		{"seller customer order", seller, ws.OrderTopic(order.ID), false},
		{"malformed topic", seller, "vendor:abc", false},
		{"missing order", customer, ws.OrderTopic(404), false},
		{"admin anything", admin, ws.AdminTopic, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ctrl.Authorize(tt.client, tt.topic))
		})
	}
}
