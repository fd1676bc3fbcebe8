package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
)

const AdminTopic = "admin"

func OrderTopic(orderID uint) string { return fmt.Sprintf("order:%d", orderID) }
func VendorTopic(storeID uint) string { return fmt.Sprintf("vendor:%d", storeID) }
func CustomerTopic(userID uint) string { return fmt.Sprintf("customer:%d", userID) }

// Message 클라이언트로 전송되는 메시지
type Message struct {
	Type  string      `json:"type"` // aggregate_updated, notification
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
}

// ClientMessage 클라이언트로부터 받은 메시지
type ClientMessage struct {
	Type  string `json:"type"` // subscribe, unsubscribe
	Topic string `json:"topic"`
}

// Client WebSocket 클라이언트
type Client struct {
	Hub    *Hub
	Conn   *Conn
	UserID uint
	Role   string
	Send   chan []byte
	topics map[string]bool // 현재 구독 중인 토픽
	mu     sync.RWMutex
	rate   rateWindow
}

func NewClient(hub *Hub, conn *Conn, userID uint, role string) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Role:   role,
		Send:   make(chan []byte, 256),
		topics: make(map[string]bool),
		rate:   rateWindow{start: time.Now()},
	}
}

// Authorizer 클라이언트가 토픽을 구독할 수 있는지 판단
type Authorizer func(client *Client, topic string) bool

// Hub WebSocket 연결 관리자
type Hub struct {
	// 등록된 클라이언트
	clients map[*Client]bool

	// 토픽별 구독자
	topics map[string]map[*Client]bool

	unregister chan *Client
	broadcast  chan *BroadcastMessage

	authorize Authorizer

	mu sync.RWMutex
}

// BroadcastMessage 브로드캐스트 메시지
type BroadcastMessage struct {
	Topic   string
	Message []byte
}

// NewHub Hub 생성
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		topics:     make(map[string]map[*Client]bool),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *BroadcastMessage, 1024),
	}
}

// SetAuthorizer 클라이언트 메시지로 들어온 구독 요청 검사기 (nil이면 모두 거부)
func (h *Hub) SetAuthorizer(authorize Authorizer) {
	h.mu.Lock()
	h.authorize = authorize
	h.mu.Unlock()
}

// Run Hub 실행 (ctx 종료 시 모든 연결 정리)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			logger.Info("WebSocket client unregistered", map[string]interface{}{
				"user_id": client.UserID,
			})

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.topics[message.Topic] {
				select {
				case client.Send <- message.Message:
				default:
					// Send 채널이 막혀있음 - 비동기로 정리
					go h.Unregister(client)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"user_id": client.UserID,
						"topic":   message.Topic,
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)

	client.mu.Lock()
	for topic := range client.topics {
		if subs, ok := h.topics[topic]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	client.topics = make(map[string]bool)
	client.mu.Unlock()

	close(client.Send)
}

// Subscribe 토픽 구독 (권한 확인은 호출자 책임). 등록되지 않은 클라이언트는 무시.
func (h *Hub) Subscribe(client *Client, topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return false
	}
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true

	client.mu.Lock()
	client.topics[topic] = true
	client.mu.Unlock()
	return true
}

// Unsubscribe 토픽 구독 해제
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}

	client.mu.Lock()
	delete(client.topics, topic)
	client.mu.Unlock()
}

// Publish 토픽 구독자 전체에 메시지 전송 (버퍼가 가득 차면 버림)
func (h *Hub) Publish(topic, messageType string, data interface{}) error {
	payload, err := json.Marshal(Message{Type: messageType, Topic: topic, Data: data})
	if err != nil {
		logger.Error("Failed to marshal message", err, nil)
		return err
	}

	select {
	case h.broadcast <- &BroadcastMessage{Topic: topic, Message: payload}:
	default:
		logger.Warn("Broadcast channel full, message dropped", map[string]interface{}{
			"topic": topic,
		})
	}
	return nil
}

// Register 클라이언트 등록 (즉시 반영되어 바로 구독 가능)
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	logger.Info("WebSocket client registered", map[string]interface{}{
		"user_id":       client.UserID,
		"total_clients": total,
	})
}

// Unregister 클라이언트 등록 해제
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SubscriberCount 토픽 구독자 수
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// HandleClientMessage 클라이언트 메시지 처리
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	count, ok := client.rate.allow(time.Now())
	if !ok {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"user_id": client.UserID,
			"count":   count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}

	switch msg.Type {
	case "subscribe":
		h.mu.RLock()
		authorize := h.authorize
		h.mu.RUnlock()

		if authorize == nil || !authorize(client, msg.Topic) {
			logger.Warn("Topic subscription denied", map[string]interface{}{
				"user_id": client.UserID,
				"topic":   msg.Topic,
			})
			return
		}
		h.Subscribe(client, msg.Topic)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topic)
	}
}
