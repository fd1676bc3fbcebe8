package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // pongWait보다 짧아야 함

	// 클라이언트는 구독/해제 요청만 보냄
	maxMessageSize       = 4 * 1024
	maxMessagesPerSecond = 10
)

// Conn gorilla 연결 래퍼
type Conn struct {
	*websocket.Conn
}

func (c *Conn) write(messageType int, payload []byte) error {
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(messageType, payload)
}

// rateWindow 1초 단위 고정 윈도우 카운터
type rateWindow struct {
	mu    sync.Mutex
	start time.Time
	count int
}

func (w *rateWindow) allow(now time.Time) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now.Sub(w.start) >= time.Second {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.count, w.count <= maxMessagesPerSecond
}

// ReadPump 구독 요청을 읽어 Hub로 전달 (연결 종료 시 등록 해제)
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error", err, map[string]interface{}{
					"user_id": c.UserID,
				})
			}
			return
		}
		c.Hub.HandleClientMessage(c, message)
	}
}

// WritePump Send 채널의 메시지와 ping 전송
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				// Hub가 채널을 닫음
				c.Conn.write(websocket.CloseMessage, []byte{})
				return
			}
			if !c.flush(message) {
				return
			}

		case <-ticker.C:
			if err := c.Conn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush first와 이미 대기 중인 메시지를 순서대로 전송
func (c *Client) flush(first []byte) bool {
	pending := len(c.Send)
	message := first
	for i := 0; ; i++ {
		if err := c.Conn.write(websocket.TextMessage, message); err != nil {
			logger.Error("Failed to write message", err, map[string]interface{}{
				"user_id": c.UserID,
				"pending": pending - i,
			})
			return false
		}
		if i == pending {
			return true
		}
		next, ok := <-c.Send
		if !ok {
			return false
		}
		message = next
	}
}
