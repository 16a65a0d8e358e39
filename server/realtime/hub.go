package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event 推送给前端的实时事件
type Event struct {
	Type      string      `json:"type"` // solve | scoreboard | log
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
}

// SolveEvent 解题事件
type SolveEvent struct {
	TeamName       string `json:"teamName"`
	ChallengeTitle string `json:"challengeTitle"`
	Points         int    `json:"points"`
	SolvedAt       string `json:"solvedAt"`
}

// Hub WebSocket 连接管理与广播
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS 升级连接并登记客户端，连接由读循环保活
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			// 客户端不发业务消息，读循环只用于感知断开
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast 向所有在线客户端推送事件，写失败的连接直接剔除
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	event := Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount 当前在线连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
