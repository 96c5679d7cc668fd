package websocket

import (
	"encoding/json"
	"sync"

	"github.com/mautops/taskqueue-gin/internal/metrics"
	"github.com/mautops/taskqueue-gin/internal/types"
	"github.com/sirupsen/logrus"
)

// Hub 管理所有 WebSocket 连接
type Hub struct {
	// 已注册的客户端
	clients map[*Client]bool

	// 广播消息到所有客户端
	broadcast chan []byte

	// 注册新客户端
	Register chan *Client

	// 注销客户端
	Unregister chan *Client

	// 互斥锁，保护 clients map
	mu sync.RWMutex
}

// NewHub 创建新的 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run 运行 Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WebSocketConnections.Set(float64(h.GetClientCount()))

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			metrics.WebSocketConnections.Set(float64(h.GetClientCount()))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast 将事件广播到所有客户端
// 实现事件处理器的 Broadcaster 接口
func (h *Hub) Broadcast(evt *types.Event) {
	message, err := json.Marshal(evt)
	if err != nil {
		logrus.WithError(err).Error("failed to marshal event for broadcast")
		return
	}

	select {
	case h.broadcast <- message:
		metrics.EventsBroadcastTotal.Inc()
	default:
		logrus.Warn("websocket broadcast channel full, dropping event")
	}
}

// GetClientCount 获取客户端数量
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
