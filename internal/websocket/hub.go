package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/figurine-hub/internal/metrics"
	"github.com/wfunc/figurine-hub/internal/service"
	"go.uber.org/zap"
)

// Hub WebSocket连接管理中心，按用户推送绑定事件
type Hub struct {
	// 用户ID到客户端的映射
	userClients map[string]map[string]*Client
	mu          sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	heartbeat time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// 系统消息类型，业务事件类型见 service.Event*
const (
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"
)

var _ service.EventPublisher = (*Hub)(nil)

// NewHub 创建Hub，m 可以为 nil
func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		userClients: make(map[string]map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		heartbeat:   30 * time.Second,
		metrics:     m,
		logger:      logger,
	}
}

// Run 运行Hub，ctx 结束时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.sendAll(&Message{Type: MessageTypePing, Timestamp: time.Now().Unix()})

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.userClients[client.UserID]
	if !ok {
		clients = make(map[string]*Client)
		h.userClients[client.UserID] = clients
	}
	clients[client.ID] = client
	h.mu.Unlock()

	h.metrics.WebSocketConnected(1)
	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID))

	client.enqueue(mustMarshal(&Message{
		Type:      MessageTypeConnected,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(`{"message":"连接成功"}`),
	}))
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.userClients[client.UserID]
	if ok {
		if _, exists := clients[client.ID]; exists {
			delete(clients, client.ID)
			close(client.Send)
			h.metrics.WebSocketConnected(-1)
		} else {
			ok = false
		}
		if len(clients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	h.mu.Unlock()

	if ok {
		h.logger.Info("WebSocket客户端断开",
			zap.String("client_id", client.ID),
			zap.String("user_id", client.UserID))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.userClients {
		for _, c := range clients {
			close(c.Send)
			h.metrics.WebSocketConnected(-1)
		}
		delete(h.userClients, userID)
	}
}

// SendToUser 发送消息给指定用户的所有连接
func (h *Hub) SendToUser(userID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.userClients[userID]
	if len(clients) == 0 {
		return ErrUserNotConnected
	}
	for _, client := range clients {
		if !client.enqueue(data) {
			h.logger.Warn("用户客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.String("user_id", userID))
		}
	}
	return nil
}

func (h *Hub) sendAll(message *Message) {
	data := mustMarshal(message)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.userClients {
		for _, client := range clients {
			client.enqueue(data)
		}
	}
}

// PublishBindingEvent 将绑定事件推送给事件所属用户，用户不在线时丢弃
func (h *Hub) PublishBindingEvent(event *service.BindingEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("序列化绑定事件失败", zap.Error(err))
		return
	}

	err = h.SendToUser(event.UserID, &Message{
		Type:      event.Type,
		Data:      data,
		Timestamp: event.Timestamp.Unix(),
	})
	if err != nil && err != ErrUserNotConnected {
		h.logger.Warn("推送绑定事件失败", zap.String("type", event.Type), zap.Error(err))
	}
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.userClients {
		n += len(clients)
	}
	return n
}

// IsOnline 用户是否有在线连接
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID]) > 0
}

// Register 注册客户端，Hub 已停止时返回 false
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// sendToClient 发送给单个仍在注册中的客户端
func (h *Hub) sendToClient(client *Client, message *Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.userClients[client.UserID][client.ID]; !ok {
		return false
	}
	return client.enqueue(mustMarshal(message))
}

func mustMarshal(m *Message) []byte {
	data, _ := json.Marshal(m)
	return data
}
