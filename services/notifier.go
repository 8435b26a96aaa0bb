package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxControlSize = 512
)

// ForumHint 推送给客户端的拉取提示，不携带消息内容
// 客户端收到提示后仍然通过消息列表接口拉取，轮询契约不变
type ForumHint struct {
	Type          string `json:"type"`
	ForumID       uint   `json:"forum_id"`
	LastMessageID uint   `json:"last_message_id,omitempty"`
}

// subscribeRequest 客户端订阅/退订控制消息
type subscribeRequest struct {
	Action  string `json:"action"` // subscribe 或 unsubscribe
	ForumID uint   `json:"forum_id"`
}

// NotifierClient 单个WebSocket连接
type NotifierClient struct {
	hub    *Notifier
	conn   *websocket.Conn
	send   chan []byte
	userID uint

	mu     sync.RWMutex
	forums map[uint]bool // 已订阅的论坛
}

// Notifier WebSocket提示中心
type Notifier struct {
	clients    map[*NotifierClient]bool
	register   chan *NotifierClient
	unregister chan *NotifierClient
	hints      chan ForumHint
	stop       chan struct{}

	mu sync.RWMutex // 保护clients的统计读取
}

// NewNotifier 创建提示中心
func NewNotifier() *Notifier {
	return &Notifier{
		clients:    make(map[*NotifierClient]bool),
		register:   make(chan *NotifierClient),
		unregister: make(chan *NotifierClient),
		hints:      make(chan ForumHint, 256),
		stop:       make(chan struct{}),
	}
}

// Run 运行提示中心主循环
func (n *Notifier) Run() {
	for {
		select {
		case client := <-n.register:
			n.mu.Lock()
			n.clients[client] = true
			n.mu.Unlock()

		case client := <-n.unregister:
			n.mu.Lock()
			if _, ok := n.clients[client]; ok {
				delete(n.clients, client)
				close(client.send)
			}
			n.mu.Unlock()

		case hint := <-n.hints:
			payload, err := json.Marshal(hint)
			if err != nil {
				continue
			}
			n.mu.RLock()
			for client := range n.clients {
				if !client.subscribed(hint.ForumID) {
					continue
				}
				select {
				case client.send <- payload:
				default:
					// 发送缓冲已满，丢弃提示，客户端靠下一次轮询兜底
				}
			}
			n.mu.RUnlock()

		case <-n.stop:
			n.mu.Lock()
			for client := range n.clients {
				close(client.send)
				client.conn.Close()
			}
			n.clients = make(map[*NotifierClient]bool)
			n.mu.Unlock()
			return
		}
	}
}

// Stop 停止提示中心
func (n *Notifier) Stop() {
	close(n.stop)
}

// NotifyForum 向订阅了该论坛的连接推送拉取提示
func (n *Notifier) NotifyForum(eventType string, forumID, messageID uint) {
	hint := ForumHint{
		Type:          eventType,
		ForumID:       forumID,
		LastMessageID: messageID,
	}
	select {
	case n.hints <- hint:
	default:
		// 提示队列已满，直接丢弃
	}
}

// ConnectionCount 当前连接数
func (n *Notifier) ConnectionCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.clients)
}

// HandleConnection 接管一个已升级的WebSocket连接
func (n *Notifier) HandleConnection(conn *websocket.Conn, userID uint) {
	client := &NotifierClient{
		hub:    n,
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: userID,
		forums: make(map[uint]bool),
	}

	n.register <- client

	go client.writePump()
	go client.readPump()
}

// subscribed 判断是否订阅了某论坛
func (c *NotifierClient) subscribed(forumID uint) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.forums[forumID]
}

// readPump 读取订阅控制消息
func (c *NotifierClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxControlSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket异常断开: %v", err)
			}
			return
		}

		var req subscribeRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			continue
		}

		c.mu.Lock()
		switch req.Action {
		case "subscribe":
			c.forums[req.ForumID] = true
		case "unsubscribe":
			delete(c.forums, req.ForumID)
		}
		c.mu.Unlock()
	}
}

// writePump 发送提示和心跳
func (c *NotifierClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
