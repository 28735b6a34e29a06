package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ordercore/internal/pkg/identity"
	"ordercore/internal/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 网关前面的身份层已经校验过来源
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client 是一个 WebSocket 连接。
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	admin  bool
}

// writePump 把 send 中的消息写到连接上，并定时发送 ping。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理心跳，连接断开时注销。
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-ctx.Done():
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ServeWs 把请求升级为 WebSocket。管理员连接会收到所有订单变化，其他用户只收到自己的。
func ServeWs(ctx context.Context, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.FromContext(r.Context())
		if !ok {
			http.Error(w, "sign in required", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		client := &Client{hub: hub, conn: conn, send: make(chan []byte, sendBuffer), userID: actor.UserID, admin: actor.IsAdmin()}
		select {
		case hub.register <- client:
		case <-ctx.Done():
			conn.Close()
			return
		}
		go client.writePump()
		go client.readPump(ctx)
	}
}
