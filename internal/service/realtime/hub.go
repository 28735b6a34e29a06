// Package realtime 把变更流推给在线的看板连接。
// 推送不保证送达，断线的看板靠轮询读模型追上。
package realtime

import (
	"context"
	"encoding/json"

	"ordercore/internal/pkg/feed"
	"ordercore/internal/pkg/logger"
	"ordercore/internal/pkg/metrics"
)

// Hub 维护所有活跃连接。同一用户可以有多个连接（多个标签页）。
// 所有状态只在 Run 的 goroutine 里修改。
type Hub struct {
	clients    map[string]map[*Client]struct{}
	admins     map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan feed.Envelope
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		admins:     make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan feed.Envelope, 256),
	}
}

// Run 处理注册、注销和投递，直到 ctx 结束。
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case c := <-h.register:
			if h.clients[c.userID] == nil {
				h.clients[c.userID] = make(map[*Client]struct{})
			}
			h.clients[c.userID][c] = struct{}{}
			if c.admin {
				h.admins[c] = struct{}{}
			}
			metrics.FeedConnections.Inc()
			logger.Ctx(ctx).Debug().Str("user_id", c.userID).Bool("admin", c.admin).Msg("feed client registered")
		case c := <-h.unregister:
			h.remove(c)
		case env := <-h.broadcast:
			h.deliver(ctx, env)
		}
	}
}

// Publish 把一条消息交给 Run 投递。ctx 结束时放弃。
func (h *Hub) Publish(ctx context.Context, env feed.Envelope) {
	select {
	case h.broadcast <- env:
	case <-ctx.Done():
	}
}

func (h *Hub) deliver(ctx context.Context, env feed.Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("key", env.Key).Msg("failed to encode feed message")
		return
	}
	targets := make(map[*Client]struct{})
	for _, id := range env.UserIDs {
		for c := range h.clients[id] {
			targets[c] = struct{}{}
		}
	}
	if env.Admins {
		for c := range h.admins {
			targets[c] = struct{}{}
		}
	}
	for c := range targets {
		select {
		case c.send <- body:
		default:
			// 写不动的连接直接断开，客户端重连后重新轮询
			logger.Ctx(ctx).Warn().Str("user_id", c.userID).Msg("feed client too slow, dropping connection")
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *Client) {
	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	delete(h.admins, c)
	close(c.send)
	metrics.FeedConnections.Dec()
}

func (h *Hub) closeAll() {
	for _, conns := range h.clients {
		for c := range conns {
			h.remove(c)
		}
	}
}
