package api

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jiin/lookout/internal/logger"
	"github.com/jiin/lookout/internal/models"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsSendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// wsMessage is the envelope pushed to stream clients.
type wsMessage struct {
	Type    string                 `json:"type"` // status, summary, snapshot
	Status  *models.DisplayUpdate  `json:"status,omitempty"`
	Summary *models.Summary        `json:"summary,omitempty"`
	All     []models.DisplayUpdate `json:"all,omitempty"`
}

// Hub fans monitor updates out to connected websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsMessage
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// BroadcastStatus pushes one target update to all clients.
func (h *Hub) BroadcastStatus(update models.DisplayUpdate) {
	h.broadcast(wsMessage{Type: "status", Status: &update})
}

// BroadcastSummary pushes a rollup to all clients.
func (h *Hub) BroadcastSummary(summary models.Summary) {
	h.broadcast(wsMessage{Type: "summary", Summary: &summary})
}

func (h *Hub) broadcast(msg wsMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Slow client, drop it rather than block the monitor
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) add(client *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[client] = struct{}{}
	return true
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// StreamHandler upgrades the request and serves the live update stream.
// The full current state goes out first so clients need no separate
// snapshot fetch.
func (h *Handler) StreamHandler(hub *Hub, limiter *ConnectionLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.Acquire(clientIP) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many concurrent connections"})
			return
		}
		defer limiter.Release(clientIP)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := &wsClient{conn: conn, send: make(chan wsMessage, wsSendBuffer)}
		if !hub.add(client) {
			return
		}
		defer hub.remove(client)

		summary := h.mon.Summary()
		snapshot := wsMessage{
			Type:    "snapshot",
			All:     h.mon.Statuses(),
			Summary: &summary,
		}
		if err := writePayload(conn, snapshot); err != nil {
			return
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-client.send:
				if !ok {
					return
				}
				if err := writePayload(conn, msg); err != nil {
					logger.Debug("Websocket write failed", "error", err)
					return
				}
			case <-done:
				return
			}
		}
	}
}

func writePayload(conn *websocket.Conn, msg wsMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(msg)
}
