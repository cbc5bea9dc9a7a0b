package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tranvictor/epicgame"
)

const (
	clientBuffer = 16
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans notifications out to websocket subscribers. It implements
// epicgame.Notifier so sessions can publish to it directly.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: map[*wsClient]struct{}{}}
}

// Notify queues n for every subscriber. A subscriber whose queue is full
// misses the notification rather than blocking the action.
func (h *Hub) Notify(_ context.Context, n epicgame.Notification) {
	b, err := json.Marshal(n)
	if err != nil {
		logger.WithFields(logger.Fields{
			"notification_id": n.ID,
			"error":           err,
		}).Error("Failed to serialize notification")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			logger.WithFields(logger.Fields{
				"remote": c.conn.RemoteAddr().String(),
			}).Warn("Dropping notification for slow subscriber")
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams notifications until the peer
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithFields(logger.Fields{
			"error": err,
		}).Warn("Failed to upgrade to WebSocket")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	logger.WithFields(logger.Fields{
		"remote": conn.RemoteAddr().String(),
	}).Debug("New WebSocket subscriber")

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop only watches for the peer closing; clients never send anything
// meaningful.
func (h *Hub) readLoop(c *wsClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithFields(logger.Fields{
					"remote": c.conn.RemoteAddr().String(),
					"error":  err,
				}).Debug("WebSocket subscriber went away")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for b := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
