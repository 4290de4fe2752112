package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type hubClient struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub fans watch-status changes out to each user's connected event streams.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[string]*hubClient
	closed  bool
	logger  *log.Logger
}

// NewHub creates an empty [Hub].
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Hub{clients: make(map[string]map[string]*hubClient), logger: logger}
}

// Clients reports how many streams userID has open.
func (h *Hub) Clients(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

// Publish sends event to the user's streams. Clients whose buffer is full are dropped.
func (h *Hub) Publish(event models.StatusEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode status event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients[event.UserID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("event stream send buffer full, removing", "client", id)
			h.removeLocked(c)
		}
	}
}

// ServeWS upgrades the request and streams events for the {userId} path segment.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &hubClient{
		id:     shared.GenerateID(),
		userID: r.PathValue("userId"),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[string]*hubClient)
	}
	h.clients[c.userID][c.id] = c
	h.mu.Unlock()
	h.logger.Debug("event stream connected", "user", c.userID, "client", c.id)

	go h.writePump(c)
	go h.readPump(c)
}

// Close ends every open stream and refuses new ones. The write pumps send a close
// frame before dropping their connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true

	n := 0
	for _, byID := range h.clients {
		for _, c := range byID {
			h.removeLocked(c)
			n++
		}
	}
	h.logger.Debug("event hub closed", "streams", n)
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *hubClient) {
	byID, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := byID[c.id]; !ok {
		return
	}
	delete(byID, c.id)
	if len(byID) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *hubClient) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("event stream error", "client", c.id, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
