package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// changeEvent is pushed to a user's open sockets after a successful write.
type changeEvent struct {
	Kind string      `json:"kind"` // meal.logged | meal.updated | meal.deleted | profile.updated
	Data interface{} `json:"data"`
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 16
)

// wsClient is one open socket. Only writePump writes to conn; everyone else
// queues on send.
type wsClient struct {
	userID int
	conn   *websocket.Conn
	send   chan []byte
}

func newWSClient(userID int, conn *websocket.Conn) *wsClient {
	return &wsClient{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
}

// writePump drains send and pings until send is closed or a write fails.
// It owns closing conn.
func (c *wsClient) writePump() {
	t := time.NewTicker(pingPeriod)
	defer func() {
		t.Stop()
		_ = c.conn.Close()
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
		case <-t.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// realtimeHub fans change events out to every socket a user has open.
type realtimeHub struct {
	mu      sync.RWMutex
	clients map[int]map[*wsClient]struct{}
	log     *zap.Logger
}

func newRealtimeHub(log *zap.Logger) *realtimeHub {
	return &realtimeHub{
		clients: make(map[int]map[*wsClient]struct{}),
		log:     log.With(zap.String("component", "realtimeHub")),
	}
}

func (h *realtimeHub) register(c *wsClient) {
	h.mu.Lock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*wsClient]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.mu.Unlock()
}

// unregister removes c and closes its send queue. Safe to call twice.
func (h *realtimeHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// publish queues ev on userID's sockets without blocking. A client whose
// queue is full is dropped.
func (h *realtimeHub) publish(userID int, ev changeEvent) {
	if h == nil {
		return
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", zap.String("kind", ev.Kind), zap.Error(err))
		return
	}

	var slow []*wsClient
	h.mu.RLock()
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow socket", zap.Int("user_id", userID))
		h.unregister(c)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamChanges upgrades to a websocket and streams the caller's change events.
// GET /api/ws.
func (h *Handler) streamChanges(c *gin.Context) {
	userID := c.GetInt("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	cl := newWSClient(userID, conn)
	h.hub.register(cl)
	go cl.writePump()

	// Read loop ends on client close, or when writePump closes conn.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.hub.unregister(cl)
			return
		}
	}
}
