package simulator

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/transport"
)

const writeDeadline = 5 * time.Second

// Hub fans push frames out to every connected websocket client. Writes
// happen inline under the lock; a client that cannot be written to is
// closed and dropped, never waited on.
type Hub struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log: log.Component("hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The simulator serves local consoles and tests only.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

// Handle upgrades an HTTP request to a websocket and registers it for
// broadcasts. Clients never send application data; the read loop exists
// to notice the peer going away.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.ErrorWithErr(err, "Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	n := len(h.conns)
	h.mu.Unlock()

	h.log.WithFields(map[string]interface{}{
		"remote_addr": r.RemoteAddr,
		"clients":     n,
	}).Info("Push client connected")

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

// BroadcastAlert pushes a realtime_alert frame to every client.
func (h *Hub) BroadcastAlert(d alert.DTO) {
	h.broadcast(transport.MessageTypeAlert, d)
}

// BroadcastHealth pushes a system_health frame to every client.
func (h *Hub) BroadcastHealth(p transport.HealthPayload) {
	h.broadcast(transport.MessageTypeHealth, p)
}

func (h *Hub) broadcast(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.ErrorWithErr(err, "Failed to marshal push payload")
		return
	}
	frame, err := json.Marshal(transport.Envelope{Type: msgType, Data: data})
	if err != nil {
		h.log.ErrorWithErr(err, "Failed to marshal push frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.log.ErrorWithErr(err, "Dropping push client after failed write")
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// DropAll severs every connection. Clients are expected to reconnect
// and resync, which is exactly what tests use it to provoke.
func (h *Hub) DropAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.conns)
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
	return n
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
