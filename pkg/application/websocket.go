package application

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/clientdesk/pkg/composables"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

type HuberOptions struct {
	Logger      *logrus.Logger
	CheckOrigin func(r *http.Request) bool
}

// Huber fans messages out to websocket connections grouped by tenant.
type Huber interface {
	http.Handler
	Broadcast(tenantID uuid.UUID, message []byte) int
	ConnectionCount(tenantID uuid.UUID) int
	Close()
}

type connection struct {
	ws       *websocket.Conn
	tenantID uuid.UUID
	send     chan []byte
	once     sync.Once
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

type huber struct {
	upgrader websocket.Upgrader
	logger   *logrus.Entry

	mu       sync.RWMutex
	channels map[uuid.UUID]map[*connection]struct{}
}

func NewHub(opts *HuberOptions) Huber {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &huber{
		upgrader: websocket.Upgrader{
			CheckOrigin:     opts.CheckOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:   logger.WithField("component", "websocket"),
		channels: make(map[uuid.UUID]map[*connection]struct{}),
	}
}

// ServeHTTP upgrades the request and subscribes the connection to the
// tenant resolved by the upstream middleware.
func (h *huber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		http.Error(w, "tenant is required", http.StatusBadRequest)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("failed to upgrade websocket")
		return
	}
	conn := &connection{
		ws:       ws,
		tenantID: tenantID,
		send:     make(chan []byte, sendBufferSize),
	}
	h.join(conn)
	go h.writePump(conn)
	h.readPump(conn)
}

func (h *huber) join(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[conn.tenantID]
	if !ok {
		set = make(map[*connection]struct{})
		h.channels[conn.tenantID] = set
	}
	set[conn] = struct{}{}
}

func (h *huber) leave(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[conn.tenantID]
	if !ok {
		return
	}
	if _, ok := set[conn]; !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.channels, conn.tenantID)
	}
	conn.close()
}

// readPump drains client frames so control messages are processed.
func (h *huber) readPump(conn *connection) {
	defer func() {
		h.leave(conn)
		_ = conn.ws.Close()
	}()
	conn.ws.SetReadLimit(512)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *huber) writePump(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues message for every connection of the tenant and returns the
// number of connections it reached. Connections with a full buffer are dropped.
func (h *huber) Broadcast(tenantID uuid.UUID, message []byte) int {
	h.mu.RLock()
	var slow []*connection
	sent := 0
	for conn := range h.channels[tenantID] {
		select {
		case conn.send <- message:
			sent++
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range slow {
		h.logger.WithField("tenant_id", tenantID).Warn("dropping slow websocket consumer")
		h.leave(conn)
	}
	return sent
}

func (h *huber) ConnectionCount(tenantID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[tenantID])
}

func (h *huber) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for tenantID, set := range h.channels {
		for conn := range set {
			conn.close()
		}
		delete(h.channels, tenantID)
	}
}
