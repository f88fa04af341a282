// Package ws holds the process-local registry of live notification
// connections. At most one connection per user id is tracked; a new
// registration replaces the old one. Nothing here is durable: the map
// starts empty on every process start and clients are expected to
// reconnect.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 5 * time.Second
	queueSize = 256
)

// NotificationPayload is the wire format pushed per notification.
type NotificationPayload struct {
	Message     string `json:"message"`
	UnreadCount int64  `json:"unread_count"`
}

// Conn is the subset of *websocket.Conn the hub needs. Tests register
// in-memory fakes through it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	id   uuid.UUID
	conn Conn
}

type pushJob struct {
	userID uint
	data   []byte
}

// Hub routes dispatcher pushes to the right connection. Writes go
// through a bounded queue and a single worker, so a slow or broken
// peer never stalls the write path that produced the notification.
type Hub struct {
	mu      sync.Mutex
	clients map[uint]*client
	queue   chan pushJob
	done    chan struct{}
	closed  bool
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	h := &Hub{
		clients: make(map[uint]*client),
		queue:   make(chan pushJob, queueSize),
		done:    make(chan struct{}),
		log:     log,
	}
	go h.worker()
	return h
}

// Register tracks conn as the user's live connection, replacing (and
// closing) any previous one. The returned id identifies this
// registration for Unregister.
func (h *Hub) Register(userID uint, conn Conn) uuid.UUID {
	id := uuid.New()

	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = &client{id: id, conn: conn}
	h.mu.Unlock()

	if prev != nil {
		_ = prev.conn.Close()
	}
	return id
}

// Unregister removes the user's entry, but only if it still belongs to
// the given registration. A connection that was already replaced must
// not tear down its successor on disconnect.
func (h *Hub) Unregister(userID uint, id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[userID]; ok && c.id == id {
		delete(h.clients, userID)
	}
}

// Push queues a best-effort delivery to the user's connection, if any.
// It never blocks and never reports transport errors to the caller.
func (h *Hub) Push(userID uint, payload NotificationPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal push payload", zap.Error(err))
		return
	}

	select {
	case h.queue <- pushJob{userID: userID, data: data}:
	default:
		h.log.Warn("push queue full, dropping delivery", zap.Uint("user_id", userID))
	}
}

// Connected reports whether the user currently has a live connection.
func (h *Hub) Connected(userID uint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[userID]
	return ok
}

// Close stops the delivery worker and drops all connections.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[uint]*client)
	h.mu.Unlock()

	close(h.done)
	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) worker() {
	for {
		select {
		case job := <-h.queue:
			h.deliver(job)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) deliver(job pushJob) {
	h.mu.Lock()
	c, ok := h.clients[job.userID]
	h.mu.Unlock()
	if !ok {
		// No live connection: silent no-op, the notification row is
		// already persisted.
		return
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, job.data); err != nil {
		// Transport failure counts as a disconnect.
		h.log.Info("push failed, dropping connection",
			zap.Uint("user_id", job.userID), zap.Error(err))
		h.Unregister(job.userID, c.id)
		_ = c.conn.Close()
	}
}
