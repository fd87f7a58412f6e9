package notifications

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"restoration-portal/registry-backend/internal/registry"
)

// TransitionMessage is pushed to dashboard clients on every committed
// lifecycle transition
type TransitionMessage struct {
	ProjectID string               `json:"project_id"`
	Action    registry.AuditAction `json:"action"`
	Status    registry.Status      `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
}

type connection struct {
	id   string
	conn *websocket.Conn
	send chan TransitionMessage
}

// Hub broadcasts lifecycle transitions to connected WebSocket clients. It
// implements registry.Notifier; a slow client is dropped rather than
// allowed to block a transition.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*connection
	broadcast   chan TransitionMessage
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewHub creates a hub and starts its broadcast loop
func NewHub(logger *zap.Logger) *Hub {
	hub := &Hub{
		connections: make(map[string]*connection),
		broadcast:   make(chan TransitionMessage, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// In production, implement proper origin checking
				return true
			},
		},
		logger: logger,
	}
	go hub.run()
	return hub
}

// NotifyTransition queues a transition event for broadcast. Never blocks
// the caller: if the queue is full the event is dropped.
func (h *Hub) NotifyTransition(projectID string, action registry.AuditAction, status registry.Status) {
	msg := TransitionMessage{
		ProjectID: projectID,
		Action:    action,
		Status:    status,
		Timestamp: time.Now(),
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("notification queue full, dropping event",
			zap.String("project_id", projectID),
			zap.String("action", string(action)),
		)
	}
}

// HandleConnection upgrades an HTTP request to a WebSocket subscription
func (h *Hub) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &connection{
		id:   uuid.New().String(),
		conn: ws,
		send: make(chan TransitionMessage, 64),
	}

	h.mu.Lock()
	h.connections[conn.id] = conn
	h.mu.Unlock()

	go h.writePump(conn)
	go h.readPump(conn)
}

func (h *Hub) run() {
	for msg := range h.broadcast {
		h.mu.RLock()
		for _, conn := range h.connections {
			select {
			case conn.send <- msg:
			default:
				// Slow client; writePump will clean up on close.
			}
		}
		h.mu.RUnlock()
	}
}

func (h *Hub) writePump(conn *connection) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		h.drop(conn)
	}()

	for {
		select {
		case msg, ok := <-conn.send:
			if !ok {
				return
			}
			conn.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(conn *connection) {
	defer h.drop(conn)

	conn.conn.SetReadLimit(512)
	conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(conn *connection) {
	h.mu.Lock()
	if _, ok := h.connections[conn.id]; ok {
		delete(h.connections, conn.id)
		close(conn.send)
	}
	h.mu.Unlock()
	conn.conn.Close()
}
