package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/fleet-loads/internal/observability"
)

const writeWait = 5 * time.Second

// WSSession is one connected dashboard.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// Hub pushes state snapshots to every connected dashboard. Notify only marks
// state dirty, so it is safe to call from store and notifier listeners that
// run under their component's lock; Run coalesces bursts into one send.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	dirty    chan struct{}
	snapshot func() any
	logger   *slog.Logger
}

func NewHub(snapshot func() any, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[string]*WSSession),
		dirty:    make(chan struct{}, 1),
		snapshot: snapshot,
		logger:   logger,
	}
}

// Add registers conn and sends it the current state.
func (h *Hub) Add(conn *websocket.Conn) string {
	id := uuid.NewString()
	s := &WSSession{conn: conn}
	h.mu.Lock()
	h.sessions[id] = s
	n := len(h.sessions)
	h.mu.Unlock()
	observability.WSSessions.Set(float64(n))

	if err := s.Send(h.snapshot()); err != nil {
		h.logger.Warn("ws initial send failed", "session", id, "error", err)
		h.Remove(id)
	}
	return id
}

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	n := len(h.sessions)
	h.mu.Unlock()
	if !ok {
		return
	}
	observability.WSSessions.Set(float64(n))
	_ = s.conn.Close()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) Notify() {
	select {
	case h.dirty <- struct{}{}:
	default:
	}
}

// Run broadcasts until ctx is done, then closes every session.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.dirty:
			h.broadcast(h.snapshot())
		}
	}
}

func (h *Hub) broadcast(v any) {
	h.mu.RLock()
	targets := make(map[string]*WSSession, len(h.sessions))
	for id, s := range h.sessions {
		targets[id] = s
	}
	h.mu.RUnlock()

	for id, s := range targets {
		if err := s.Send(v); err != nil {
			h.logger.Info("ws send failed, dropping session", "session", id, "error", err)
			h.Remove(id)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.Remove(id)
	}
}
