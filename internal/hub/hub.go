package hub

import (
	"log/slog"
	"sync"

	"crisisrelay/internal/domain"
)

// Hub owns one outbound channel per connected socket. The gateway's write
// loop drains the channel; services push envelopes through Send. Delivery is
// at-most-once: a full buffer or a missing subscriber drops the envelope.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]chan domain.Envelope
	buffer int
	logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[string]chan domain.Envelope),
		buffer: buffer,
		logger: logger,
	}
}

func (h *Hub) Subscribe(connectionID string) <-chan domain.Envelope {
	ch := make(chan domain.Envelope, h.buffer)
	h.mu.Lock()
	if old, ok := h.subs[connectionID]; ok {
		close(old)
	}
	h.subs[connectionID] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(connectionID string) {
	h.mu.Lock()
	if ch, ok := h.subs[connectionID]; ok {
		delete(h.subs, connectionID)
		close(ch)
	}
	h.mu.Unlock()
}

// Send never blocks a caller on another connection's I/O. The read lock is
// held across the send attempt so Unsubscribe cannot close the channel under
// us.
func (h *Hub) Send(connectionID string, env domain.Envelope) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.subs[connectionID]
	if !ok {
		return false
	}
	select {
	case ch <- env:
		return true
	default:
		h.logger.Warn("subscriber buffer full, dropping envelope",
			slog.String("connection_id", connectionID),
			slog.String("event", env.Event))
		return false
	}
}

// FanOut sends one envelope to a snapshot of connections. Connections that
// unregistered mid-iteration are skipped, never double-sent.
func (h *Hub) FanOut(conns []domain.Connection, env domain.Envelope) int {
	sent := 0
	for _, c := range conns {
		if h.Send(c.ConnectionID, env) {
			sent++
		}
	}
	return sent
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
