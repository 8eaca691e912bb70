package memory

import (
	"sync"
	"time"

	"crisisrelay/internal/domain"
)

// Registry tracks every currently connected client. It is owned by the
// service process: created at startup, cleared at shutdown, never persisted.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]domain.Connection
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]domain.Connection),
	}
}

// Register is idempotent per connection id: re-registering an open connection
// overwrites its metadata without creating a duplicate entry.
func (r *Registry) Register(conn domain.Connection) {
	if conn.ConnectedAt.IsZero() {
		conn.ConnectedAt = time.Now().UTC()
	}
	r.mu.Lock()
	r.conns[conn.ConnectionID] = conn
	r.mu.Unlock()
}

func (r *Registry) Unregister(connectionID string) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[connectionID]
	if ok {
		delete(r.conns, connectionID)
	}
	return conn, ok
}

func (r *Registry) Get(connectionID string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connectionID]
	return conn, ok
}

func (r *Registry) CountConnected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// Snapshot returns a point-in-time copy so fan-out can iterate without
// holding the lock; a connection removed mid-broadcast is simply skipped by
// the sender when its write fails.
func (r *Registry) Snapshot() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) SnapshotRole(role domain.Role) []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Connection, 0, len(r.conns))
	for _, c := range r.conns {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.conns = make(map[string]domain.Connection)
	r.mu.Unlock()
}
