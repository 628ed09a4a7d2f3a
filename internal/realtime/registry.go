package realtime

import (
	"sync"

	"github.com/iho/cashdesk/internal/domain"
)

// Conn is the transport-agnostic handle for one live connection. The WS
// adapter implements it; tests implement it in-memory.
type Conn interface {
	ID() string
	Identity() string
	Role() domain.Role
	Send(event string, payload any) error
	Close()
}

// Registry maps a logical identity to at most one live connection. It holds
// no durable state: everything here is rebuilt from live connections after a
// restart.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewRegistry creates a Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register stores the connection for its identity and returns the previous
// connection for that identity, if any. The caller closes the replaced one.
func (r *Registry) Register(conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.conns[conn.Identity()]
	r.conns[conn.Identity()] = conn
	return old
}

// Unregister removes the connection and reports whether it was the one on
// record. A stale close after a reconnect must not evict the new connection.
func (r *Registry) Unregister(conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[conn.Identity()]
	if !ok || current.ID() != conn.ID() {
		return false
	}
	delete(r.conns, conn.Identity())
	return true
}

// Get returns the live connection for an identity.
func (r *Registry) Get(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[identity]
	return conn, ok
}

// IsConnected reports whether the identity has a live connection.
func (r *Registry) IsConnected(identity string) bool {
	_, ok := r.Get(identity)
	return ok
}

// Role returns the role the identity connected as.
func (r *Registry) Role(identity string) (domain.Role, bool) {
	conn, ok := r.Get(identity)
	if !ok {
		return "", false
	}
	return conn.Role(), true
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
