package realtime

import (
	"sync"
	"testing"

	"github.com/iho/cashdesk/internal/domain"
)

// fakeConn is an in-memory Conn for tests.
type fakeConn struct {
	id       string
	identity string
	role     domain.Role

	mu     sync.Mutex
	sent   []sentEvent
	closed bool
}

type sentEvent struct {
	event   string
	payload any
}

func newFakeConn(id, identity string, role domain.Role) *fakeConn {
	return &fakeConn{id: id, identity: identity, role: role}
}

func (c *fakeConn) ID() string        { return c.id }
func (c *fakeConn) Identity() string  { return c.identity }
func (c *fakeConn) Role() domain.Role { return c.role }

func (c *fakeConn) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentEvent{event: event, payload: payload})
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) events() []sentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentEvent(nil), c.sent...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()

	first := newFakeConn("conn-1", "player-1", domain.RolePlayer)
	if old := r.Register(first); old != nil {
		t.Fatalf("expected no previous connection, got %v", old)
	}

	second := newFakeConn("conn-2", "player-1", domain.RolePlayer)
	old := r.Register(second)
	if old == nil || old.ID() != "conn-1" {
		t.Fatalf("expected the first connection back, got %v", old)
	}

	got, ok := r.Get("player-1")
	if !ok || got.ID() != "conn-2" {
		t.Errorf("expected conn-2 on record, got %v", got)
	}
	if r.Count() != 1 {
		t.Errorf("expected a single connection, got %d", r.Count())
	}
}

func TestRegistry_StaleUnregisterKeepsNewConnection(t *testing.T) {
	r := NewRegistry()

	first := newFakeConn("conn-1", "player-1", domain.RolePlayer)
	r.Register(first)
	second := newFakeConn("conn-2", "player-1", domain.RolePlayer)
	r.Register(second)

	// The old socket's deferred cleanup fires after the reconnect.
	if r.Unregister(first) {
		t.Error("expected the stale unregister to be refused")
	}
	if !r.IsConnected("player-1") {
		t.Fatal("expected the new connection to survive")
	}

	if !r.Unregister(second) {
		t.Error("expected the current connection to unregister")
	}
	if r.IsConnected("player-1") {
		t.Error("expected no connection on record")
	}
}

func TestRegistry_Role(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeConn("conn-1", "cashier-1", domain.RoleCashier))

	role, ok := r.Role("cashier-1")
	if !ok || role != domain.RoleCashier {
		t.Errorf("expected cashier, got %v %v", role, ok)
	}
	if _, ok := r.Role("nobody"); ok {
		t.Error("expected no role for an unknown identity")
	}
}
