package realtime

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/infrastructure/metrics"
)

// Router maintains the multicast groups over the Registry: the cashier
// availability pool, per-identity delivery, per-transaction channels, and
// the admin broadcast channel. Membership is keyed by identity, not by
// connection, so a transient disconnect does not lose a transaction channel.
// Delivery is best effort: failures are logged, never surfaced.
type Router struct {
	registry *Registry
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	mu          sync.RWMutex
	cashiers    map[string]bool // identity -> available (true) or busy (false)
	admins      map[string]struct{}
	memberships map[string]map[string]struct{} // txID -> member identities
}

// ErrNotConnected reports a delivery target without a live connection.
var ErrNotConnected = errors.New("identity has no live connection")

// NewRouter creates a Router over the registry.
func NewRouter(registry *Registry, logger zerolog.Logger) *Router {
	return &Router{
		registry:    registry,
		logger:      logger,
		cashiers:    make(map[string]bool),
		admins:      make(map[string]struct{}),
		memberships: make(map[string]map[string]struct{}),
	}
}

// SetMetrics attaches the pool-size gauge and delivery counters.
func (r *Router) SetMetrics(m *metrics.Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// caller must hold r.mu
func (r *Router) updatePoolGauge() {
	if r.metrics == nil {
		return
	}
	available := 0
	for _, free := range r.cashiers {
		if free {
			available++
		}
	}
	r.metrics.PoolSize.Set(float64(available))
}

// Connected enrolls a fresh connection into the groups its role implies.
// Cashiers enter the pool as available; busy is driven by the coordinator.
func (r *Router) Connected(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch conn.Role() {
	case domain.RoleCashier:
		if _, ok := r.cashiers[conn.Identity()]; !ok {
			r.cashiers[conn.Identity()] = true
		}
	case domain.RoleAdmin:
		r.admins[conn.Identity()] = struct{}{}
	}
	if r.metrics != nil {
		r.metrics.ConnectedClients.WithLabelValues(string(conn.Role())).Inc()
	}
	r.updatePoolGauge()
}

// Disconnected removes pool and admin membership. Transaction channel
// membership is left alone; the recovery coordinator owns its lifetime.
func (r *Router) Disconnected(identity string, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch role {
	case domain.RoleCashier:
		delete(r.cashiers, identity)
	case domain.RoleAdmin:
		delete(r.admins, identity)
	}
	if r.metrics != nil {
		r.metrics.ConnectedClients.WithLabelValues(string(role)).Dec()
	}
	r.updatePoolGauge()
}

// OpenTransaction creates the per-transaction channel with its first member.
func (r *Router) OpenTransaction(txID string, identity string) {
	r.JoinTransaction(txID, identity)
}

// JoinTransaction adds an identity to a transaction channel. Joining twice
// is a no-op, so recovery can rejoin without duplicate membership.
func (r *Router) JoinTransaction(txID string, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.memberships[txID]
	if !ok {
		members = make(map[string]struct{})
		r.memberships[txID] = members
	}
	members[identity] = struct{}{}
}

// LeaveTransaction removes one identity from a transaction channel.
func (r *Router) LeaveTransaction(txID string, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.memberships[txID]; ok {
		delete(members, identity)
	}
}

// TeardownTransaction drops the channel entirely. Called only once the
// transaction is terminal; empty membership alone never triggers teardown,
// to tolerate transient disconnects.
func (r *Router) TeardownTransaction(txID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.memberships, txID)
}

// TransactionsOf lists the transaction channels an identity belongs to.
func (r *Router) TransactionsOf(identity string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for txID, members := range r.memberships {
		if _, ok := members[identity]; ok {
			ids = append(ids, txID)
		}
	}
	return ids
}

// MembersOf lists the identities in a transaction channel.
func (r *Router) MembersOf(txID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.memberships[txID]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// IsMember reports channel membership for one identity.
func (r *Router) IsMember(txID string, identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.memberships[txID][identity]
	return ok
}

// AvailableCashiers lists the available partition of the cashier pool.
func (r *Router) AvailableCashiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, available := range r.cashiers {
		if available {
			ids = append(ids, id)
		}
	}
	return ids
}

// SetCashierBusy moves a cashier between the pool partitions. Only cashiers
// already in the pool (i.e. connected) are affected.
func (r *Router) SetCashierBusy(identity string, busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cashiers[identity]; ok {
		r.cashiers[identity] = !busy
	}
	r.updatePoolGauge()
}

// NotifyPool delivers to every available cashier.
func (r *Router) NotifyPool(event string, payload any) {
	for _, id := range r.AvailableCashiers() {
		r.send(id, event, payload)
	}
}

// NotifyIdentity delivers to one identity's live connection, if any.
func (r *Router) NotifyIdentity(identity string, event string, payload any) {
	r.send(identity, event, payload)
}

// NotifyTransaction delivers to every member of a transaction channel,
// minus the excluded identities.
func (r *Router) NotifyTransaction(txID string, event string, payload any, exclude ...string) {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	for _, id := range r.MembersOf(txID) {
		if !excluded[id] {
			r.send(id, event, payload)
		}
	}
}

// NotifyAdmins broadcasts to the admin channel.
func (r *Router) NotifyAdmins(event string, payload any) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.admins))
	for id := range r.admins {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.send(id, event, payload)
	}
}

// Sweep reclaims channels that are empty and whose transaction the caller
// reports as terminal. It exists to recover from a missed teardown, not as
// the normal cleanup path.
func (r *Router) Sweep(isTerminal func(txID string) bool) int {
	r.mu.Lock()
	var empty []string
	for txID, members := range r.memberships {
		if len(members) == 0 {
			empty = append(empty, txID)
		}
	}
	r.mu.Unlock()

	removed := 0
	for _, txID := range empty {
		if isTerminal(txID) {
			r.TeardownTransaction(txID)
			removed++
		}
	}
	return removed
}

// Deliver sends to one identity and surfaces failures, unlike the Notify
// methods, which are best effort. Queued redelivery uses it to decide
// whether a notification actually went out.
func (r *Router) Deliver(identity string, event string, payload any) error {
	conn, ok := r.registry.Get(identity)
	if !ok {
		return ErrNotConnected
	}
	if err := conn.Send(event, payload); err != nil {
		if r.metrics != nil {
			r.metrics.SendFailures.WithLabelValues(event).Inc()
		}
		return err
	}
	if r.metrics != nil {
		r.metrics.MessagesSent.WithLabelValues(event).Inc()
	}
	return nil
}

func (r *Router) send(identity string, event string, payload any) {
	conn, ok := r.registry.Get(identity)
	if !ok {
		return
	}
	if err := conn.Send(event, payload); err != nil {
		r.logger.Warn().Err(err).
			Str("identity", identity).
			Str("event", event).
			Msg("delivery failed")
		if r.metrics != nil {
			r.metrics.SendFailures.WithLabelValues(event).Inc()
		}
		return
	}
	if r.metrics != nil {
		r.metrics.MessagesSent.WithLabelValues(event).Inc()
	}
}
