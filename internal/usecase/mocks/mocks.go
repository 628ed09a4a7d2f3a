package mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
)

// MockTransactionRepository is an in-memory TransactionRepository. Unset
// Func fields fall back to map-backed behavior.
type MockTransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction

	CreateFunc                     func(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error
	GetByIDFunc                    func(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIDForUpdateFunc           func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error)
	GetByReferenceFunc             func(ctx context.Context, reference string) (*domain.Transaction, error)
	UpdateFunc                     func(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error
	ListByPlayerFunc               func(ctx context.Context, playerID string, limit, offset int) ([]*domain.Transaction, error)
	ListByStatesFunc               func(ctx context.Context, states []domain.State, limit, offset int) ([]*domain.Transaction, error)
	ListByCashierAndStatesFunc     func(ctx context.Context, cashierID string, states []domain.State, limit, offset int) ([]*domain.Transaction, error)
	ListByParticipantAndStatesFunc func(ctx context.Context, identity string, states []domain.State) ([]*domain.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[string]*domain.Transaction),
	}
}

// Put seeds a transaction directly, bypassing Create hooks.
func (m *MockTransactionRepository) Put(txn *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *txn
	m.transactions[txn.ID] = &clone
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *txn
	m.transactions[txn.ID] = &clone
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if txn, ok := m.transactions[id]; ok {
		clone := *txn
		return &clone, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	if m.GetByReferenceFunc != nil {
		return m.GetByReferenceFunc(ctx, reference)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, txn := range m.transactions {
		if txn.Reference == reference {
			clone := *txn
			return &clone, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[txn.ID]; !ok {
		return domain.ErrTransactionNotFound
	}
	clone := *txn
	m.transactions[txn.ID] = &clone
	return nil
}

func (m *MockTransactionRepository) ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]*domain.Transaction, error) {
	if m.ListByPlayerFunc != nil {
		return m.ListByPlayerFunc(ctx, playerID, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Transaction
	for _, txn := range m.transactions {
		if txn.PlayerID == playerID {
			clone := *txn
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockTransactionRepository) ListByStates(ctx context.Context, states []domain.State, limit, offset int) ([]*domain.Transaction, error) {
	if m.ListByStatesFunc != nil {
		return m.ListByStatesFunc(ctx, states, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Transaction
	for _, txn := range m.transactions {
		if stateIn(txn.State, states) {
			clone := *txn
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockTransactionRepository) ListByCashierAndStates(ctx context.Context, cashierID string, states []domain.State, limit, offset int) ([]*domain.Transaction, error) {
	if m.ListByCashierAndStatesFunc != nil {
		return m.ListByCashierAndStatesFunc(ctx, cashierID, states, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Transaction
	for _, txn := range m.transactions {
		if txn.CashierID == cashierID && stateIn(txn.State, states) {
			clone := *txn
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MockTransactionRepository) ListByParticipantAndStates(ctx context.Context, identity string, states []domain.State) ([]*domain.Transaction, error) {
	if m.ListByParticipantAndStatesFunc != nil {
		return m.ListByParticipantAndStatesFunc(ctx, identity, states)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Transaction
	for _, txn := range m.transactions {
		if txn.IsParticipant(identity) && stateIn(txn.State, states) {
			clone := *txn
			out = append(out, &clone)
		}
	}
	return out, nil
}

func stateIn(s domain.State, states []domain.State) bool {
	for _, candidate := range states {
		if s == candidate {
			return true
		}
	}
	return false
}

// MockPartyRepository is an in-memory PartyRepository.
type MockPartyRepository struct {
	mu      sync.RWMutex
	parties map[string]*domain.Party

	CreateFunc            func(ctx context.Context, party *domain.Party) error
	GetByIDFunc           func(ctx context.Context, id string) (*domain.Party, error)
	GetByIDForUpdateFunc  func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Party, error)
	GetByIDsForUpdateFunc func(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Party, error)
	UpdateBalanceFunc     func(ctx context.Context, tx usecase.Transaction, id string, balance, version int64, updatedAt time.Time) error
	ListActiveByRoleFunc  func(ctx context.Context, role domain.Role) ([]*domain.Party, error)
}

func NewMockPartyRepository() *MockPartyRepository {
	return &MockPartyRepository{
		parties: make(map[string]*domain.Party),
	}
}

// Put seeds a party directly.
func (m *MockPartyRepository) Put(party *domain.Party) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *party
	m.parties[party.ID] = &clone
}

// BalanceOf reads a seeded party's current balance.
func (m *MockPartyRepository) BalanceOf(id string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.parties[id]; ok {
		return p.Balance
	}
	return 0
}

func (m *MockPartyRepository) Create(ctx context.Context, party *domain.Party) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, party)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *party
	m.parties[party.ID] = &clone
	return nil
}

func (m *MockPartyRepository) GetByID(ctx context.Context, id string) (*domain.Party, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.parties[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, domain.ErrPartyNotFound
}

func (m *MockPartyRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Party, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockPartyRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Party, error) {
	if m.GetByIDsForUpdateFunc != nil {
		return m.GetByIDsForUpdateFunc(ctx, tx, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Party
	for _, id := range ids {
		p, ok := m.parties[id]
		if !ok {
			return nil, domain.ErrPartyNotFound
		}
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MockPartyRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance, version int64, updatedAt time.Time) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, tx, id, balance, version, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parties[id]
	if !ok {
		return domain.ErrPartyNotFound
	}
	if p.Version != version {
		return domain.ErrWriteConflict
	}
	p.Balance = balance
	p.Version++
	p.UpdatedAt = updatedAt
	return nil
}

func (m *MockPartyRepository) ListActiveByRole(ctx context.Context, role domain.Role) ([]*domain.Party, error) {
	if m.ListActiveByRoleFunc != nil {
		return m.ListActiveByRoleFunc(ctx, role)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Party
	for _, p := range m.parties {
		if p.Role == role && p.Active {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

// MockAuditRepository records audit logs in memory.
type MockAuditRepository struct {
	mu   sync.RWMutex
	logs []*domain.AuditLog

	CreateFunc func(ctx context.Context, log *domain.AuditLog) error
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, log)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.AuditLog(nil), m.logs...), nil
}

func (m *MockAuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditLog
	for _, l := range m.logs {
		if l.ResourceType == resourceType && l.ResourceID == resourceID {
			out = append(out, l)
		}
	}
	return out, nil
}

// Logs returns everything recorded so far.
func (m *MockAuditRepository) Logs() []*domain.AuditLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.AuditLog(nil), m.logs...)
}

// MockNotificationRepository stores notifications in memory and honors the
// dedupe-key contract.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications []*domain.Notification

	CreateFunc func(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.DedupeKey != "" {
		for _, existing := range m.notifications {
			if existing.DedupeKey == n.DedupeKey {
				return existing, nil
			}
		}
	}
	m.notifications = append(m.notifications, n)
	return n, nil
}

func (m *MockNotificationRepository) GetUndelivered(ctx context.Context, limit int) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Notification
	for _, n := range m.notifications {
		if !n.Delivered {
			out = append(out, n)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockNotificationRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id {
			n.Delivered = true
			n.DeliveredAt = &deliveredAt
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// All returns every stored notification.
func (m *MockNotificationRepository) All() []*domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Notification(nil), m.notifications...)
}

// RoutedEvent is one delivery captured by MockChannelRouter.
type RoutedEvent struct {
	Target  string // "pool", "admins", identity, or transaction id
	Kind    string // "pool", "admins", "identity", "transaction"
	Event   string
	Payload any
	Exclude []string
}

// MockChannelRouter records channel operations and deliveries.
type MockChannelRouter struct {
	mu sync.Mutex

	Opened   map[string][]string
	TornDown []string
	Events   []RoutedEvent
	Busy     map[string]bool

	AvailableCashiersFunc func() []string
}

func NewMockChannelRouter() *MockChannelRouter {
	return &MockChannelRouter{
		Opened: make(map[string][]string),
		Busy:   make(map[string]bool),
	}
}

func (m *MockChannelRouter) OpenTransaction(txID string, identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Opened[txID] = append(m.Opened[txID], identity)
}

func (m *MockChannelRouter) JoinTransaction(txID string, identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Opened[txID] = append(m.Opened[txID], identity)
}

func (m *MockChannelRouter) TeardownTransaction(txID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TornDown = append(m.TornDown, txID)
}

func (m *MockChannelRouter) NotifyPool(event string, payload any) {
	m.record(RoutedEvent{Target: "pool", Kind: "pool", Event: event, Payload: payload})
}

func (m *MockChannelRouter) NotifyIdentity(identity string, event string, payload any) {
	m.record(RoutedEvent{Target: identity, Kind: "identity", Event: event, Payload: payload})
}

func (m *MockChannelRouter) NotifyTransaction(txID string, event string, payload any, exclude ...string) {
	m.record(RoutedEvent{Target: txID, Kind: "transaction", Event: event, Payload: payload, Exclude: exclude})
}

func (m *MockChannelRouter) NotifyAdmins(event string, payload any) {
	m.record(RoutedEvent{Target: "admins", Kind: "admins", Event: event, Payload: payload})
}

func (m *MockChannelRouter) AvailableCashiers() []string {
	if m.AvailableCashiersFunc != nil {
		return m.AvailableCashiersFunc()
	}
	return nil
}

func (m *MockChannelRouter) SetCashierBusy(identity string, busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Busy[identity] = busy
}

func (m *MockChannelRouter) record(e RoutedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
}

// EventsNamed returns recorded deliveries with the given event name.
func (m *MockChannelRouter) EventsNamed(event string) []RoutedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RoutedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// MockTimeoutScheduler records Schedule and Cancel calls.
type MockTimeoutScheduler struct {
	mu        sync.Mutex
	Scheduled map[string]domain.State
	Cancelled []string
}

func NewMockTimeoutScheduler() *MockTimeoutScheduler {
	return &MockTimeoutScheduler{
		Scheduled: make(map[string]domain.State),
	}
}

func (m *MockTimeoutScheduler) Schedule(txID string, state domain.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Scheduled[txID] = state
}

func (m *MockTimeoutScheduler) Cancel(txID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, txID)
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockRetrier retries up to Attempts times on domain.ErrWriteConflict,
// mirroring the production backoff retrier without the waiting.
type MockRetrier struct {
	Attempts  int
	RetryFunc func(ctx context.Context, operation func() error) error
}

func NewMockRetrier() *MockRetrier {
	return &MockRetrier{Attempts: 3}
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, operation)
	}
	var err error
	for i := 0; i <= m.Attempts; i++ {
		err = operation()
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return err
}

func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrWriteConflict)
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%d", m.counter)
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return false, existing, nil
	}
	m.data[key] = response
	return true, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

// MockCache is a mock implementation of Cache.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string][]byte),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return value, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Contains reports whether a key is currently cached.
func (m *MockCache) Contains(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}
