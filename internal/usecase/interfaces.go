package usecase

import (
	"context"
	"time"

	"github.com/iho/cashdesk/internal/domain"
)

// TransactionRepository defines data access for transaction records.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	Update(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]*domain.Transaction, error)
	ListByStates(ctx context.Context, states []domain.State, limit, offset int) ([]*domain.Transaction, error)
	ListByCashierAndStates(ctx context.Context, cashierID string, states []domain.State, limit, offset int) ([]*domain.Transaction, error)
	ListByParticipantAndStates(ctx context.Context, identity string, states []domain.State) ([]*domain.Transaction, error)
}

// PartyRepository defines data access for balance-holding parties.
type PartyRepository interface {
	Create(ctx context.Context, party *domain.Party) error
	GetByID(ctx context.Context, id string) (*domain.Party, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Party, error)
	GetByIDsForUpdate(ctx context.Context, tx Transaction, ids []string) ([]*domain.Party, error)
	// UpdateBalance applies an optimistic version check and returns
	// domain.ErrWriteConflict when the row moved underneath us.
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance, version int64, updatedAt time.Time) error
	ListActiveByRole(ctx context.Context, role domain.Role) ([]*domain.Party, error)
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
	GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error)
}

// NotificationRepository defines data access for persistent notifications.
// Create is idempotent on the dedupe key: a duplicate returns the existing
// record with no error.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	GetUndelivered(ctx context.Context, limit int) ([]*domain.Notification, error)
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error
}

// ChannelRouter is the multicast delivery surface the coordinator emits
// through. Implementations own channel membership; the coordinator only
// names targets. Delivery is best effort and must never fail a financial
// operation.
type ChannelRouter interface {
	OpenTransaction(txID string, identity string)
	JoinTransaction(txID string, identity string)
	TeardownTransaction(txID string)

	NotifyPool(event string, payload any)
	NotifyIdentity(identity string, event string, payload any)
	NotifyTransaction(txID string, event string, payload any, exclude ...string)
	NotifyAdmins(event string, payload any)

	AvailableCashiers() []string
	SetCashierBusy(identity string, busy bool)
}

// TimeoutScheduler owns per-transaction expiry timers.
type TimeoutScheduler interface {
	Schedule(txID string, state domain.State)
	Cancel(txID string)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on retryable write conflicts and gives up on
// everything else.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
