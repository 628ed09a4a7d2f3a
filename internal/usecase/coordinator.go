package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/infrastructure/metrics"
)

// CoordinatorConfig holds the tunable business limits.
type CoordinatorConfig struct {
	MinDepositAmount    int64
	MinWithdrawalAmount int64
	CommissionPercent   float64
}

// Coordinator is the transaction coordination engine. It answers every
// inbound money-movement event by composing the ledger, the processing
// guard, the channel router, and the timeout scheduler. All mutating
// operations are serialized per transaction id by the guard; handlers for
// different transactions run fully in parallel.
type Coordinator struct {
	txManager     TransactionManager
	transactions  TransactionRepository
	parties       PartyRepository
	audits        AuditRepository
	notifications NotificationRepository
	router        ChannelRouter
	scheduler     TimeoutScheduler
	guard         *ProcessingGuard
	idGen         IDGenerator
	cache         Cache
	eligibility   EligibilityPolicies
	fees          FeePolicy
	metrics       *metrics.Metrics
	cfg           CoordinatorConfig
	logger        zerolog.Logger
}

// CoordinatorDeps bundles the coordinator's collaborators.
type CoordinatorDeps struct {
	TxManager     TransactionManager
	Transactions  TransactionRepository
	Parties       PartyRepository
	Audits        AuditRepository
	Notifications NotificationRepository
	Router        ChannelRouter
	Scheduler     TimeoutScheduler
	Guard         *ProcessingGuard
	IDGen         IDGenerator
	Cache         Cache
	Eligibility   *EligibilityPolicies
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(deps CoordinatorDeps, cfg CoordinatorConfig) *Coordinator {
	eligibility := DefaultEligibility()
	if deps.Eligibility != nil {
		eligibility = *deps.Eligibility
	}

	return &Coordinator{
		txManager:     deps.TxManager,
		transactions:  deps.Transactions,
		parties:       deps.Parties,
		audits:        deps.Audits,
		notifications: deps.Notifications,
		router:        deps.Router,
		scheduler:     deps.Scheduler,
		guard:         deps.Guard,
		idGen:         deps.IDGen,
		cache:         deps.Cache,
		eligibility:   eligibility,
		fees:          NewFeePolicy(cfg.CommissionPercent),
		metrics:       deps.Metrics,
		cfg:           cfg,
		logger:        deps.Logger,
	}
}

// SetScheduler wires the timeout scheduler after construction. The scheduler
// needs the coordinator as its cancellation target, so the two are connected
// in a second step at startup.
func (c *Coordinator) SetScheduler(s TimeoutScheduler) {
	c.scheduler = s
}

func (c *Coordinator) newReference(category domain.Category) string {
	prefix, ok := referencePrefixes[category]
	if !ok {
		prefix = "TXN"
	}
	return fmt.Sprintf("%s-%s", prefix, c.idGen.Generate())
}

func (c *Coordinator) loadParty(ctx context.Context, id string, role domain.Role) (*domain.Party, error) {
	party, err := c.parties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if party.Role != role {
		return nil, domain.ErrWrongRole
	}
	if !party.Active {
		return nil, domain.ErrPartyInactive
	}
	return party, nil
}

func (c *Coordinator) scheduleTimeout(txn *domain.Transaction) {
	if c.scheduler == nil {
		return
	}
	if txn.State.IsCancelable() {
		c.scheduler.Schedule(txn.ID, txn.State)
	} else {
		c.scheduler.Cancel(txn.ID)
	}
}

// finishTerminal performs the shared cleanup after a transaction reaches a
// terminal state: the timer goes away, the channel is torn down, and an
// assigned cashier returns to the available pool.
func (c *Coordinator) finishTerminal(txn *domain.Transaction) {
	if c.scheduler != nil {
		c.scheduler.Cancel(txn.ID)
	}
	c.router.TeardownTransaction(txn.ID)
	if txn.CashierID != "" {
		c.router.SetCashierBusy(txn.CashierID, false)
	}
	if c.metrics != nil {
		c.metrics.TransactionsCompleted.WithLabelValues(string(txn.Category), string(txn.State)).Inc()
		c.metrics.TransactionLifecycle.WithLabelValues(string(txn.Category)).Observe(time.Since(txn.CreatedAt).Seconds())
	}
}

// audit records an audit trail entry. Failures are logged and swallowed;
// auditing must never abort a financial operation.
func (c *Coordinator) audit(ctx context.Context, action domain.AuditAction, actorID string, role domain.Role, txn *domain.Transaction, before domain.JSON, priority, detail string) {
	entry := &domain.AuditLog{
		ID:           c.idGen.Generate(),
		ActorID:      actorID,
		ActorRole:    role,
		Action:       string(action),
		ResourceType: "transaction",
		ResourceID:   txn.ID,
		BeforeState:  before,
		AfterState:   domain.MarshalState(txn),
		Status:       string(domain.AuditStatusSuccess),
		Priority:     priority,
		Detail:       detail,
		CreatedAt:    time.Now().UTC(),
	}

	if err := c.audits.Create(ctx, entry); err != nil {
		c.logger.Error().Err(err).
			Str("action", string(action)).
			Str("transaction_id", txn.ID).
			Msg("audit write failed")
	}
}

// persistNotify writes a durable notification for out-of-band delivery.
// Idempotent on the dedupe key; failures are logged and swallowed.
func (c *Coordinator) persistNotify(ctx context.Context, recipientID, event, title, body string, data map[string]any, dedupeKey string) {
	if c.notifications == nil || recipientID == "" {
		return
	}

	_, err := c.notifications.Create(ctx, &domain.Notification{
		ID:          c.idGen.Generate(),
		RecipientID: recipientID,
		Type:        event,
		Title:       title,
		Body:        body,
		Data:        data,
		DedupeKey:   dedupeKey,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		c.logger.Error().Err(err).
			Str("recipient", recipientID).
			Str("event", event).
			Msg("persistent notification failed")
	}
}

func minAmountFor(cfg CoordinatorConfig, category domain.Category) int64 {
	if category == domain.CategoryWithdrawal {
		return cfg.MinWithdrawalAmount
	}
	return cfg.MinDepositAmount
}
