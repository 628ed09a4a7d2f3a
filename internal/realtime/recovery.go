package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/infrastructure/metrics"
)

// SnapshotSource reads current transaction state for recovery decisions.
// The coordinator's read-only queries satisfy it.
type SnapshotSource interface {
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ActiveForParticipant(ctx context.Context, identity string) ([]*domain.Transaction, error)
}

// AuditSink records recovery outcomes for human follow-up. Failures are
// logged and swallowed.
type AuditSink interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// IDSource mints audit record ids.
type IDSource interface {
	Generate() string
}

// RecoveryConfig holds the per-role grace periods. Cashiers get longer
// because losing one mid-transaction has higher operational cost.
type RecoveryConfig struct {
	PlayerGrace  time.Duration
	CashierGrace time.Duration
}

type graceRecord struct {
	identity     string
	role         domain.Role
	transactions []string
	deadline     time.Time
	timer        *time.Timer
}

// Recovery bridges disconnection and channel/timer cleanup. A participant
// that drops while party to open transactions gets a grace window to come
// back before anything is flagged; transaction state itself is never changed
// here, cancellation belongs to the timeout scheduler.
type Recovery struct {
	router  *Router
	source  SnapshotSource
	audits  AuditSink
	idGen   IDSource
	cfg     RecoveryConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	records map[string]*graceRecord
}

// NewRecovery creates a Recovery coordinator.
func NewRecovery(router *Router, source SnapshotSource, audits AuditSink, idGen IDSource, cfg RecoveryConfig, logger zerolog.Logger) *Recovery {
	return &Recovery{
		router:  router,
		source:  source,
		audits:  audits,
		idGen:   idGen,
		cfg:     cfg,
		logger:  logger,
		records: make(map[string]*graceRecord),
	}
}

// SetMetrics attaches the grace-period instruments.
func (r *Recovery) SetMetrics(m *metrics.Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// caller must hold r.mu
func (r *Recovery) updateGraceGauge() {
	if r.metrics != nil {
		r.metrics.GracePeriods.Set(float64(len(r.records)))
	}
}

// HandleDisconnect runs after the registry dropped the connection. With no
// open transactions the pool/admin membership is cleaned up immediately;
// otherwise a grace record is kept and each counterparty is told the
// participant is temporarily gone.
func (r *Recovery) HandleDisconnect(ctx context.Context, identity string, role domain.Role) {
	r.router.Disconnected(identity, role)

	txIDs := r.router.TransactionsOf(identity)
	if len(txIDs) == 0 {
		return
	}

	grace := r.cfg.PlayerGrace
	if role == domain.RoleCashier {
		grace = r.cfg.CashierGrace
	}
	deadline := time.Now().UTC().Add(grace)

	record := &graceRecord{
		identity:     identity,
		role:         role,
		transactions: txIDs,
		deadline:     deadline,
	}

	r.mu.Lock()
	if old, ok := r.records[identity]; ok && old.timer != nil {
		old.timer.Stop()
	}
	r.records[identity] = record
	record.timer = time.AfterFunc(grace, func() {
		r.expire(identity)
	})
	r.updateGraceGauge()
	r.mu.Unlock()

	r.logger.Info().
		Str("identity", identity).
		Str("role", string(role)).
		Int("transactions", len(txIDs)).
		Dur("grace", grace).
		Msg("participant disconnected, grace period started")

	now := time.Now().UTC()
	for _, txID := range txIDs {
		r.router.NotifyTransaction(txID, domain.EventParticipantDisconnected, domain.PresenceEvent{
			TransactionID: txID,
			Identity:      identity,
			Role:          role,
			GraceDeadline: deadline,
			OccurredAt:    now,
		}, identity)
	}
}

// HandleReconnect runs after the registry accepted the new connection. A
// live grace record is cancelled and its channels rejoined; without one the
// membership is rebuilt from the durable transactions, which also covers
// reconnects after a process restart. Either way the connection gets a fresh
// snapshot of every affected transaction so the client rebuilds without
// polling.
func (r *Recovery) HandleReconnect(ctx context.Context, conn Conn) {
	identity := conn.Identity()

	r.mu.Lock()
	record, hadRecord := r.records[identity]
	if hadRecord {
		if record.timer != nil {
			record.timer.Stop()
		}
		delete(r.records, identity)
		r.updateGraceGauge()
	}
	r.mu.Unlock()

	var txIDs []string
	if hadRecord {
		txIDs = record.transactions
	} else {
		active, err := r.source.ActiveForParticipant(ctx, identity)
		if err != nil {
			r.logger.Error().Err(err).Str("identity", identity).Msg("recovery lookup failed")
			return
		}
		for _, txn := range active {
			txIDs = append(txIDs, txn.ID)
		}
	}

	now := time.Now().UTC()
	for _, txID := range txIDs {
		txn, err := r.source.GetTransaction(ctx, txID)
		if err != nil {
			r.logger.Error().Err(err).Str("transaction_id", txID).Msg("snapshot read failed")
			continue
		}

		if txn.State.IsTerminal() {
			// Report the outcome instead of rejoining.
			r.send(conn, domain.EventTransactionSnapshot, domain.SnapshotEvent{Transaction: txn, Terminal: true})
			r.router.LeaveTransaction(txID, identity)
			continue
		}

		r.router.JoinTransaction(txID, identity)
		r.send(conn, domain.EventTransactionSnapshot, domain.SnapshotEvent{Transaction: txn})
		r.router.NotifyTransaction(txID, domain.EventParticipantReconnected, domain.PresenceEvent{
			TransactionID: txID,
			Identity:      identity,
			Role:          conn.Role(),
			OccurredAt:    now,
		}, identity)
	}

	if hadRecord {
		if r.metrics != nil {
			r.metrics.Reconnections.WithLabelValues(string(conn.Role())).Inc()
		}
		r.logger.Info().
			Str("identity", identity).
			Int("transactions", len(txIDs)).
			Msg("participant reconnected within grace period")
	}
}

// PendingRecoveries returns the identities currently inside a grace window.
func (r *Recovery) PendingRecoveries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	return ids
}

// Stop cancels all grace timers. Used on shutdown.
func (r *Recovery) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, record := range r.records {
		if record.timer != nil {
			record.timer.Stop()
		}
		delete(r.records, id)
	}
}

// expire fires when the grace window closes without a reconnect. State
// handling depends on where each transaction stands: pending loses nothing,
// in_progress gets an audit note, reported gets a high-priority flag because
// the player already asserted payment was sent. Nothing is auto-cancelled
// here.
func (r *Recovery) expire(identity string) {
	r.mu.Lock()
	record, ok := r.records[identity]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.records, identity)
	r.updateGraceGauge()
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecoveryExpired.WithLabelValues(string(record.role)).Inc()
	}

	ctx := context.Background()
	now := time.Now().UTC()

	r.logger.Warn().
		Str("identity", identity).
		Str("role", string(record.role)).
		Int("transactions", len(record.transactions)).
		Msg("grace period expired without reconnection")

	for _, txID := range record.transactions {
		txn, err := r.source.GetTransaction(ctx, txID)
		if err != nil {
			r.logger.Error().Err(err).Str("transaction_id", txID).Msg("expiry state read failed")
			continue
		}

		switch txn.State {
		case domain.StateInProgress:
			r.flag(ctx, record, txn, domain.AuditPriorityNormal,
				"participant lost mid-transaction, manual follow-up required")
		case domain.StateReported:
			r.flag(ctx, record, txn, domain.AuditPriorityHigh,
				"participant lost after payment was reported, verify out of band")
		}

		r.router.NotifyTransaction(txID, domain.EventRecoveryExpired, domain.PresenceEvent{
			TransactionID: txID,
			Identity:      identity,
			Role:          record.role,
			OccurredAt:    now,
		}, identity)

		if txn.State.IsTerminal() {
			r.router.LeaveTransaction(txID, identity)
		}
	}
}

func (r *Recovery) flag(ctx context.Context, record *graceRecord, txn *domain.Transaction, priority, detail string) {
	entry := &domain.AuditLog{
		ID:           r.idGen.Generate(),
		ActorID:      record.identity,
		ActorRole:    record.role,
		Action:       string(domain.AuditActionRecoveryExpired),
		ResourceType: "transaction",
		ResourceID:   txn.ID,
		AfterState:   domain.MarshalState(txn),
		Status:       string(domain.AuditStatusFailure),
		Priority:     priority,
		Detail:       detail,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.audits.Create(ctx, entry); err != nil {
		r.logger.Error().Err(err).Str("transaction_id", txn.ID).Msg("recovery audit write failed")
	}
}

func (r *Recovery) send(conn Conn, event string, payload any) {
	if err := conn.Send(event, payload); err != nil {
		r.logger.Warn().Err(err).Str("identity", conn.Identity()).Str("event", event).Msg("snapshot delivery failed")
	}
}
