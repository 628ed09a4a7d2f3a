package domain

import "time"

// Event names pushed over live connections. This is the engine's entire
// outbound vocabulary; transports decide the encoding.
const (
	EventTransactionRequested = "transaction.requested"
	EventTransactionAccepted  = "transaction.accepted"
	EventTransactionReported  = "transaction.reported"
	EventTransactionAdjusted  = "transaction.adjusted"
	EventTransactionCompleted = "transaction.completed"
	EventTransactionRejected  = "transaction.rejected"
	EventTransactionCancelled = "transaction.cancelled"
	EventTransactionEscalated = "transaction.escalated"
	EventTransactionReverted  = "transaction.reverted"
	EventTransactionResumed   = "transaction.resumed"
	EventTransactionSnapshot  = "transaction.snapshot"

	EventParticipantDisconnected = "participant.disconnected"
	EventParticipantReconnected  = "participant.reconnected"
	EventRecoveryExpired         = "participant.recovery_expired"
)

// TransactionEvent is the common envelope for transaction notifications.
type TransactionEvent struct {
	TransactionID string    `json:"transaction_id"`
	Reference     string    `json:"reference"`
	Category      Category  `json:"category"`
	State         State     `json:"state"`
	Amount        int64     `json:"amount"`
	PlayerID      string    `json:"player_id"`
	CashierID     string    `json:"cashier_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewTransactionEvent builds the envelope from the current record.
func NewTransactionEvent(t *Transaction) TransactionEvent {
	return TransactionEvent{
		TransactionID: t.ID,
		Reference:     t.Reference,
		Category:      t.Category,
		State:         t.State,
		Amount:        t.Amount,
		PlayerID:      t.PlayerID,
		CashierID:     t.CashierID,
		Reason:        t.StateReason,
		OccurredAt:    t.UpdatedAt,
	}
}

// AcceptedEvent adds the cashier's payment-collection details for the player.
type AcceptedEvent struct {
	TransactionEvent
	Payment PaymentDetails `json:"payment"`
}

// AdjustedEvent notifies the player of an amount correction.
type AdjustedEvent struct {
	TransactionEvent
	OriginalAmount int64  `json:"original_amount"`
	AdjustedAmount int64  `json:"adjusted_amount"`
	AdjustReason   string `json:"adjust_reason"`
}

// CompletedEvent carries the applied balance snapshot.
type CompletedEvent struct {
	TransactionEvent
	BalanceBefore int64 `json:"balance_before"`
	BalanceAfter  int64 `json:"balance_after"`
}

// PresenceEvent reports a counterparty's connectivity change on a
// transaction channel.
type PresenceEvent struct {
	TransactionID string    `json:"transaction_id"`
	Identity      string    `json:"identity"`
	Role          Role      `json:"role"`
	GraceDeadline time.Time `json:"grace_deadline,omitzero"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// SnapshotEvent rebuilds a reconnecting client's view of one transaction.
type SnapshotEvent struct {
	Transaction *Transaction `json:"transaction"`
	Terminal    bool         `json:"terminal"`
}
