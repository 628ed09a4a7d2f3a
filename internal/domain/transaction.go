package domain

import (
	"fmt"
	"time"
)

// Category classifies what a transaction moves value for.
type Category string

const (
	CategoryDeposit         Category = "deposit"
	CategoryWithdrawal      Category = "withdrawal"
	CategoryEntryFee        Category = "entry_fee"
	CategoryPrize           Category = "prize"
	CategoryRefund          Category = "refund"
	CategoryTransfer        Category = "transfer"
	CategoryCommission      Category = "commission"
	CategoryBonus           Category = "bonus"
	CategoryAdminAdjustment Category = "admin_adjustment"
)

var validCategories = map[Category]bool{
	CategoryDeposit:         true,
	CategoryWithdrawal:      true,
	CategoryEntryFee:        true,
	CategoryPrize:           true,
	CategoryRefund:          true,
	CategoryTransfer:        true,
	CategoryCommission:      true,
	CategoryBonus:           true,
	CategoryAdminAdjustment: true,
}

// IsValid checks if the category is known.
func (c Category) IsValid() bool {
	return validCategories[c]
}

// Direction is the sign of the balance change relative to the player.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Sign returns +1 for credit and -1 for debit.
func (d Direction) Sign() int64 {
	if d == DirectionDebit {
		return -1
	}
	return 1
}

// State is a transaction lifecycle state.
type State string

const (
	StatePending                 State = "pending"
	StatePendingAssignment       State = "pending_assignment"
	StateInProgress              State = "in_progress"
	StateReported                State = "reported"
	StateConfirmed               State = "confirmed"
	StateCompleted               State = "completed"
	StateCompletedWithAdjustment State = "completed_with_adjustment"
	StateRejected                State = "rejected"
	StateCancelled               State = "cancelled"
	StateFailed                  State = "failed"
	StateReverted                State = "reverted"
	StateRequiresAdminReview     State = "requires_admin_review"
)

// terminalStates are states with no engine-driven exit. requires_admin_review
// is terminal for channel and timer cleanup but resumable by an explicit
// admin action; rejected can still be escalated by the player.
var terminalStates = map[State]bool{
	StateCompleted:               true,
	StateCompletedWithAdjustment: true,
	StateRejected:                true,
	StateCancelled:               true,
	StateFailed:                  true,
	StateReverted:                true,
	StateRequiresAdminReview:     true,
}

// IsTerminal reports whether the state ends engine-driven processing.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsCompleted reports whether the state is a completed terminal, the only
// states in which a balance was applied.
func (s State) IsCompleted() bool {
	return s == StateCompleted || s == StateCompletedWithAdjustment
}

// IsCancelable reports whether the timeout scheduler may auto-cancel a
// transaction in this state.
func (s State) IsCancelable() bool {
	return s == StatePending || s == StatePendingAssignment || s == StateInProgress
}

// allowedTransitions is the adjacency list of the state machine. Transition
// is the only sanctioned mutator of Transaction.State.
var allowedTransitions = map[State][]State{
	StatePending: {
		StateInProgress, StateRejected, StateCancelled, StateFailed, StateRequiresAdminReview,
	},
	StatePendingAssignment: {
		StateInProgress, StateRejected, StateCancelled, StateFailed, StateRequiresAdminReview,
	},
	StateInProgress: {
		StateReported, StateConfirmed, StateCompleted, StateCompletedWithAdjustment,
		StateRejected, StateCancelled, StateFailed, StateRequiresAdminReview,
	},
	StateReported: {
		StateConfirmed, StateCompleted, StateCompletedWithAdjustment,
		StateRejected, StateFailed, StateRequiresAdminReview,
	},
	StateConfirmed: {
		StateCompleted, StateCompletedWithAdjustment, StateFailed,
	},
	StateRejected: {
		StateRequiresAdminReview,
	},
	StateCompleted: {
		StateReverted,
	},
	StateCompletedWithAdjustment: {
		StateReverted,
	},
	StateRequiresAdminReview: {
		StateInProgress, StateReported, StateRejected, StateCompleted, StateCompletedWithAdjustment,
	},
}

// CanTransition checks the adjacency list without mutating anything.
func CanTransition(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentDetails carries the out-of-band payment metadata attached by either
// party. Mutable until the transaction is terminal.
type PaymentDetails struct {
	Method       string `json:"method,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
	ProofRef     string `json:"proof_ref,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Rejection is the set-once rejection metadata.
type Rejection struct {
	Reason      string    `json:"reason"`
	EvidenceRef string    `json:"evidence_ref,omitempty"`
	RejectedAt  time.Time `json:"rejected_at"`
}

// Adjustment records a cashier correcting a mismatched reported amount.
type Adjustment struct {
	OriginalAmount int64     `json:"original_amount"`
	AdjustedAmount int64     `json:"adjusted_amount"`
	Reason         string    `json:"reason"`
	AdjustedBy     string    `json:"adjusted_by"`
	AdjustedAt     time.Time `json:"adjusted_at"`
}

// Transaction is the ledger's unit of work: one request to move value,
// tracked through the state machine. Amounts are integer minor currency
// units; BalanceBefore/BalanceAfter snapshot the player balance and are set
// only when the transaction completes.
type Transaction struct {
	ID        string
	Reference string
	Category  Category
	Direction Direction
	State     State

	PlayerID   string
	CashierID  string
	ExternalID string

	Amount        int64
	BalanceBefore *int64
	BalanceAfter  *int64

	Payment    PaymentDetails
	Rejection  *Rejection
	Adjustment *Adjustment

	RoomID        string
	CounterpartID string

	Metadata map[string]any

	CreatedAt   time.Time
	AssignedAt  *time.Time
	ReportedAt  *time.Time
	ConfirmedAt *time.Time
	ProcessedAt *time.Time
	UpdatedAt   time.Time
	StateReason string
}

// Validate validates a transaction at creation time.
func (t *Transaction) Validate() error {
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !t.Category.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidCategory, t.Category)
	}
	if t.PlayerID == "" {
		return ErrMissingPlayer
	}
	return nil
}

// Transition moves the transaction to the target state, stamping the
// timestamp owned by that state. It rejects anything not in the adjacency
// list and is the only place State is assigned after creation.
func (t *Transaction) Transition(to State, reason string) error {
	if !CanTransition(t.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, to)
	}
	if to != StatePending && to != StatePendingAssignment && t.CashierID == "" {
		// A cashier must be on record before the transaction progresses,
		// except for engine- or player-driven exits from the unassigned set.
		switch to {
		case StateCancelled, StateRejected, StateFailed, StateRequiresAdminReview:
		default:
			return ErrMissingCashier
		}
	}

	now := time.Now().UTC()
	switch to {
	case StateInProgress:
		if t.AssignedAt == nil {
			t.AssignedAt = &now
		}
	case StateReported:
		t.ReportedAt = &now
	case StateConfirmed:
		t.ConfirmedAt = &now
	case StateCompleted, StateCompletedWithAdjustment:
		// Completion implies cashier confirmation even when the confirmed
		// state itself was skipped.
		if t.ConfirmedAt == nil {
			t.ConfirmedAt = &now
		}
		t.ProcessedAt = &now
	case StateRejected, StateCancelled, StateFailed, StateReverted:
		t.ProcessedAt = &now
	}

	t.State = to
	t.StateReason = reason
	t.UpdatedAt = now
	return nil
}

// IsParticipant reports whether the identity is party to this transaction.
func (t *Transaction) IsParticipant(identity string) bool {
	return identity != "" && (identity == t.PlayerID || identity == t.CashierID)
}

// CounterpartyOf returns the other participant's identity, if any.
func (t *Transaction) CounterpartyOf(identity string) string {
	switch identity {
	case t.PlayerID:
		return t.CashierID
	case t.CashierID:
		return t.PlayerID
	}
	return ""
}
