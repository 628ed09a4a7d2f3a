package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/cashdesk/internal/domain"
)

// RequestInput is a player's money-movement request.
type RequestInput struct {
	PlayerID   string
	Category   domain.Category
	Amount     int64
	ExternalID string
	RoomID     string
	Payment    domain.PaymentDetails
	Metadata   map[string]any
}

// Request files a new deposit or withdrawal, opens its channel with the
// requester, notifies eligible cashiers and administrators, and schedules
// the pending timeout. Validation failures create nothing.
func (c *Coordinator) Request(ctx context.Context, input RequestInput) (*domain.Transaction, error) {
	if input.Category != domain.CategoryDeposit && input.Category != domain.CategoryWithdrawal {
		return nil, fmt.Errorf("%w: %s is not requestable by players", domain.ErrInvalidCategory, input.Category)
	}

	if err := domain.ValidateAmount(input.Amount, minAmountFor(c.cfg, input.Category)); err != nil {
		return nil, err
	}

	if err := domain.ValidateMetadata(input.Metadata); err != nil {
		return nil, err
	}

	player, err := c.loadParty(ctx, input.PlayerID, domain.RolePlayer)
	if err != nil {
		return nil, err
	}

	if input.Category == domain.CategoryWithdrawal {
		if err := player.ValidateDebit(input.Amount); err != nil {
			return nil, err
		}
	}

	eligible, err := c.eligibleCashiers(ctx, input.Category, input.Amount)
	if err != nil {
		return nil, err
	}

	state := domain.StatePending
	if input.Category == domain.CategoryWithdrawal && len(eligible) == 0 {
		// No cashier currently carries enough float; park the request until
		// one picks it up.
		state = domain.StatePendingAssignment
	}

	externalID := input.ExternalID
	if externalID == "" {
		externalID = player.ExternalID
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:         c.idGen.Generate(),
		Reference:  c.newReference(input.Category),
		Category:   input.Category,
		Direction:  categoryDirections[input.Category],
		State:      state,
		PlayerID:   player.ID,
		ExternalID: externalID,
		Amount:     input.Amount,
		Payment:    input.Payment,
		RoomID:     input.RoomID,
		Metadata:   input.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := txn.Validate(); err != nil {
		return nil, err
	}

	tx, err := c.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := c.transactions.Create(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// The requester joins the channel immediately, before any cashier is
	// assigned, so reconnection recovery can find it.
	c.router.OpenTransaction(txn.ID, player.ID)

	event := domain.NewTransactionEvent(txn)
	if input.Category == domain.CategoryDeposit {
		c.router.NotifyPool(domain.EventTransactionRequested, event)
	} else {
		for _, cashier := range eligible {
			c.router.NotifyIdentity(cashier.ID, domain.EventTransactionRequested, event)
		}
	}
	c.router.NotifyAdmins(domain.EventTransactionRequested, event)

	c.scheduleTimeout(txn)
	c.audit(ctx, domain.AuditActionRequest, player.ID, domain.RolePlayer, txn, nil, domain.AuditPriorityNormal, "")

	if c.metrics != nil {
		c.metrics.TransactionsCreated.WithLabelValues(string(txn.Category)).Inc()
		c.metrics.TransactionAmount.WithLabelValues(string(txn.Category)).Observe(float64(txn.Amount))
	}

	return txn, nil
}

// eligibleCashiers intersects the router's available pool with the active
// cashiers that pass the category's eligibility predicate.
func (c *Coordinator) eligibleCashiers(ctx context.Context, category domain.Category, amount int64) ([]*domain.Party, error) {
	available := c.router.AvailableCashiers()
	if len(available) == 0 {
		return nil, nil
	}

	availableSet := make(map[string]bool, len(available))
	for _, id := range available {
		availableSet[id] = true
	}

	cashiers, err := c.parties.ListActiveByRole(ctx, domain.RoleCashier)
	if err != nil {
		return nil, err
	}

	policy := c.eligibility.For(category)

	var eligible []*domain.Party
	for _, cashier := range cashiers {
		if availableSet[cashier.ID] && policy.Eligible(cashier, amount) {
			eligible = append(eligible, cashier)
		}
	}

	return eligible, nil
}

// ReportPaymentInput is a player's assertion that payment was sent.
type ReportPaymentInput struct {
	TransactionID string
	PlayerID      string
	Payment       domain.PaymentDetails
}

// ReportPayment attaches the player's payment evidence and moves the
// transaction to reported. The pending auto-cancel timer is dropped: once a
// payment report exists the request must never be silently cancelled.
func (c *Coordinator) ReportPayment(ctx context.Context, input ReportPaymentInput) (*domain.Transaction, error) {
	var txn *domain.Transaction

	err := c.guard.Do(ctx, input.TransactionID, func() error {
		tx, err := c.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		txn, err = c.transactions.GetByIDForUpdate(ctx, tx, input.TransactionID)
		if err != nil {
			return err
		}

		if txn.PlayerID != input.PlayerID {
			return domain.ErrUnauthorized
		}
		if err := requireState(txn, domain.StateInProgress); err != nil {
			return err
		}

		mergePayment(&txn.Payment, input.Payment)
		if err := txn.Transition(domain.StateReported, "player reported payment"); err != nil {
			return err
		}

		if err := c.transactions.Update(ctx, tx, txn); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	c.scheduleTimeout(txn)

	event := domain.NewTransactionEvent(txn)
	c.router.NotifyIdentity(txn.CashierID, domain.EventTransactionReported, event)
	c.router.NotifyTransaction(txn.ID, domain.EventTransactionReported, event, txn.CashierID)
	c.persistNotify(ctx, txn.CashierID, domain.EventTransactionReported,
		"Payment reported",
		fmt.Sprintf("Player reported payment for %s, please verify", txn.Reference),
		map[string]any{"transaction_id": txn.ID},
		txn.ID+":reported")

	c.audit(ctx, domain.AuditActionReport, input.PlayerID, domain.RolePlayer, txn, nil, domain.AuditPriorityNormal, "")

	return txn, nil
}

// CancelInput is a player-initiated cancellation.
type CancelInput struct {
	TransactionID string
	PlayerID      string
	Reason        string
}

// Cancel cancels a transaction that has not yet been reported. Reported
// transactions cannot be cancelled by the player: the cashier may already be
// moving money.
func (c *Coordinator) Cancel(ctx context.Context, input CancelInput) (*domain.Transaction, error) {
	var txn *domain.Transaction

	err := c.guard.Do(ctx, input.TransactionID, func() error {
		tx, err := c.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		txn, err = c.transactions.GetByIDForUpdate(ctx, tx, input.TransactionID)
		if err != nil {
			return err
		}

		if txn.PlayerID != input.PlayerID {
			return domain.ErrUnauthorized
		}
		if txn.State.IsTerminal() || txn.State == domain.StateReported {
			return fmt.Errorf("%w: %s", domain.ErrInvalidTransition, txn.State)
		}

		reason := input.Reason
		if reason == "" {
			reason = "cancelled by player"
		}
		if err := txn.Transition(domain.StateCancelled, reason); err != nil {
			return err
		}

		if err := c.transactions.Update(ctx, tx, txn); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	event := domain.NewTransactionEvent(txn)
	if txn.CashierID != "" {
		c.router.NotifyIdentity(txn.CashierID, domain.EventTransactionCancelled, event)
	} else {
		c.router.NotifyPool(domain.EventTransactionCancelled, event)
	}
	c.router.NotifyTransaction(txn.ID, domain.EventTransactionCancelled, event)

	c.finishTerminal(txn)
	c.audit(ctx, domain.AuditActionCancel, input.PlayerID, domain.RolePlayer, txn, nil, domain.AuditPriorityNormal, input.Reason)

	return txn, nil
}

func mergePayment(dst *domain.PaymentDetails, src domain.PaymentDetails) {
	if src.Method != "" {
		dst.Method = src.Method
	}
	if src.Counterparty != "" {
		dst.Counterparty = src.Counterparty
	}
	if src.ProofRef != "" {
		dst.ProofRef = src.ProofRef
	}
	if src.Notes != "" {
		dst.Notes = src.Notes
	}
}

func requireState(txn *domain.Transaction, states ...domain.State) error {
	for _, s := range states {
		if txn.State == s {
			return nil
		}
	}
	return fmt.Errorf("%w: transaction is %s", domain.ErrInvalidTransition, txn.State)
}
