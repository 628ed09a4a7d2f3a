package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/cashdesk/internal/domain"
)

// AcceptInput is a cashier taking ownership of a pending request.
type AcceptInput struct {
	TransactionID string
	CashierID     string
	// Payment carries the cashier's collection details pushed to the player.
	Payment domain.PaymentDetails
}

// Accept assigns the cashier, moves the transaction to in_progress, marks
// the cashier busy, and reschedules the timeout with the in-progress budget.
func (c *Coordinator) Accept(ctx context.Context, input AcceptInput) (*domain.Transaction, error) {
	cashier, err := c.loadParty(ctx, input.CashierID, domain.RoleCashier)
	if err != nil {
		return nil, err
	}

	var txn *domain.Transaction

	err = c.guard.Do(ctx, input.TransactionID, func() error {
		tx, err := c.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		txn, err = c.transactions.GetByIDForUpdate(ctx, tx, input.TransactionID)
		if err != nil {
			return err
		}

		if err := requireState(txn, domain.StatePending, domain.StatePendingAssignment); err != nil {
			return err
		}

		if !c.eligibility.For(txn.Category).Eligible(cashier, txn.Amount) {
			return domain.ErrInsufficientFunds
		}

		txn.CashierID = cashier.ID
		mergePayment(&txn.Payment, input.Payment)
		if err := txn.Transition(domain.StateInProgress, "accepted by cashier"); err != nil {
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

	c.router.SetCashierBusy(cashier.ID, true)
	c.router.JoinTransaction(txn.ID, cashier.ID)
	c.scheduleTimeout(txn)

	event := domain.AcceptedEvent{
		TransactionEvent: domain.NewTransactionEvent(txn),
		Payment:          txn.Payment,
	}
	c.router.NotifyIdentity(txn.PlayerID, domain.EventTransactionAccepted, event)
	c.persistNotify(ctx, txn.PlayerID, domain.EventTransactionAccepted,
		"Request accepted",
		fmt.Sprintf("A cashier accepted %s", txn.Reference),
		map[string]any{"transaction_id": txn.ID},
		txn.ID+":accepted")

	c.audit(ctx, domain.AuditActionAccept, cashier.ID, domain.RoleCashier, txn, nil, domain.AuditPriorityNormal, "")

	return txn, nil
}

// AdjustAmountInput corrects a mismatch between the requested and the
// actually-received amount.
type AdjustAmountInput struct {
	TransactionID string
	CashierID     string
	NewAmount     int64
	Reason        string
}

// AdjustAmount records the correction and updates the amount in place. The
// state does not change; the player is told about the adjustment.
func (c *Coordinator) AdjustAmount(ctx context.Context, input AdjustAmountInput) (*domain.Transaction, error) {
	if input.Reason == "" {
		return nil, domain.ErrReasonRequired
	}

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

		if txn.CashierID != input.CashierID {
			return domain.ErrUnauthorized
		}
		if err := requireState(txn, domain.StateReported); err != nil {
			return err
		}
		if err := domain.ValidateAmount(input.NewAmount, minAmountFor(c.cfg, txn.Category)); err != nil {
			return err
		}

		original := txn.Amount
		if txn.Adjustment != nil {
			// Repeated corrections keep the first requested amount.
			original = txn.Adjustment.OriginalAmount
		}
		txn.Adjustment = &domain.Adjustment{
			OriginalAmount: original,
			AdjustedAmount: input.NewAmount,
			Reason:         input.Reason,
			AdjustedBy:     input.CashierID,
			AdjustedAt:     time.Now().UTC(),
		}
		txn.Amount = input.NewAmount
		txn.UpdatedAt = time.Now().UTC()

		if err := c.transactions.Update(ctx, tx, txn); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	event := domain.AdjustedEvent{
		TransactionEvent: domain.NewTransactionEvent(txn),
		OriginalAmount:   txn.Adjustment.OriginalAmount,
		AdjustedAmount:   txn.Adjustment.AdjustedAmount,
		AdjustReason:     txn.Adjustment.Reason,
	}
	c.router.NotifyIdentity(txn.PlayerID, domain.EventTransactionAdjusted, event)
	c.audit(ctx, domain.AuditActionAdjust, input.CashierID, domain.RoleCashier, txn, nil, domain.AuditPriorityNormal, input.Reason)

	return txn, nil
}

// ConfirmInput is a cashier verifying that the reported payment arrived.
type ConfirmInput struct {
	TransactionID string
	CashierID     string
}

// Confirm applies the balance and the terminal state as one atomic unit:
// either the player balance, the cashier float, and the transaction record
// all change, or none of them do. in_progress is accepted alongside reported
// to support confirm-after-adjustment workflows.
func (c *Coordinator) Confirm(ctx context.Context, input ConfirmInput) (*domain.Transaction, error) {
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

		if txn.CashierID != input.CashierID {
			return domain.ErrUnauthorized
		}
		if err := requireState(txn, domain.StateReported, domain.StateInProgress); err != nil {
			return err
		}

		player, cashier, err := c.lockParties(ctx, tx, txn.PlayerID, txn.CashierID)
		if err != nil {
			return err
		}

		delta := txn.Direction.Sign() * txn.Amount
		if delta < 0 {
			// Withdrawal: the player pays out and the cashier fronts the
			// cash out of their float.
			if err := player.ValidateDebit(txn.Amount); err != nil {
				return err
			}
			if err := cashier.ValidateDebit(txn.Amount); err != nil {
				return err
			}
		}

		target := domain.StateCompleted
		if txn.Adjustment != nil {
			target = domain.StateCompletedWithAdjustment
		}

		before := player.Balance
		after := player.ApplyDelta(delta)
		if err := txn.Transition(target, "confirmed by cashier"); err != nil {
			return err
		}
		txn.BalanceBefore = &before
		txn.BalanceAfter = &after

		if fee := c.fees.Commission(txn.Amount); fee > 0 && txn.Category == domain.CategoryDeposit {
			if txn.Metadata == nil {
				txn.Metadata = map[string]any{}
			}
			txn.Metadata["commission"] = fee
		}

		now := time.Now().UTC()
		if err := c.transactions.Update(ctx, tx, txn); err != nil {
			return err
		}
		if err := c.parties.UpdateBalance(ctx, tx, player.ID, after, player.Version, now); err != nil {
			return err
		}
		if err := c.parties.UpdateBalance(ctx, tx, cashier.ID, cashier.ApplyDelta(delta), cashier.Version, now); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	event := domain.CompletedEvent{
		TransactionEvent: domain.NewTransactionEvent(txn),
		BalanceBefore:    *txn.BalanceBefore,
		BalanceAfter:     *txn.BalanceAfter,
	}
	c.router.NotifyTransaction(txn.ID, domain.EventTransactionCompleted, event)
	c.router.NotifyAdmins(domain.EventTransactionCompleted, event)
	c.persistNotify(ctx, txn.PlayerID, domain.EventTransactionCompleted,
		"Transaction completed",
		fmt.Sprintf("%s completed for %d", txn.Reference, txn.Amount),
		map[string]any{"transaction_id": txn.ID, "balance_after": *txn.BalanceAfter},
		txn.ID+":completed")

	c.finishTerminal(txn)
	c.audit(ctx, domain.AuditActionConfirm, input.CashierID, domain.RoleCashier, txn, nil, domain.AuditPriorityNormal, "")

	return txn, nil
}

// RejectInput is a cashier refusing a reported payment. A reason is
// mandatory.
type RejectInput struct {
	TransactionID string
	CashierID     string
	Reason        string
	EvidenceRef   string
}

// Reject moves the transaction to rejected with set-once rejection metadata
// and tears the channel down. The player may later request an admin review.
func (c *Coordinator) Reject(ctx context.Context, input RejectInput) (*domain.Transaction, error) {
	if input.Reason == "" {
		return nil, domain.ErrReasonRequired
	}

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

		if txn.CashierID != input.CashierID {
			return domain.ErrUnauthorized
		}
		if err := requireState(txn, domain.StateReported, domain.StateInProgress); err != nil {
			return err
		}
		if txn.Rejection != nil {
			return domain.ErrRejectionSet
		}

		txn.Rejection = &domain.Rejection{
			Reason:      input.Reason,
			EvidenceRef: input.EvidenceRef,
			RejectedAt:  time.Now().UTC(),
		}
		if err := txn.Transition(domain.StateRejected, input.Reason); err != nil {
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
	c.router.NotifyIdentity(txn.PlayerID, domain.EventTransactionRejected, event)
	c.router.NotifyAdmins(domain.EventTransactionRejected, event)
	c.persistNotify(ctx, txn.PlayerID, domain.EventTransactionRejected,
		"Request rejected",
		fmt.Sprintf("%s was rejected: %s", txn.Reference, input.Reason),
		map[string]any{"transaction_id": txn.ID},
		txn.ID+":rejected")

	c.finishTerminal(txn)
	c.audit(ctx, domain.AuditActionReject, input.CashierID, domain.RoleCashier, txn, nil, domain.AuditPriorityNormal, input.Reason)

	return txn, nil
}

// lockParties locks both balance rows in sorted id order to prevent
// deadlocks between concurrent confirmations.
func (c *Coordinator) lockParties(ctx context.Context, tx Transaction, playerID, cashierID string) (player, cashier *domain.Party, err error) {
	ids := []string{playerID, cashierID}
	sort.Strings(ids)

	parties, err := c.parties.GetByIDsForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, nil, err
	}
	if len(parties) != 2 {
		return nil, nil, domain.ErrPartyNotFound
	}

	for _, p := range parties {
		switch p.ID {
		case playerID:
			player = p
		case cashierID:
			cashier = p
		}
	}
	if player == nil || cashier == nil {
		return nil, nil, domain.ErrPartyNotFound
	}

	return player, cashier, nil
}
