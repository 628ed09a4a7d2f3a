package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/cashdesk/internal/domain"
)

// EscalateInput sends a transaction to manual admin review. Cashiers
// escalate reported payments they cannot verify; players escalate rejections
// they dispute.
type EscalateInput struct {
	TransactionID string
	ActorID       string
	Role          domain.Role
	Reason        string
}

// Escalate moves the transaction to requires_admin_review and notifies
// administrators with full context. The state is terminal for channel and
// timer cleanup but resumable through Resume.
func (c *Coordinator) Escalate(ctx context.Context, input EscalateInput) (*domain.Transaction, error) {
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

		switch input.Role {
		case domain.RoleCashier:
			if txn.CashierID != input.ActorID {
				return domain.ErrUnauthorized
			}
			if err := requireState(txn, domain.StateReported); err != nil {
				return err
			}
		case domain.RolePlayer:
			if txn.PlayerID != input.ActorID {
				return domain.ErrUnauthorized
			}
			if err := requireState(txn, domain.StateRejected); err != nil {
				return err
			}
		default:
			return domain.ErrWrongRole
		}

		if err := txn.Transition(domain.StateRequiresAdminReview, input.Reason); err != nil {
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

	c.router.NotifyAdmins(domain.EventTransactionEscalated, domain.SnapshotEvent{
		Transaction: txn,
		Terminal:    true,
	})
	counterparty := txn.CounterpartyOf(input.ActorID)
	if counterparty != "" {
		c.router.NotifyIdentity(counterparty, domain.EventTransactionEscalated, domain.NewTransactionEvent(txn))
	}

	c.finishTerminal(txn)
	c.dropCachedReference(ctx, txn.Reference)
	c.audit(ctx, domain.AuditActionEscalate, input.ActorID, input.Role, txn, nil, domain.AuditPriorityHigh, input.Reason)

	return txn, nil
}

// ResumeInput re-opens or resolves a transaction parked in admin review.
type ResumeInput struct {
	TransactionID string
	AdminID       string
	// Target is in_progress (hand back to the cashier) or rejected
	// (close the dispute). Completion still goes through the normal confirm
	// path after a resume, so the balance unit has a single owner.
	Target domain.State
	Reason string
}

// Resume is the only path out of requires_admin_review.
func (c *Coordinator) Resume(ctx context.Context, input ResumeInput) (*domain.Transaction, error) {
	if input.Target != domain.StateInProgress && input.Target != domain.StateRejected {
		return nil, fmt.Errorf("%w: review resolves to in_progress or rejected", domain.ErrInvalidTransition)
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

		if err := requireState(txn, domain.StateRequiresAdminReview); err != nil {
			return err
		}
		if input.Target == domain.StateRejected && txn.Rejection == nil {
			txn.Rejection = &domain.Rejection{
				Reason:     input.Reason,
				RejectedAt: time.Now().UTC(),
			}
		}

		if err := txn.Transition(input.Target, input.Reason); err != nil {
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
	if input.Target == domain.StateInProgress {
		// Rebuild the working set: channel, pool partition, timeout budget.
		c.router.OpenTransaction(txn.ID, txn.PlayerID)
		if txn.CashierID != "" {
			c.router.JoinTransaction(txn.ID, txn.CashierID)
			c.router.SetCashierBusy(txn.CashierID, true)
		}
		c.scheduleTimeout(txn)
		c.router.NotifyTransaction(txn.ID, domain.EventTransactionResumed, event)
	} else {
		c.router.NotifyIdentity(txn.PlayerID, domain.EventTransactionRejected, event)
	}
	c.router.NotifyAdmins(domain.EventTransactionResumed, event)

	c.dropCachedReference(ctx, txn.Reference)
	c.audit(ctx, domain.AuditActionResume, input.AdminID, domain.RoleAdmin, txn, nil, domain.AuditPriorityHigh, input.Reason)

	return txn, nil
}

// RevertInput compensates a completed transaction.
type RevertInput struct {
	TransactionID string
	AdminID       string
	Reason        string
}

// Revert atomically creates a completed counterpart transaction with the
// opposite direction, applies the compensating balance deltas, and marks the
// original reverted. The two records link through CounterpartID.
func (c *Coordinator) Revert(ctx context.Context, input RevertInput) (*domain.Transaction, error) {
	if input.Reason == "" {
		return nil, domain.ErrReasonRequired
	}

	var txn, counterpart *domain.Transaction

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

		if err := requireState(txn, domain.StateCompleted, domain.StateCompletedWithAdjustment); err != nil {
			return err
		}

		player, cashier, err := c.lockParties(ctx, tx, txn.PlayerID, txn.CashierID)
		if err != nil {
			return err
		}

		// Opposite of the original application.
		delta := -txn.Direction.Sign() * txn.Amount
		if delta < 0 {
			if err := player.ValidateDebit(txn.Amount); err != nil {
				return err
			}
			if err := cashier.ValidateDebit(txn.Amount); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		before := player.Balance
		after := player.ApplyDelta(delta)

		direction := domain.DirectionCredit
		if delta < 0 {
			direction = domain.DirectionDebit
		}
		counterpart = &domain.Transaction{
			ID:            c.idGen.Generate(),
			Reference:     c.newReference(domain.CategoryRefund),
			Category:      domain.CategoryRefund,
			Direction:     direction,
			State:         domain.StateCompleted,
			PlayerID:      txn.PlayerID,
			CashierID:     txn.CashierID,
			ExternalID:    txn.ExternalID,
			Amount:        txn.Amount,
			BalanceBefore: &before,
			BalanceAfter:  &after,
			CounterpartID: txn.ID,
			StateReason:   input.Reason,
			ProcessedAt:   &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := txn.Transition(domain.StateReverted, input.Reason); err != nil {
			return err
		}
		txn.CounterpartID = counterpart.ID

		if err := c.transactions.Create(ctx, tx, counterpart); err != nil {
			return err
		}
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

	event := domain.NewTransactionEvent(txn)
	c.router.NotifyIdentity(txn.PlayerID, domain.EventTransactionReverted, event)
	if txn.CashierID != "" {
		c.router.NotifyIdentity(txn.CashierID, domain.EventTransactionReverted, event)
	}
	c.router.NotifyAdmins(domain.EventTransactionReverted, event)
	c.persistNotify(ctx, txn.PlayerID, domain.EventTransactionReverted,
		"Transaction reverted",
		fmt.Sprintf("%s was reverted: %s", txn.Reference, input.Reason),
		map[string]any{"transaction_id": txn.ID, "counterpart_id": counterpart.ID},
		txn.ID+":reverted")

	c.dropCachedReference(ctx, txn.Reference)
	c.audit(ctx, domain.AuditActionRevert, input.AdminID, domain.RoleAdmin, txn, nil, domain.AuditPriorityHigh, input.Reason)

	return txn, nil
}
