package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/iho/cashdesk/internal/domain"
)

// TimeoutReason marks cancellations driven by the scheduler.
const TimeoutReason = "timeout"

// CancelForTimeout is the timeout scheduler's firing target. It re-reads the
// persisted state under the guard before acting: a transition that landed
// just before the timer fired makes this a no-op.
func (c *Coordinator) CancelForTimeout(ctx context.Context, txID string) error {
	var (
		txn       *domain.Transaction
		fromState domain.State
	)

	err := c.guard.Do(ctx, txID, func() error {
		tx, err := c.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		txn, err = c.transactions.GetByIDForUpdate(ctx, tx, txID)
		if err != nil {
			return err
		}

		if !txn.State.IsCancelable() {
			txn = nil
			return nil
		}

		fromState = txn.State
		if err := txn.Transition(domain.StateCancelled, TimeoutReason); err != nil {
			return err
		}

		if err := c.transactions.Update(ctx, tx, txn); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if errors.Is(err, domain.ErrBusy) {
		// A handler holds the slot; whatever it commits supersedes this
		// timer, and the scheduler re-checks state anyway.
		return nil
	}
	if err != nil {
		return err
	}
	if txn == nil {
		return nil
	}

	event := domain.NewTransactionEvent(txn)
	c.router.NotifyIdentity(txn.PlayerID, domain.EventTransactionCancelled, event)
	if txn.CashierID != "" {
		c.router.NotifyIdentity(txn.CashierID, domain.EventTransactionCancelled, event)
	} else {
		c.router.NotifyPool(domain.EventTransactionCancelled, event)
	}
	c.persistNotify(ctx, txn.PlayerID, domain.EventTransactionCancelled,
		"Request expired",
		fmt.Sprintf("%s was cancelled after waiting too long", txn.Reference),
		map[string]any{"transaction_id": txn.ID},
		txn.ID+":timeout")

	c.finishTerminal(txn)
	c.audit(ctx, domain.AuditActionTimeout, "system", "", txn, nil, domain.AuditPriorityNormal, TimeoutReason)

	if c.metrics != nil {
		c.metrics.TimeoutsFired.WithLabelValues(string(fromState)).Inc()
	}

	return nil
}
