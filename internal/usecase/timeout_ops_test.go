package usecase_test

import (
	"context"
	"testing"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
)

func TestCoordinator_CancelForTimeout(t *testing.T) {
	t.Run("cancels a pending request", func(t *testing.T) {
		c, m := newTestCoordinator()
		seedTransaction(m, &domain.Transaction{
			ID: "tx-1", State: domain.StatePending, Category: domain.CategoryDeposit,
			PlayerID: "player-1", Amount: 1000,
		})

		if err := c.CancelForTimeout(context.Background(), "tx-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stored, _ := m.transactions.GetByID(context.Background(), "tx-1")
		if stored.State != domain.StateCancelled {
			t.Errorf("expected cancelled, got %s", stored.State)
		}
		if stored.StateReason != usecase.TimeoutReason {
			t.Errorf("expected timeout reason, got %q", stored.StateReason)
		}
		if len(m.notifications.All()) != 1 {
			t.Error("expected a persistent notification for the player")
		}
	})

	t.Run("reported transactions are never timed out", func(t *testing.T) {
		c, m := newTestCoordinator()
		seedTransaction(m, &domain.Transaction{
			ID: "tx-1", State: domain.StateReported, Category: domain.CategoryDeposit,
			PlayerID: "player-1", CashierID: "cashier-1", Amount: 1000,
		})

		if err := c.CancelForTimeout(context.Background(), "tx-1"); err != nil {
			t.Fatalf("expected a no-op, got %v", err)
		}

		stored, _ := m.transactions.GetByID(context.Background(), "tx-1")
		if stored.State != domain.StateReported {
			t.Errorf("expected state untouched, got %s", stored.State)
		}
		if len(m.router.Events) != 0 {
			t.Error("expected no notifications for a no-op")
		}
	})

	t.Run("terminal transactions are a no-op", func(t *testing.T) {
		c, m := newTestCoordinator()
		seedTransaction(m, &domain.Transaction{
			ID: "tx-1", State: domain.StateCompleted, Category: domain.CategoryDeposit,
			PlayerID: "player-1", CashierID: "cashier-1", Amount: 1000,
		})

		if err := c.CancelForTimeout(context.Background(), "tx-1"); err != nil {
			t.Fatalf("expected a no-op, got %v", err)
		}
	})

	t.Run("a held guard slot swallows the timer", func(t *testing.T) {
		c, m := newTestCoordinator()
		seedTransaction(m, &domain.Transaction{
			ID: "tx-1", State: domain.StatePending, Category: domain.CategoryDeposit,
			PlayerID: "player-1", Amount: 1000,
		})

		// Hold the slot open by blocking a concurrent cancel inside the
		// guard, then fire the timer against the same id.
		entered := make(chan struct{})
		release := make(chan struct{})
		m.transactions.GetByIDForUpdateFunc = func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
			close(entered)
			<-release
			return m.transactions.GetByID(ctx, id)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = c.Cancel(context.Background(), usecase.CancelInput{
				TransactionID: "tx-1",
				PlayerID:      "player-1",
			})
		}()

		<-entered
		if err := c.CancelForTimeout(context.Background(), "tx-1"); err != nil {
			t.Fatalf("expected busy to be swallowed, got %v", err)
		}
		close(release)
		<-done
	})

	t.Run("frees an assigned cashier on in_progress expiry", func(t *testing.T) {
		c, m := newTestCoordinator()
		seedTransaction(m, &domain.Transaction{
			ID: "tx-1", State: domain.StateInProgress, Category: domain.CategoryDeposit,
			PlayerID: "player-1", CashierID: "cashier-1", Amount: 1000,
		})

		if err := c.CancelForTimeout(context.Background(), "tx-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if busy, ok := m.router.Busy["cashier-1"]; !ok || busy {
			t.Error("expected the cashier returned to the pool")
		}
		if len(m.router.TornDown) != 1 {
			t.Error("expected channel teardown")
		}
	})
}
