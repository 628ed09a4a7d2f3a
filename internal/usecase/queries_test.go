package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/iho/cashdesk/internal/domain"
)

func TestCoordinator_GetByReference(t *testing.T) {
	c, m := newTestCoordinator()
	seedTransaction(m, &domain.Transaction{
		ID:        "tx-1",
		Reference: "DEP-01HZXW3E5JT4D8GJ4N8RDC2M7Q",
		State:     domain.StatePending,
		Category:  domain.CategoryDeposit,
		PlayerID:  "player-1",
		Amount:    1000,
	})

	t.Run("resolves a valid reference", func(t *testing.T) {
		txn, err := c.GetByReference(context.Background(), "DEP-01HZXW3E5JT4D8GJ4N8RDC2M7Q")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if txn.ID != "tx-1" {
			t.Errorf("expected tx-1, got %s", txn.ID)
		}
	})

	t.Run("rejects a malformed reference before hitting the store", func(t *testing.T) {
		_, err := c.GetByReference(context.Background(), "not-a-reference")
		if !errors.Is(err, domain.ErrInvalidReference) {
			t.Fatalf("expected ErrInvalidReference, got %v", err)
		}
	})

	t.Run("unknown reference is not found", func(t *testing.T) {
		_, err := c.GetByReference(context.Background(), "WDR-01HZXW3E5JT4D8GJ4N8RDC2M7Q")
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			t.Fatalf("expected ErrTransactionNotFound, got %v", err)
		}
	})
}

func TestCoordinator_GetByReferenceCachesTerminal(t *testing.T) {
	c, m := newTestCoordinator()

	const (
		openRef = "DEP-01HZXW3E5JT4D8GJ4N8RDC2M7Q"
		doneRef = "WDR-01HZXW3E5JT4D8GJ4N8RDC2M7R"
	)

	seedTransaction(m, &domain.Transaction{
		ID: "tx-open", Reference: openRef, State: domain.StatePending,
		Category: domain.CategoryDeposit, PlayerID: "player-1", Amount: 1000,
	})
	done := seedTransaction(m, &domain.Transaction{
		ID: "tx-done", Reference: doneRef, State: domain.StateCompleted,
		Category: domain.CategoryWithdrawal, PlayerID: "player-1", CashierID: "cashier-1", Amount: 700,
	})

	if _, err := c.GetByReference(context.Background(), openRef); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.cache.Contains("reference:" + openRef) {
		t.Error("open transactions must not be cached")
	}

	if _, err := c.GetByReference(context.Background(), doneRef); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.cache.Contains("reference:" + doneRef) {
		t.Fatal("expected the completed transaction to be cached")
	}

	// A second read is served from the cache, not the store.
	done.Amount = 1
	m.transactions.Put(done)

	txn, err := c.GetByReference(context.Background(), doneRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txn.Amount != 700 {
		t.Errorf("expected the cached snapshot with amount 700, got %d", txn.Amount)
	}
}

func TestCoordinator_MyPending(t *testing.T) {
	c, m := newTestCoordinator()

	open := []domain.State{
		domain.StatePending,
		domain.StateInProgress,
		domain.StateReported,
	}
	for i, state := range open {
		seedTransaction(m, &domain.Transaction{
			ID:        string(rune('a' + i)),
			State:     state,
			Category:  domain.CategoryDeposit,
			PlayerID:  "player-1",
			CashierID: "cashier-1",
			Amount:    1000,
		})
	}
	seedTransaction(m, &domain.Transaction{
		ID: "done", State: domain.StateCompleted, Category: domain.CategoryDeposit,
		PlayerID: "player-1", CashierID: "cashier-1", Amount: 1000,
	})
	seedTransaction(m, &domain.Transaction{
		ID: "other", State: domain.StatePending, Category: domain.CategoryDeposit,
		PlayerID: "player-2", Amount: 1000,
	})

	txns, err := c.MyPending(context.Background(), "player-1", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 open transactions, got %d", len(txns))
	}
	for _, txn := range txns {
		if txn.State.IsTerminal() {
			t.Errorf("terminal transaction %s leaked into pending", txn.ID)
		}
		if txn.PlayerID != "player-1" {
			t.Errorf("foreign transaction %s leaked into pending", txn.ID)
		}
	}

	t.Run("offset beyond the set is empty", func(t *testing.T) {
		txns, err := c.MyPending(context.Background(), "player-1", 10, 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(txns) != 0 {
			t.Errorf("expected empty page, got %d", len(txns))
		}
	})

	t.Run("limit caps the page", func(t *testing.T) {
		txns, err := c.MyPending(context.Background(), "player-1", 2, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(txns) != 2 {
			t.Errorf("expected 2, got %d", len(txns))
		}
	})
}

func TestCoordinator_CashierQueues(t *testing.T) {
	c, m := newTestCoordinator()
	seedTransaction(m, &domain.Transaction{
		ID: "tx-1", State: domain.StateReported, Category: domain.CategoryDeposit,
		PlayerID: "player-1", CashierID: "cashier-1", Amount: 1000,
	})
	seedTransaction(m, &domain.Transaction{
		ID: "tx-2", State: domain.StateReported, Category: domain.CategoryDeposit,
		PlayerID: "player-2", CashierID: "cashier-2", Amount: 1000,
	})
	seedTransaction(m, &domain.Transaction{
		ID: "tx-3", State: domain.StateRequiresAdminReview, Category: domain.CategoryDeposit,
		PlayerID: "player-3", CashierID: "cashier-1", Amount: 1000,
	})

	verification, err := c.NeedingVerification(context.Background(), "cashier-1", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verification) != 1 || verification[0].ID != "tx-1" {
		t.Errorf("expected only tx-1 in the verification queue, got %v", verification)
	}

	review, err := c.OpenForReview(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(review) != 1 || review[0].ID != "tx-3" {
		t.Errorf("expected only tx-3 in the review queue, got %v", review)
	}
}

func TestCoordinator_ActiveForParticipant(t *testing.T) {
	c, m := newTestCoordinator()
	seedTransaction(m, &domain.Transaction{
		ID: "tx-1", State: domain.StateInProgress, Category: domain.CategoryDeposit,
		PlayerID: "player-1", CashierID: "cashier-1", Amount: 1000,
	})
	seedTransaction(m, &domain.Transaction{
		ID: "tx-2", State: domain.StateCancelled, Category: domain.CategoryDeposit,
		PlayerID: "player-1", Amount: 1000,
	})

	// Both sides of tx-1 see it; the cancelled one is invisible.
	for _, identity := range []string{"player-1", "cashier-1"} {
		txns, err := c.ActiveForParticipant(context.Background(), identity)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(txns) != 1 || txns[0].ID != "tx-1" {
			t.Errorf("expected %s to see exactly tx-1, got %v", identity, txns)
		}
	}
}

func TestClampListThroughHistory(t *testing.T) {
	c, m := newTestCoordinator()

	captured := struct{ limit, offset int }{}
	m.transactions.ListByPlayerFunc = func(ctx context.Context, playerID string, limit, offset int) ([]*domain.Transaction, error) {
		captured.limit = limit
		captured.offset = offset
		return nil, nil
	}

	if _, err := c.History(context.Background(), "player-1", 0, -5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.limit != 20 || captured.offset != 0 {
		t.Errorf("expected defaults 20/0, got %d/%d", captured.limit, captured.offset)
	}

	if _, err := c.History(context.Background(), "player-1", 500, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.limit != 100 {
		t.Errorf("expected the limit capped at 100, got %d", captured.limit)
	}
}
