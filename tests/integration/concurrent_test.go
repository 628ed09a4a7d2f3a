package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
	"github.com/iho/cashdesk/tests/testutil"
)

func TestConcurrentConfirmAppliesOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()

	testDB.TruncateAll(ctx)

	e := newEngine(t, testDB)

	player := testDB.CreateTestParty(ctx, "alice", domain.RolePlayer, 1000)
	cashier := testDB.CreateTestParty(ctx, "carol", domain.RoleCashier, 10000)
	e.connect(cashier)

	txn, err := e.coordinator.Request(ctx, usecase.RequestInput{
		PlayerID: player.ID,
		Category: domain.CategoryDeposit,
		Amount:   500,
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if _, err = e.coordinator.Accept(ctx, usecase.AcceptInput{
		TransactionID: txn.ID,
		CashierID:     cashier.ID,
	}); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if _, err = e.coordinator.ReportPayment(ctx, usecase.ReportPaymentInput{
		TransactionID: txn.ID,
		PlayerID:      player.ID,
		Payment:       domain.PaymentDetails{ProofRef: "slip-1"},
	}); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	const attempts = 5

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []error
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := e.coordinator.Confirm(ctx, usecase.ConfirmInput{
				TransactionID: txn.ID,
				CashierID:     cashier.ID,
			})

			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}()
	}

	wg.Wait()

	succeeded := 0

	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrInvalidTransition):
			// Latecomers are rejected, either while the winner holds the
			// slot or after the transaction has completed.
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Errorf("expected exactly one confirm to win, got %d", succeeded)
	}

	// The balance moved exactly once.
	playerRow, _ := e.parties.GetByID(ctx, player.ID)
	if playerRow.Balance != 1500 {
		t.Errorf("expected player balance 1500, got %d", playerRow.Balance)
	}
}

func TestConcurrentConfirmsOnSamePlayer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()

	testDB.TruncateAll(ctx)

	e := newEngine(t, testDB)

	player := testDB.CreateTestParty(ctx, "alice", domain.RolePlayer, 0)

	const deposits = 4

	cashiers := make([]*domain.Party, deposits)
	txns := make([]*domain.Transaction, deposits)

	for i := 0; i < deposits; i++ {
		cashiers[i] = testDB.CreateTestParty(ctx, "cashier", domain.RoleCashier, 10000)
		e.connect(cashiers[i])
	}

	for i := 0; i < deposits; i++ {
		txn, err := e.coordinator.Request(ctx, usecase.RequestInput{
			PlayerID: player.ID,
			Category: domain.CategoryDeposit,
			Amount:   100,
		})
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}

		if _, err = e.coordinator.Accept(ctx, usecase.AcceptInput{
			TransactionID: txn.ID,
			CashierID:     cashiers[i].ID,
		}); err != nil {
			t.Fatalf("accept %d failed: %v", i, err)
		}

		if _, err = e.coordinator.ReportPayment(ctx, usecase.ReportPaymentInput{
			TransactionID: txn.ID,
			PlayerID:      player.ID,
			Payment:       domain.PaymentDetails{ProofRef: "slip"},
		}); err != nil {
			t.Fatalf("report %d failed: %v", i, err)
		}

		txns[i] = txn
	}

	var wg sync.WaitGroup

	errs := make([]error, deposits)

	for i := 0; i < deposits; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, errs[i] = e.coordinator.Confirm(ctx, usecase.ConfirmInput{
				TransactionID: txns[i].ID,
				CashierID:     cashiers[i].ID,
			})
		}(i)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("confirm %d failed: %v", i, err)
		}
	}

	playerRow, _ := e.parties.GetByID(ctx, player.ID)
	if playerRow.Balance != deposits*100 {
		t.Errorf("expected player balance %d, got %d", deposits*100, playerRow.Balance)
	}

	for i := range txns {
		stored, err := e.transactions.GetByID(ctx, txns[i].ID)
		if err != nil {
			t.Fatalf("failed to load transaction %d: %v", i, err)
		}

		if stored.State != domain.StateCompleted {
			t.Errorf("transaction %d state %s, expected %s", i, stored.State, domain.StateCompleted)
		}
	}
}
