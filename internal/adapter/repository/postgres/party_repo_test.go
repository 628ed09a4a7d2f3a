package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"

	"github.com/iho/cashdesk/internal/domain"
)

func TestPartyUpdateBalanceVersionConflict(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectExec("UPDATE parties").
		WithArgs("player-1", int64(1500), pgxmock.AnyArg(), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectRollback()

	manager := newTxManagerWithPool(mockPool)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	repo := &PartyRepository{}
	err = repo.UpdateBalance(context.Background(), tx, "player-1", 1500, 3, time.Now())
	if !errors.Is(err, domain.ErrWriteConflict) {
		t.Fatalf("expected ErrWriteConflict on stale version, got %v", err)
	}

	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestPartyUpdateBalanceSuccess(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectExec("UPDATE parties").
		WithArgs("cashier-1", int64(99500), pgxmock.AnyArg(), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()

	manager := newTxManagerWithPool(mockPool)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	repo := &PartyRepository{}
	if err := repo.UpdateBalance(context.Background(), tx, "cashier-1", 99500, 7, time.Now()); err != nil {
		t.Fatalf("expected balance update to succeed, got %v", err)
	}

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestGetByIDsForUpdateMissingParty(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "name", "role", "external_id", "balance", "version", "active", "created_at", "updated_at",
	}).AddRow("cashier-1", "Desk 1", domain.RoleCashier, "", int64(100000), int64(1), true, now, now)

	mockPool.ExpectQuery("SELECT (.+) FROM parties").
		WithArgs([]string{"cashier-1", "player-9"}).
		WillReturnRows(rows)
	mockPool.ExpectRollback()

	manager := newTxManagerWithPool(mockPool)
	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	repo := &PartyRepository{}
	_, err = repo.GetByIDsForUpdate(context.Background(), tx, []string{"cashier-1", "player-9"})
	if !errors.Is(err, domain.ErrPartyNotFound) {
		t.Fatalf("expected ErrPartyNotFound for short row set, got %v", err)
	}

	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	assertExpectations(t, mockPool)
}
