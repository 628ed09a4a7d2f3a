package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
)

const transactionColumns = `id, reference, category, direction, state,
	player_id, cashier_id, external_id,
	amount, balance_before, balance_after,
	payment, rejection, adjustment,
	room_id, counterpart_id, metadata, state_reason,
	created_at, assigned_at, reported_at, confirmed_at, processed_at, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create inserts a new transaction record within the given database transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	payment, rejection, adjustment, metadata, err := marshalTransactionJSON(txn)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`

	_, err = pgxTxOf(tx).Exec(ctx, query,
		txn.ID, txn.Reference, txn.Category, txn.Direction, txn.State,
		txn.PlayerID, txn.CashierID, txn.ExternalID,
		txn.Amount, txn.BalanceBefore, txn.BalanceAfter,
		payment, rejection, adjustment,
		txn.RoomID, txn.CounterpartID, metadata, txn.StateReason,
		txn.CreatedAt, txn.AssignedAt, txn.ReportedAt, txn.ConfirmedAt, txn.ProcessedAt, txn.UpdatedAt,
	)

	return err
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.getOne(ctx, r.pool, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a transaction by ID with a row lock.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	return r.getOne(ctx, pgxTxOf(tx),
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

// GetByReference retrieves a transaction by its human-facing reference.
func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return r.getOne(ctx, r.pool,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference)
}

// Update rewrites the mutable portion of a transaction record.
func (r *TransactionRepository) Update(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	payment, rejection, adjustment, metadata, err := marshalTransactionJSON(txn)
	if err != nil {
		return err
	}

	query := `
		UPDATE transactions SET
			state = $2, cashier_id = $3, amount = $4,
			balance_before = $5, balance_after = $6,
			payment = $7, rejection = $8, adjustment = $9,
			counterpart_id = $10, metadata = $11, state_reason = $12,
			assigned_at = $13, reported_at = $14, confirmed_at = $15,
			processed_at = $16, updated_at = $17
		WHERE id = $1
	`

	tag, err := pgxTxOf(tx).Exec(ctx, query,
		txn.ID, txn.State, txn.CashierID, txn.Amount,
		txn.BalanceBefore, txn.BalanceAfter,
		payment, rejection, adjustment,
		txn.CounterpartID, metadata, txn.StateReason,
		txn.AssignedAt, txn.ReportedAt, txn.ConfirmedAt,
		txn.ProcessedAt, txn.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// ListByPlayer lists a player's transactions newest first.
func (r *TransactionRepository) ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.list(ctx, query, playerID, limit, offset)
}

// ListByStates lists transactions currently in any of the given states.
func (r *TransactionRepository) ListByStates(ctx context.Context, states []domain.State, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE state = ANY($1)
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	return r.list(ctx, query, statesToStrings(states), limit, offset)
}

// ListByCashierAndStates lists a cashier's transactions in the given states.
func (r *TransactionRepository) ListByCashierAndStates(ctx context.Context, cashierID string, states []domain.State, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE cashier_id = $1 AND state = ANY($2)
		ORDER BY created_at ASC
		LIMIT $3 OFFSET $4
	`

	return r.list(ctx, query, cashierID, statesToStrings(states), limit, offset)
}

// ListByParticipantAndStates lists transactions in the given states where the
// identity is either the player or the assigned cashier.
func (r *TransactionRepository) ListByParticipantAndStates(ctx context.Context, identity string, states []domain.State) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE (player_id = $1 OR cashier_id = $1) AND state = ANY($2)
		ORDER BY created_at ASC
	`

	return r.list(ctx, query, identity, statesToStrings(states))
}

func (r *TransactionRepository) getOne(ctx context.Context, q querier, query string, args ...any) (*domain.Transaction, error) {
	txn, err := scanTransaction(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	return txn, nil
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn        domain.Transaction
		payment    []byte
		rejection  []byte
		adjustment []byte
		metadata   []byte
	)

	err := row.Scan(
		&txn.ID, &txn.Reference, &txn.Category, &txn.Direction, &txn.State,
		&txn.PlayerID, &txn.CashierID, &txn.ExternalID,
		&txn.Amount, &txn.BalanceBefore, &txn.BalanceAfter,
		&payment, &rejection, &adjustment,
		&txn.RoomID, &txn.CounterpartID, &metadata, &txn.StateReason,
		&txn.CreatedAt, &txn.AssignedAt, &txn.ReportedAt, &txn.ConfirmedAt, &txn.ProcessedAt, &txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if payment != nil {
		if err := json.Unmarshal(payment, &txn.Payment); err != nil {
			return nil, fmt.Errorf("decode payment for %s: %w", txn.ID, err)
		}
	}
	if rejection != nil {
		if err := json.Unmarshal(rejection, &txn.Rejection); err != nil {
			return nil, fmt.Errorf("decode rejection for %s: %w", txn.ID, err)
		}
	}
	if adjustment != nil {
		if err := json.Unmarshal(adjustment, &txn.Adjustment); err != nil {
			return nil, fmt.Errorf("decode adjustment for %s: %w", txn.ID, err)
		}
	}
	if metadata != nil {
		if err := json.Unmarshal(metadata, &txn.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", txn.ID, err)
		}
	}

	return &txn, nil
}

func marshalTransactionJSON(txn *domain.Transaction) (payment, rejection, adjustment, metadata []byte, err error) {
	if payment, err = json.Marshal(txn.Payment); err != nil {
		return nil, nil, nil, nil, err
	}

	if txn.Rejection != nil {
		if rejection, err = json.Marshal(txn.Rejection); err != nil {
			return nil, nil, nil, nil, err
		}
	}

	if txn.Adjustment != nil {
		if adjustment, err = json.Marshal(txn.Adjustment); err != nil {
			return nil, nil, nil, nil, err
		}
	}

	if txn.Metadata == nil {
		metadata = []byte(`{}`)
	} else if metadata, err = json.Marshal(txn.Metadata); err != nil {
		return nil, nil, nil, nil, err
	}

	return payment, rejection, adjustment, metadata, nil
}

func statesToStrings(states []domain.State) []string {
	out := make([]string, 0, len(states))
	for _, s := range states {
		out = append(out, string(s))
	}
	return out
}

func pgxTxOf(tx usecase.Transaction) pgx.Tx {
	return tx.(*Tx).PgxTx()
}
