package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
)

const partyColumns = `id, name, role, external_id, balance, version, active, created_at, updated_at`

// PartyRepository implements usecase.PartyRepository.
type PartyRepository struct {
	pool *pgxpool.Pool
}

// NewPartyRepository creates a new PartyRepository.
func NewPartyRepository(pool *pgxpool.Pool) *PartyRepository {
	return &PartyRepository{pool: pool}
}

// Create inserts a new party.
func (r *PartyRepository) Create(ctx context.Context, party *domain.Party) error {
	query := `
		INSERT INTO parties (` + partyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		party.ID, party.Name, party.Role, party.ExternalID,
		party.Balance, party.Version, party.Active,
		party.CreatedAt, party.UpdatedAt,
	)

	return err
}

// GetByID retrieves a party by ID.
func (r *PartyRepository) GetByID(ctx context.Context, id string) (*domain.Party, error) {
	return scanPartyRow(r.pool.QueryRow(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE id = $1`, id))
}

// GetByIDForUpdate retrieves a party by ID with a row lock.
func (r *PartyRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Party, error) {
	return scanPartyRow(pgxTxOf(tx).QueryRow(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE id = $1 FOR UPDATE`, id))
}

// GetByIDsForUpdate locks multiple parties in a single statement. Rows come
// back ordered by id so callers lock in a deterministic order.
func (r *PartyRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Party, error) {
	query := `
		SELECT ` + partyColumns + `
		FROM parties
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`

	rows, err := pgxTxOf(tx).Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []*domain.Party
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, party)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(parties) != len(ids) {
		return nil, domain.ErrPartyNotFound
	}

	return parties, nil
}

// UpdateBalance writes a new balance guarded by an optimistic version check.
// The version argument is the version the caller read; the row is bumped to
// version+1. Zero rows affected means the row moved underneath us.
func (r *PartyRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance, version int64, updatedAt time.Time) error {
	query := `
		UPDATE parties
		SET balance = $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $4
	`

	tag, err := pgxTxOf(tx).Exec(ctx, query, id, balance, updatedAt, version)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrWriteConflict
	}

	return nil
}

// ListActiveByRole lists all active parties with the given role.
func (r *PartyRepository) ListActiveByRole(ctx context.Context, role domain.Role) ([]*domain.Party, error) {
	query := `
		SELECT ` + partyColumns + `
		FROM parties
		WHERE role = $1 AND active
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []*domain.Party
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, party)
	}

	return parties, rows.Err()
}

func scanPartyRow(row pgx.Row) (*domain.Party, error) {
	party, err := scanParty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPartyNotFound
		}

		return nil, err
	}

	return party, nil
}

func scanParty(row pgx.Row) (*domain.Party, error) {
	var party domain.Party

	err := row.Scan(
		&party.ID, &party.Name, &party.Role, &party.ExternalID,
		&party.Balance, &party.Version, &party.Active,
		&party.CreatedAt, &party.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &party, nil
}
