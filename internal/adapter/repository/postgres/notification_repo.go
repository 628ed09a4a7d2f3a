package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashdesk/internal/domain"
)

const notificationColumns = `id, recipient_id, type, title, body, data, dedupe_key, delivered, delivered_at, created_at`

// NotificationRepository implements usecase.NotificationRepository.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a notification. A duplicate dedupe key is swallowed and the
// existing row is returned instead.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	data := []byte(`{}`)
	if n.Data != nil {
		var err error
		data, err = json.Marshal(n.Data)
		if err != nil {
			return nil, err
		}
	}

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (dedupe_key) WHERE dedupe_key <> '' DO NOTHING
		RETURNING ` + notificationColumns

	created, err := scanNotification(r.pool.QueryRow(ctx, query,
		n.ID, n.RecipientID, n.Type, n.Title, n.Body,
		data, n.DedupeKey, n.Delivered, n.DeliveredAt, n.CreatedAt,
	))
	if err == nil {
		return created, nil
	}

	if err != pgx.ErrNoRows {
		return nil, err
	}

	// Conflict: fetch the row that won.
	existing, err := scanNotification(r.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE dedupe_key = $1`, n.DedupeKey))
	if err != nil {
		return nil, err
	}

	return existing, nil
}

// GetUndelivered lists undelivered notifications oldest first.
func (r *NotificationRepository) GetUndelivered(ctx context.Context, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE NOT delivered
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkDelivered flags a notification as delivered.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	query := `
		UPDATE notifications
		SET delivered = TRUE, delivered_at = $2
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, deliveredAt)
	return err
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n    domain.Notification
		data []byte
	)

	err := row.Scan(
		&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Body,
		&data, &n.DedupeKey, &n.Delivered, &n.DeliveredAt, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if data != nil {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, err
		}
	}

	return &n, nil
}
