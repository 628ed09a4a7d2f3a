package domain

import "time"

// Notification is a persistent, out-of-band notification record. Creation is
// idempotent on DedupeKey: a duplicate key is a no-op returning the existing
// row, never an error.
type Notification struct {
	ID          string
	RecipientID string
	Type        string
	Title       string
	Body        string
	Data        map[string]any
	DedupeKey   string
	Delivered   bool
	DeliveredAt *time.Time
	CreatedAt   time.Time
}
