package domain

import "errors"

var (
	// Transaction errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidCategory     = errors.New("unknown transaction category")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrMissingPlayer       = errors.New("transaction requires a player")
	ErrMissingCashier      = errors.New("transaction requires an assigned cashier")
	ErrRejectionSet        = errors.New("rejection metadata is set once")
	ErrReasonRequired      = errors.New("a reason is required")

	// Party errors
	ErrPartyNotFound     = errors.New("party not found")
	ErrPartyInactive     = errors.New("party is not active")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWrongRole         = errors.New("operation not permitted for this role")

	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")

	// Coordination errors
	ErrBusy          = errors.New("transaction is being processed, try again")
	ErrWriteConflict = errors.New("concurrent modification, retry")
	ErrNotConnected  = errors.New("identity has no live connection")
)

// Authentication errors
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)
