package domain

import (
	"time"
)

// Role is the kind of connected identity.
type Role string

const (
	RolePlayer  Role = "player"
	RoleCashier Role = "cashier"
	RoleAdmin   Role = "admin"
)

var validRoles = map[Role]bool{
	RolePlayer:  true,
	RoleCashier: true,
	RoleAdmin:   true,
}

// IsValid checks if the role is a valid role.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// Party is a balance-holding participant: a player or a cashier. Balance is
// integer minor currency units and is mutated only inside the ledger's
// atomic unit.
type Party struct {
	ID         string
	Name       string
	Role       Role
	ExternalID string
	Balance    int64
	Version    int64
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateDebit checks if the party balance can cover amount.
func (p *Party) ValidateDebit(amount int64) error {
	if p.Balance-amount < 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// ApplyDelta returns the new balance after applying delta.
func (p *Party) ApplyDelta(delta int64) int64 {
	return p.Balance + delta
}
