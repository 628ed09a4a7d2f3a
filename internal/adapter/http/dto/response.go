package dto

import (
	"time"

	"github.com/iho/cashdesk/internal/domain"
)

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID            string                 `json:"id"`
	Reference     string                 `json:"reference"`
	Category      domain.Category        `json:"category"`
	Direction     domain.Direction       `json:"direction"`
	State         domain.State           `json:"state"`
	PlayerID      string                 `json:"player_id"`
	CashierID     string                 `json:"cashier_id,omitempty"`
	ExternalID    string                 `json:"external_id,omitempty"`
	Amount        int64                  `json:"amount"`
	BalanceBefore *int64                 `json:"balance_before,omitempty"`
	BalanceAfter  *int64                 `json:"balance_after,omitempty"`
	Payment       domain.PaymentDetails  `json:"payment"`
	Rejection     *domain.Rejection      `json:"rejection,omitempty"`
	Adjustment    *domain.Adjustment     `json:"adjustment,omitempty"`
	RoomID        string                 `json:"room_id,omitempty"`
	CounterpartID string                 `json:"counterpart_id,omitempty"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
	StateReason   string                 `json:"state_reason,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	AssignedAt    *time.Time             `json:"assigned_at,omitempty"`
	ReportedAt    *time.Time             `json:"reported_at,omitempty"`
	ConfirmedAt   *time.Time             `json:"confirmed_at,omitempty"`
	ProcessedAt   *time.Time             `json:"processed_at,omitempty"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:            t.ID,
		Reference:     t.Reference,
		Category:      t.Category,
		Direction:     t.Direction,
		State:         t.State,
		PlayerID:      t.PlayerID,
		CashierID:     t.CashierID,
		ExternalID:    t.ExternalID,
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Payment:       t.Payment,
		Rejection:     t.Rejection,
		Adjustment:    t.Adjustment,
		RoomID:        t.RoomID,
		CounterpartID: t.CounterpartID,
		Metadata:      t.Metadata,
		StateReason:   t.StateReason,
		CreatedAt:     t.CreatedAt,
		AssignedAt:    t.AssignedAt,
		ReportedAt:    t.ReportedAt,
		ConfirmedAt:   t.ConfirmedAt,
		ProcessedAt:   t.ProcessedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txns []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// PartyResponse represents a party in API responses.
type PartyResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Role       domain.Role `json:"role"`
	ExternalID string      `json:"external_id,omitempty"`
	Balance    int64       `json:"balance"`
	Version    int64       `json:"version"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// PartyFromDomain converts a domain party to a response.
func PartyFromDomain(p *domain.Party) *PartyResponse {
	return &PartyResponse{
		ID:         p.ID,
		Name:       p.Name,
		Role:       p.Role,
		ExternalID: p.ExternalID,
		Balance:    p.Balance,
		Version:    p.Version,
		Active:     p.Active,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// AuditLogResponse represents an audit log entry in API responses.
type AuditLogResponse struct {
	ID           string      `json:"id"`
	ActorID      string      `json:"actor_id"`
	ActorRole    domain.Role `json:"actor_role"`
	Action       string      `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id"`
	BeforeState  domain.JSON `json:"before_state,omitempty"`
	AfterState   domain.JSON `json:"after_state,omitempty"`
	Status       string      `json:"status"`
	Priority     string      `json:"priority"`
	Detail       string      `json:"detail,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// AuditLogFromDomain converts a domain audit log to a response.
func AuditLogFromDomain(l *domain.AuditLog) *AuditLogResponse {
	return &AuditLogResponse{
		ID:           l.ID,
		ActorID:      l.ActorID,
		ActorRole:    l.ActorRole,
		Action:       l.Action,
		ResourceType: l.ResourceType,
		ResourceID:   l.ResourceID,
		BeforeState:  l.BeforeState,
		AfterState:   l.AfterState,
		Status:       l.Status,
		Priority:     l.Priority,
		Detail:       l.Detail,
		CreatedAt:    l.CreatedAt,
	}
}

// AuditLogsFromDomain converts domain audit logs to responses.
func AuditLogsFromDomain(logs []*domain.AuditLog) []*AuditLogResponse {
	result := make([]*AuditLogResponse, len(logs))
	for i, l := range logs {
		result[i] = AuditLogFromDomain(l)
	}
	return result
}

// ListResponse wraps a paginated collection.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
