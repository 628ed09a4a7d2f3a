package domain

import (
	"encoding/json"
	"time"
)

// AuditLog represents an audit trail entry for compliance and debugging
type AuditLog struct {
	ID           string
	ActorID      string // Who performed the action (identity or "system")
	ActorRole    Role
	Action       string // What action (transaction.request, recovery.expired, etc.)
	ResourceType string // Type of resource (transaction, party)
	ResourceID   string // ID of the resource
	BeforeState  JSON   // State before the action
	AfterState   JSON   // State after the action
	Status       string // success, failure, error
	Priority     string // normal or high; high flags rows needing human follow-up
	Detail       string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionRequest  AuditAction = "transaction.request"
	AuditActionAccept   AuditAction = "transaction.accept"
	AuditActionReport   AuditAction = "transaction.report"
	AuditActionAdjust   AuditAction = "transaction.adjust"
	AuditActionConfirm  AuditAction = "transaction.confirm"
	AuditActionReject   AuditAction = "transaction.reject"
	AuditActionEscalate AuditAction = "transaction.escalate"
	AuditActionCancel   AuditAction = "transaction.cancel"
	AuditActionTimeout  AuditAction = "transaction.timeout"
	AuditActionResume   AuditAction = "transaction.resume"
	AuditActionRevert   AuditAction = "transaction.revert"

	AuditActionRecoveryExpired AuditAction = "recovery.expired"
)

// Audit priorities
const (
	AuditPriorityNormal = "normal"
	AuditPriorityHigh   = "high"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
	AuditStatusError   AuditStatus = "error"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Priority     string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}
