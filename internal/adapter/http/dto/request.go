package dto

import (
	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
)

// ResumeRequest asks to move a reviewed transaction back into the flow.
type ResumeRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// ToUseCaseInput converts to use case input.
func (r *ResumeRequest) ToUseCaseInput(transactionID, adminID string) usecase.ResumeInput {
	return usecase.ResumeInput{
		TransactionID: transactionID,
		AdminID:       adminID,
		Target:        domain.State(r.Target),
		Reason:        r.Reason,
	}
}

// RevertRequest asks to compensate a completed transaction.
type RevertRequest struct {
	Reason string `json:"reason"`
}

// ToUseCaseInput converts to use case input.
func (r *RevertRequest) ToUseCaseInput(transactionID, adminID string) usecase.RevertInput {
	return usecase.RevertInput{
		TransactionID: transactionID,
		AdminID:       adminID,
		Reason:        r.Reason,
	}
}

// CreatePartyRequest registers a new player, cashier, or admin.
type CreatePartyRequest struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	ExternalID string `json:"external_id,omitempty"`
	Balance    int64  `json:"balance,omitempty"`
}
