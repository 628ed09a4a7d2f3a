package ws

import "encoding/json"

// Message is the inbound client frame. Type selects the operation, Data
// carries its operation-specific payload.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the outbound frame. Every push and reply uses it.
type Response struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorPayload tells the client which operation failed and why.
type ErrorPayload struct {
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
}

// Inbound message types.
const (
	// Player operations
	MsgRequestTransaction = "request_transaction"
	MsgReportPayment      = "report_payment"
	MsgCancelTransaction  = "cancel_transaction"

	// Cashier operations
	MsgAcceptTransaction  = "accept_transaction"
	MsgAdjustAmount       = "adjust_amount"
	MsgConfirmTransaction = "confirm_transaction"
	MsgRejectTransaction  = "reject_transaction"
	MsgSetAvailability    = "set_availability"

	// Either side
	MsgEscalateTransaction = "escalate_transaction"

	// Admin operations
	MsgResumeTransaction = "resume_transaction"
	MsgRevertTransaction = "revert_transaction"

	// Read operations
	MsgGetTransaction      = "get_transaction"
	MsgMyPending           = "my_pending"
	MsgNeedingVerification = "needing_verification"
	MsgOpenForReview       = "open_for_review"
	MsgHistory             = "history"
)

type requestPayload struct {
	Category   string         `json:"category"`
	Amount     int64          `json:"amount"`
	ExternalID string         `json:"external_id,omitempty"`
	RoomID     string         `json:"room_id,omitempty"`
	Method     string         `json:"method,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type transactionPayload struct {
	TransactionID string `json:"transaction_id"`
}

type acceptPayload struct {
	TransactionID string `json:"transaction_id"`
	Method        string `json:"method,omitempty"`
	Counterparty  string `json:"counterparty,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type reportPayload struct {
	TransactionID string `json:"transaction_id"`
	Method        string `json:"method,omitempty"`
	Counterparty  string `json:"counterparty,omitempty"`
	ProofRef      string `json:"proof_ref,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type adjustPayload struct {
	TransactionID string `json:"transaction_id"`
	NewAmount     int64  `json:"new_amount"`
	Reason        string `json:"reason"`
}

type reasonPayload struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	EvidenceRef   string `json:"evidence_ref,omitempty"`
}

type availabilityPayload struct {
	Available bool `json:"available"`
}

type resumePayload struct {
	TransactionID string `json:"transaction_id"`
	Target        string `json:"target"`
	Reason        string `json:"reason"`
}

type listPayload struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}
