package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashdesk/internal/adapter/http/dto"
	"github.com/iho/cashdesk/internal/adapter/http/middleware"
	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
)

// TransactionHandler serves the read API and the admin operations. The
// realtime flow itself runs over the websocket endpoint; this surface exists
// for back-office tooling and dashboards.
type TransactionHandler struct {
	coordinator *usecase.Coordinator
	audits      usecase.AuditRepository
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(coordinator *usecase.Coordinator, audits usecase.AuditRepository) *TransactionHandler {
	return &TransactionHandler{
		coordinator: coordinator,
		audits:      audits,
	}
}

// Get returns a transaction by ID.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	txn, err := h.coordinator.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get transaction", err.Error())
		return
	}

	if !h.canView(r, txn) {
		writeError(w, http.StatusForbidden, "forbidden", "not a participant")
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}

// GetByReference returns a transaction by its human-facing reference.
func (h *TransactionHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	txn, err := h.coordinator.GetByReference(r.Context(), reference)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get transaction", err.Error())
		return
	}

	if !h.canView(r, txn) {
		writeError(w, http.StatusForbidden, "forbidden", "not a participant")
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}

// MyPending returns the caller's open transactions.
func (h *TransactionHandler) MyPending(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	txns, err := h.coordinator.MyPending(r.Context(), claims.Identity, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list transactions", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.TransactionResponse]{
		Items:  dto.TransactionsFromDomain(txns),
		Limit:  limit,
		Offset: offset,
	})
}

// History returns the caller's transaction history.
func (h *TransactionHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	txns, err := h.coordinator.History(r.Context(), claims.Identity, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list history", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.TransactionResponse]{
		Items:  dto.TransactionsFromDomain(txns),
		Limit:  limit,
		Offset: offset,
	})
}

// NeedingVerification lists the caller's transactions awaiting confirmation.
func (h *TransactionHandler) NeedingVerification(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	txns, err := h.coordinator.NeedingVerification(r.Context(), claims.Identity, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list transactions", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.TransactionResponse]{
		Items:  dto.TransactionsFromDomain(txns),
		Limit:  limit,
		Offset: offset,
	})
}

// OpenForReview lists transactions awaiting an administrator.
func (h *TransactionHandler) OpenForReview(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	txns, err := h.coordinator.OpenForReview(r.Context(), limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list reviews", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListResponse[*dto.TransactionResponse]{
		Items:  dto.TransactionsFromDomain(txns),
		Limit:  limit,
		Offset: offset,
	})
}

// Resume hands a reviewed transaction back into the flow.
func (h *TransactionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req dto.ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	txn, err := h.coordinator.Resume(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "id"), claims.Identity))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to resume transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(txn))
}

// Revert compensates a completed transaction.
func (h *TransactionHandler) Revert(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req dto.RevertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	txn, err := h.coordinator.Revert(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "id"), claims.Identity))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to revert transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(txn))
}

// AuditTrail lists the audit entries recorded against a transaction.
func (h *TransactionHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	logs, err := h.audits.GetByResourceID(r.Context(), "transaction", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list audit logs", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditLogsFromDomain(logs))
}

func (h *TransactionHandler) canView(r *http.Request, txn *domain.Transaction) bool {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		return false
	}

	return claims.Role == domain.RoleAdmin || txn.IsParticipant(claims.Identity)
}
