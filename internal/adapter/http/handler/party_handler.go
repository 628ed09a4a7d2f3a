package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashdesk/internal/adapter/http/dto"
	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
)

// PartyHandler manages party registration for back-office tooling.
type PartyHandler struct {
	parties usecase.PartyRepository
	ids     usecase.IDGenerator
}

// NewPartyHandler creates a new PartyHandler.
func NewPartyHandler(parties usecase.PartyRepository, ids usecase.IDGenerator) *PartyHandler {
	return &PartyHandler{
		parties: parties,
		ids:     ids,
	}
}

// Create registers a new party.
func (h *PartyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	role := domain.Role(req.Role)
	if !role.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid role", req.Role)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", "")
		return
	}
	if req.Balance < 0 {
		writeError(w, http.StatusBadRequest, "balance must not be negative", "")
		return
	}

	now := time.Now()
	party := &domain.Party{
		ID:         h.ids.Generate(),
		Name:       req.Name,
		Role:       role,
		ExternalID: req.ExternalID,
		Balance:    req.Balance,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.parties.Create(r.Context(), party); err != nil {
		writeError(w, mapDomainError(err), "failed to create party", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.PartyFromDomain(party))
}

// Get returns a party by ID.
func (h *PartyHandler) Get(w http.ResponseWriter, r *http.Request) {
	party, err := h.parties.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get party", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.PartyFromDomain(party))
}
