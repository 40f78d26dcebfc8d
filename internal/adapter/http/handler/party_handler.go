package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/shopledger/internal/adapter/http/dto"
	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

// PartyService defines the behavior needed by PartyHandler.
type PartyService interface {
	CreateParty(ctx context.Context, input usecase.CreatePartyInput) (*domain.Party, error)
	GetParty(ctx context.Context, kind domain.PartyKind, id string) (*domain.Party, error)
	ListParties(ctx context.Context, filter domain.PartyFilter) ([]*domain.Party, error)
	UpdateParty(ctx context.Context, input usecase.UpdatePartyInput) (*domain.Party, error)
	DeleteParty(ctx context.Context, actorID string, kind domain.PartyKind, id string) (*domain.Party, error)
}

// EntryLister lists the entries booked against a party.
type EntryLister interface {
	ListEntries(ctx context.Context, filter domain.EntryFilter) ([]*domain.Entry, error)
}

// PartyHandler handles shop or customer HTTP requests. One handler serves one kind.
type PartyHandler struct {
	kind    domain.PartyKind
	partyUC PartyService
	entries EntryLister
}

// NewPartyHandler creates a new PartyHandler for kind.
func NewPartyHandler(kind domain.PartyKind, partyUC PartyService, entries EntryLister) *PartyHandler {
	return &PartyHandler{kind: kind, partyUC: partyUC, entries: entries}
}

// Create registers a new party.
func (h *PartyHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req dto.CreatePartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	party, err := h.partyUC.CreateParty(r.Context(), req.ToUseCaseInput(h.kind, actor))
	h.writeMutation(w, r, http.StatusCreated, "failed to create "+h.noun(), party, err)
}

// Get retrieves a party by ID.
func (h *PartyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing "+h.noun()+" ID", "")
		return
	}

	party, err := h.partyUC.GetParty(r.Context(), h.kind, id)
	if err != nil {
		writeDomainError(w, r, "failed to get "+h.noun(), err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PartyFromDomain(party))
}

// List lists parties of the handler's kind.
func (h *PartyHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	parties, err := h.partyUC.ListParties(r.Context(), domain.PartyFilter{
		Kind:     h.kind,
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Limit:    parseIntQuery(r, "limit", 20),
		Offset:   parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list "+h.noun()+"s", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PartiesFromDomain(parties))
}

// Update changes the descriptive fields of a party.
func (h *PartyHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req dto.UpdatePartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	party, err := h.partyUC.UpdateParty(r.Context(), req.ToUseCaseInput(h.kind, chi.URLParam(r, "id"), actor))
	h.writeMutation(w, r, http.StatusOK, "failed to update "+h.noun(), party, err)
}

// Delete soft-deletes a party.
func (h *PartyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	party, err := h.partyUC.DeleteParty(r.Context(), actor, h.kind, chi.URLParam(r, "id"))
	h.writeMutation(w, r, http.StatusOK, "failed to delete "+h.noun(), party, err)
}

// ListEntries lists the loans and payments booked against a party.
func (h *PartyHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.partyUC.GetParty(r.Context(), h.kind, id); err != nil {
		writeDomainError(w, r, "failed to get "+h.noun(), err)
		return
	}

	q := r.URL.Query()
	entries, err := h.entries.ListEntries(r.Context(), domain.EntryFilter{
		Kind:    domain.EntryKind(q.Get("kind")),
		PartyID: id,
		Month:   q.Get("month"),
		Year:    parseIntQuery(r, "year", 0),
		Limit:   parseIntQuery(r, "limit", 20),
		Offset:  parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

func (h *PartyHandler) writeMutation(w http.ResponseWriter, r *http.Request, status int, message string, party *domain.Party, err error) {
	if err != nil && (party == nil || !unaudited(w, err)) {
		writeDomainError(w, r, message, err)
		return
	}

	resp := dto.PartyFromDomain(party)
	if err != nil {
		resp.Audited = falsePtr()
	}
	writeJSON(w, status, resp)
}

func (h *PartyHandler) noun() string {
	if h.kind == domain.PartyKindShop {
		return "shop"
	}
	return "customer"
}
