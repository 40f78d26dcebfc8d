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

// EntryService defines the behavior needed by EntryHandler.
type EntryService interface {
	CreateEntry(ctx context.Context, input usecase.CreateEntryInput) (*domain.Entry, error)
	GetEntry(ctx context.Context, kind domain.EntryKind, id string) (*domain.Entry, error)
	ListEntries(ctx context.Context, filter domain.EntryFilter) ([]*domain.Entry, error)
	UpdateEntry(ctx context.Context, input usecase.UpdateEntryInput) (*domain.Entry, error)
	DeleteEntry(ctx context.Context, actorID string, kind domain.EntryKind, id string) (*domain.Entry, error)
}

// EntryHandler handles loan or payment HTTP requests. One handler serves one kind.
type EntryHandler struct {
	kind    domain.EntryKind
	entryUC EntryService
}

// NewEntryHandler creates a new EntryHandler for kind.
func NewEntryHandler(kind domain.EntryKind, entryUC EntryService) *EntryHandler {
	return &EntryHandler{kind: kind, entryUC: entryUC}
}

// Create books a new entry.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req dto.CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(h.kind, actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	entry, err := h.entryUC.CreateEntry(r.Context(), input)
	h.writeMutation(w, r, http.StatusCreated, "failed to create "+h.noun(), entry, err)
}

// Get retrieves an entry by ID.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing "+h.noun()+" ID", "")
		return
	}

	entry, err := h.entryUC.GetEntry(r.Context(), h.kind, id)
	if err != nil {
		writeDomainError(w, r, "failed to get "+h.noun(), err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// List lists entries of the handler's kind.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	entries, err := h.entryUC.ListEntries(r.Context(), domain.EntryFilter{
		Kind:      h.kind,
		Direction: domain.Direction(q.Get("direction")),
		PartyID:   q.Get("party_id"),
		Month:     q.Get("month"),
		Year:      parseIntQuery(r, "year", 0),
		Limit:     parseIntQuery(r, "limit", 20),
		Offset:    parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list "+h.noun()+"s", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// Update changes an entry's amount or descriptive fields.
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(h.kind, chi.URLParam(r, "id"), actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	entry, err := h.entryUC.UpdateEntry(r.Context(), input)
	h.writeMutation(w, r, http.StatusOK, "failed to update "+h.noun(), entry, err)
}

// Delete soft-deletes an entry and reverses its balance effect.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	entry, err := h.entryUC.DeleteEntry(r.Context(), actor, h.kind, chi.URLParam(r, "id"))
	h.writeMutation(w, r, http.StatusOK, "failed to delete "+h.noun(), entry, err)
}

func (h *EntryHandler) writeMutation(w http.ResponseWriter, r *http.Request, status int, message string, entry *domain.Entry, err error) {
	if err != nil && (entry == nil || !unaudited(w, err)) {
		writeDomainError(w, r, message, err)
		return
	}

	resp := dto.EntryFromDomain(entry)
	if err != nil {
		resp.Audited = falsePtr()
	}
	writeJSON(w, status, resp)
}

func (h *EntryHandler) noun() string {
	if h.kind == domain.EntryKindLoan {
		return "loan"
	}
	return "payment"
}
