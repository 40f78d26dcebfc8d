package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/shopledger/internal/adapter/http/dto"
	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	ReconcileParty(ctx context.Context, kind domain.PartyKind, id string) (*usecase.ReconciliationResult, error)
	GenerateReport(ctx context.Context, kind domain.PartyKind) (*usecase.ReconciliationReport, error)
}

// ReconciliationHandler compares stored balances against entry totals.
type ReconciliationHandler struct {
	kind    domain.PartyKind
	reconUC ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler for kind.
func NewReconciliationHandler(kind domain.PartyKind, reconUC ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{kind: kind, reconUC: reconUC}
}

// Party reconciles a single party.
func (h *ReconciliationHandler) Party(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconUC.ReconcileParty(r.Context(), h.kind, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to reconcile", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromUseCase(result))
}

// Report reconciles every party of the handler's kind.
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconUC.GenerateReport(r.Context(), h.kind)
	if err != nil {
		writeDomainError(w, r, "failed to generate reconciliation report", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportFromUseCase(report))
}
