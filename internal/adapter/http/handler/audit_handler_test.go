package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/shopledger/internal/adapter/http/dto"
	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

type auditServiceFunc func(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error)

func (f auditServiceFunc) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error) {
	return f(ctx, filter)
}

func TestAuditHandler_ListParsesFilter(t *testing.T) {
	var captured domain.AuditFilter
	h := NewAuditHandler(auditServiceFunc(func(_ context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error) {
		captured = filter
		return []*domain.AuditRecord{{ID: "audit-1", Action: domain.AuditActionCreate, TargetKind: domain.TargetShop}}, nil
	}))

	req := httptest.NewRequest(http.MethodGet,
		"/audits?actor_id=user-1&action=CREATE&target_kind=Shop&start_date=2026-01-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", captured.ActorID)
	assert.Equal(t, domain.AuditActionCreate, captured.Action)
	assert.Equal(t, domain.TargetShop, captured.TargetKind)
	require.NotNil(t, captured.StartDate)
	assert.True(t, captured.StartDate.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, captured.EndDate)
	assert.Equal(t, 50, captured.Limit)

	var resp []dto.AuditRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

func TestAuditHandler_ListRejectsBadDate(t *testing.T) {
	h := NewAuditHandler(auditServiceFunc(func(context.Context, domain.AuditFilter) ([]*domain.AuditRecord, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/audits?end_date=yesterday", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type reconciliationServiceStub struct {
	result *usecase.ReconciliationResult
	report *usecase.ReconciliationReport
	err    error
}

func (s *reconciliationServiceStub) ReconcileParty(context.Context, domain.PartyKind, string) (*usecase.ReconciliationResult, error) {
	return s.result, s.err
}

func (s *reconciliationServiceStub) GenerateReport(context.Context, domain.PartyKind) (*usecase.ReconciliationReport, error) {
	return s.report, s.err
}

func TestReconciliationHandler_Party(t *testing.T) {
	h := NewReconciliationHandler(domain.PartyKindCustomer, &reconciliationServiceStub{
		result: &usecase.ReconciliationResult{
			PartyKind:       domain.PartyKindCustomer,
			PartyID:         "cust-1",
			StoredBalance:   decimal.Zero,
			ComputedBalance: decimal.NewFromInt(-20),
			Difference:      decimal.NewFromInt(20),
		},
	})

	r := chi.NewRouter()
	r.Get("/{id}/reconciliation", h.Party)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cust-1/reconciliation", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ReconciliationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IsReconciled)
	assert.True(t, resp.Difference.Equal(decimal.NewFromInt(20)))
}

func TestReconciliationHandler_Errors(t *testing.T) {
	h := NewReconciliationHandler(domain.PartyKindShop, &reconciliationServiceStub{err: domain.ErrPartyNotFound})

	rec := httptest.NewRecorder()
	h.Party(rec, httptest.NewRequest(http.MethodGet, "/x/reconciliation", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h = NewReconciliationHandler(domain.PartyKindShop, &reconciliationServiceStub{err: context.DeadlineExceeded})
	rec = httptest.NewRecorder()
	h.Report(rec, httptest.NewRequest(http.MethodGet, "/reconciliation", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestHealthHandler_Readiness(t *testing.T) {
	h := NewHealthHandlerWithChecks(map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"ok"`)

	h = NewHealthHandlerWithChecks(map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis unhealthy")

	rec = httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
