package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

// PartyResponse represents a shop or a customer in API responses.
// The balance is exposed as total_outstanding for shops and total_owed for customers.
type PartyResponse struct {
	ID               string           `json:"id"`
	Kind             domain.PartyKind `json:"kind"`
	Code             string           `json:"code"`
	Name             string           `json:"name"`
	OwnerName        string           `json:"owner_name,omitempty"`
	Phone            string           `json:"phone"`
	Village          string           `json:"village"`
	Category         string           `json:"category"`
	RegisterDate     time.Time        `json:"register_date"`
	TotalOutstanding *decimal.Decimal `json:"total_outstanding,omitempty"`
	TotalOwed        *decimal.Decimal `json:"total_owed,omitempty"`
	Version          int64            `json:"version"`
	CreatedBy        string           `json:"created_by"`
	IsDeleted        bool             `json:"is_deleted,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Audited          *bool            `json:"audited,omitempty"`
}

// PartyFromDomain converts domain party to response.
func PartyFromDomain(p *domain.Party) *PartyResponse {
	resp := &PartyResponse{
		ID:           p.ID,
		Kind:         p.Kind,
		Code:         p.Code,
		Name:         p.Name,
		OwnerName:    p.OwnerName,
		Phone:        p.Phone,
		Village:      p.Village,
		Category:     p.Category,
		RegisterDate: p.RegisterDate,
		Version:      p.Version,
		CreatedBy:    p.CreatedBy,
		IsDeleted:    p.IsDeleted,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}

	balance := p.Balance
	if p.Kind == domain.PartyKindShop {
		resp.TotalOutstanding = &balance
	} else {
		resp.TotalOwed = &balance
	}

	return resp
}

// PartiesFromDomain converts domain parties to responses.
func PartiesFromDomain(parties []*domain.Party) []*PartyResponse {
	result := make([]*PartyResponse, len(parties))
	for i, p := range parties {
		result[i] = PartyFromDomain(p)
	}
	return result
}

// EntryResponse represents a loan or a payment in API responses.
type EntryResponse struct {
	ID              string           `json:"id"`
	Kind            domain.EntryKind `json:"kind"`
	Direction       domain.Direction `json:"direction"`
	PartyKind       domain.PartyKind `json:"party_kind"`
	PartyID         string           `json:"party_id"`
	Amount          decimal.Decimal  `json:"amount"`
	OrderLetter     string           `json:"order_letter,omitempty"`
	Month           string           `json:"month,omitempty"`
	Year            int              `json:"year,omitempty"`
	PaymentNumber   string           `json:"payment_number,omitempty"`
	DatePaid        *time.Time       `json:"date_paid,omitempty"`
	LoanID          *string          `json:"loan_id,omitempty"`
	ImagesFolderKey *string          `json:"images_folder_key,omitempty"`
	BalanceAfter    decimal.Decimal  `json:"balance_after"`
	CreatedBy       string           `json:"created_by"`
	IsDeleted       bool             `json:"is_deleted,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Audited         *bool            `json:"audited,omitempty"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	resp := &EntryResponse{
		ID:              e.ID,
		Kind:            e.Kind,
		Direction:       e.Direction,
		PartyKind:       e.PartyKind,
		PartyID:         e.PartyID,
		Amount:          e.Amount,
		DatePaid:        e.DatePaid,
		LoanID:          e.LoanID,
		ImagesFolderKey: e.ImagesFolderKey,
		BalanceAfter:    e.BalanceAfter,
		CreatedBy:       e.CreatedBy,
		IsDeleted:       e.IsDeleted,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}

	if e.Kind == domain.EntryKindLoan {
		resp.OrderLetter = e.Reference
		if e.Period != nil {
			resp.Month = e.Period.Month
			resp.Year = e.Period.Year
		}
	} else {
		resp.PaymentNumber = e.Reference
	}

	return resp
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// AuditRecordResponse represents an audit record in API responses.
type AuditRecordResponse struct {
	ID          string             `json:"id"`
	ActorID     string             `json:"actor_id"`
	Action      domain.AuditAction `json:"action"`
	TargetKind  domain.TargetKind  `json:"target_kind"`
	TargetID    string             `json:"target_id"`
	Before      domain.JSON        `json:"before,omitempty"`
	After       domain.JSON        `json:"after,omitempty"`
	Description string             `json:"description"`
	RequestID   string             `json:"request_id,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// AuditRecordsFromDomain converts audit records to responses.
func AuditRecordsFromDomain(records []*domain.AuditRecord) []*AuditRecordResponse {
	result := make([]*AuditRecordResponse, len(records))
	for i, r := range records {
		result[i] = &AuditRecordResponse{
			ID:          r.ID,
			ActorID:     r.ActorID,
			Action:      r.Action,
			TargetKind:  r.TargetKind,
			TargetID:    r.TargetID,
			Before:      r.Before,
			After:       r.After,
			Description: r.Description,
			RequestID:   r.RequestID,
			CreatedAt:   r.CreatedAt,
		}
	}
	return result
}

// ReconciliationResponse represents the result of reconciling one party.
type ReconciliationResponse struct {
	PartyKind       domain.PartyKind `json:"party_kind"`
	PartyID         string           `json:"party_id"`
	Code            string           `json:"code"`
	StoredBalance   decimal.Decimal  `json:"stored_balance"`
	LoanTotal       decimal.Decimal  `json:"loan_total"`
	PaymentTotal    decimal.Decimal  `json:"payment_total"`
	ComputedBalance decimal.Decimal  `json:"computed_balance"`
	Difference      decimal.Decimal  `json:"difference"`
	IsReconciled    bool             `json:"is_reconciled"`
	CheckedAt       time.Time        `json:"checked_at"`
}

// ReconciliationFromUseCase converts a reconciliation result to response.
func ReconciliationFromUseCase(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		PartyKind:       r.PartyKind,
		PartyID:         r.PartyID,
		Code:            r.Code,
		StoredBalance:   r.StoredBalance,
		LoanTotal:       r.LoanTotal,
		PaymentTotal:    r.PaymentTotal,
		ComputedBalance: r.ComputedBalance,
		Difference:      r.Difference,
		IsReconciled:    r.IsReconciled,
		CheckedAt:       r.CheckedAt,
	}
}

// ReconciliationReportResponse summarizes reconciliation over all parties of a kind.
type ReconciliationReportResponse struct {
	PartyKind         domain.PartyKind          `json:"party_kind"`
	TotalParties      int                       `json:"total_parties"`
	ReconciledParties int                       `json:"reconciled_parties"`
	Discrepancies     []*ReconciliationResponse `json:"discrepancies"`
	TotalDifference   decimal.Decimal           `json:"total_difference"`
	CheckedAt         time.Time                 `json:"checked_at"`
}

// ReportFromUseCase converts a reconciliation report to response.
func ReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	resp := &ReconciliationReportResponse{
		PartyKind:         r.PartyKind,
		TotalParties:      r.TotalParties,
		ReconciledParties: r.ReconciledParties,
		Discrepancies:     make([]*ReconciliationResponse, len(r.Discrepancies)),
		TotalDifference:   r.TotalDifference,
		CheckedAt:         r.CheckedAt,
	}
	for i, d := range r.Discrepancies {
		resp.Discrepancies[i] = ReconciliationFromUseCase(d)
	}
	return resp
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents health check response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}
