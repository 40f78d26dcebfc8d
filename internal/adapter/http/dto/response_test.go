package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

func TestPartyFromDomainNamesBalancePerKind(t *testing.T) {
	now := time.Now()
	shop := &domain.Party{
		ID:        "shop-1",
		Kind:      domain.PartyKindShop,
		Code:      "SHOP-001",
		Balance:   decimal.RequireFromString("123.45"),
		CreatedAt: now,
		UpdatedAt: now,
	}

	resp := PartyFromDomain(shop)
	if resp.TotalOutstanding == nil || resp.TotalOutstanding.String() != "123.45" || resp.TotalOwed != nil {
		t.Fatalf("unexpected shop response: %+v", resp)
	}

	customer := &domain.Party{ID: "cust-1", Kind: domain.PartyKindCustomer, Balance: decimal.NewFromInt(9)}
	list := PartiesFromDomain([]*domain.Party{customer})
	if len(list) != 1 || list[0].TotalOwed == nil || list[0].TotalOutstanding != nil {
		t.Fatalf("unexpected customer response: %+v", list)
	}

	body, err := json.Marshal(list[0])
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(body), `"total_owed":"9"`) || strings.Contains(string(body), "audited") {
		t.Fatalf("unexpected json %s", body)
	}
}

func TestEntryFromDomainSplitsReference(t *testing.T) {
	loan := &domain.Entry{
		ID:        "loan-1",
		Kind:      domain.EntryKindLoan,
		Reference: "OL-17",
		Period:    &domain.Period{Month: "March", Year: 2026},
		Amount:    decimal.NewFromInt(100),
	}

	resp := EntryFromDomain(loan)
	if resp.OrderLetter != "OL-17" || resp.PaymentNumber != "" || resp.Month != "March" || resp.Year != 2026 {
		t.Fatalf("unexpected loan response: %+v", resp)
	}

	payment := &domain.Entry{ID: "pay-1", Kind: domain.EntryKindPayment, Reference: "PN-3"}
	list := EntriesFromDomain([]*domain.Entry{payment})
	if list[0].PaymentNumber != "PN-3" || list[0].OrderLetter != "" {
		t.Fatalf("unexpected payment response: %+v", list[0])
	}
}

func TestAuditRecordsFromDomain(t *testing.T) {
	records := AuditRecordsFromDomain([]*domain.AuditRecord{{
		ID:          "audit-1",
		ActorID:     "user-1",
		Action:      domain.AuditActionDelete,
		TargetKind:  domain.TargetLoan,
		TargetID:    "loan-1",
		After:       domain.JSON{"is_deleted": true},
		Description: "Deleted loan",
	}})

	if len(records) != 1 || records[0].After["is_deleted"] != true || records[0].Before != nil {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestReportFromUseCase(t *testing.T) {
	report := &usecase.ReconciliationReport{
		PartyKind:         domain.PartyKindCustomer,
		TotalParties:      2,
		ReconciledParties: 1,
		Discrepancies: []*usecase.ReconciliationResult{{
			PartyID:    "cust-1",
			Difference: decimal.NewFromInt(20),
		}},
		TotalDifference: decimal.NewFromInt(20),
	}

	resp := ReportFromUseCase(report)
	if len(resp.Discrepancies) != 1 || resp.Discrepancies[0].PartyID != "cust-1" {
		t.Fatalf("unexpected report: %+v", resp)
	}
	if !resp.TotalDifference.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected total difference %s", resp.TotalDifference)
	}
}
