package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/shopledger/internal/domain"
)

func TestAuditRepositoryCreate(t *testing.T) {
	pool := newMockPool(t)
	rec := &domain.AuditRecord{
		ID:          "audit-1",
		ActorID:     "user-1",
		Action:      domain.AuditActionCreate,
		TargetKind:  domain.TargetLoan,
		TargetID:    "loan-1",
		After:       domain.JSON{"amount": "100"},
		Description: "Created loan: 100 for Corner Store (FROM_SHOP), balance 0 -> 100",
		RequestID:   "req-9",
		CreatedAt:   time.Now().UTC(),
	}

	after, _ := json.Marshal(rec.After)
	pool.ExpectExec("INSERT INTO audit_records").
		WithArgs("audit-1", "user-1", "CREATE", "Loan", "loan-1", []byte(nil), after,
			rec.Description, "req-9", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := newAuditRepository(pool)
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	assertExpectations(t, pool)
}

func TestAuditRepositoryCreateAssignsID(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec("INSERT INTO audit_records").
		WithArgs(pgxmock.AnyArg(), "user-1", "DELETE", "Shop", "shop-1", []byte(nil), []byte(nil),
			"", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &domain.AuditRecord{
		ActorID:    "user-1",
		Action:     domain.AuditActionDelete,
		TargetKind: domain.TargetShop,
		TargetID:   "shop-1",
	}

	repo := newAuditRepository(pool)
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Fatalf("expected generated uuid, got %q", rec.ID)
	}

	assertExpectations(t, pool)
}

func TestAuditRepositoryCreateError(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec("INSERT INTO audit_records").WillReturnError(errors.New("disk full"))

	repo := newAuditRepository(pool)
	err := repo.Create(context.Background(), &domain.AuditRecord{ID: "a", ActorID: "user-1"})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestAuditRepositoryListNumbersPlaceholders(t *testing.T) {
	pool := newMockPool(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before, _ := json.Marshal(domain.JSON{"balance": "10"})

	pool.ExpectQuery(regexp.QuoteMeta(
		"WHERE actor_id = $1 AND target_kind = $2 AND target_id = $3 AND created_at >= $4",
	)).
		WithArgs("user-1", "Shop", "shop-1", pgxmock.AnyArg(), 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "actor_id", "action", "target_kind", "target_id",
			"before_state", "after_state", "description", "request_id", "created_at",
		}).AddRow(
			"audit-1", "user-1", "UPDATE", "Shop", "shop-1",
			before, before, "Updated shop: Corner Store (SHOP-001)", "", timeToPgTimestamptz(start),
		))

	repo := newAuditRepository(pool)
	records, err := repo.List(context.Background(), domain.AuditFilter{
		ActorID:    "user-1",
		TargetKind: domain.TargetShop,
		TargetID:   "shop-1",
		StartDate:  &start,
		Limit:      50,
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Action != domain.AuditActionUpdate || records[0].Before["balance"] != "10" {
		t.Fatalf("unexpected record %+v", records[0])
	}

	assertExpectations(t, pool)
}
