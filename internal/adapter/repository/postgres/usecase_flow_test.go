package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

var lockPartySQL = regexp.QuoteMeta(`FROM parties WHERE id = $1 AND kind = $2 FOR UPDATE`)

func newEntryUseCaseOnPool(pool pgxmock.PgxPoolIface) *usecase.EntryUseCase {
	idGen := NewULIDGenerator()
	auditUC := usecase.NewAuditUseCase(newAuditRepository(pool), idGen, nil)

	return usecase.NewEntryUseCase(
		newTxManagerWithPool(pool),
		newPartyRepository(pool),
		newEntryRepository(pool),
		newOutboxRepository(pool),
		auditUC,
		idGen,
		nil,
	).WithRetrier(NewRetrier())
}

// A second writer commits a loan on the same shop between our row read and
// our balance write. The stale version matches nothing, the whole unit is
// retried, and the retry builds on the other writer's balance.
func TestCreateLoanRetriesAfterLosingVersionRace(t *testing.T) {
	pool := newMockPool(t)

	stale := testShop()
	fresh := testShop()
	fresh.Version = 4
	fresh.Balance = stale.Balance.Add(decimal.NewFromInt(50))

	pool.ExpectBegin()
	pool.ExpectQuery(lockPartySQL).
		WithArgs("shop-1", "Shop").
		WillReturnRows(pgxmock.NewRows(partyColumnNames).AddRow(partyRow(stale)...))
	pool.ExpectExec("UPDATE parties").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "shop-1", "Shop", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	pool.ExpectRollback()

	pool.ExpectBegin()
	pool.ExpectQuery(lockPartySQL).
		WithArgs("shop-1", "Shop").
		WillReturnRows(pgxmock.NewRows(partyColumnNames).AddRow(partyRow(fresh)...))
	pool.ExpectExec("UPDATE parties").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "shop-1", "Shop", int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("INSERT INTO ledger_entries").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), domain.AggregateTypeEntry, domain.EventTypeEntryCreated,
			pgxmock.AnyArg(), pgxmock.AnyArg(), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO outbox_events").
		WithArgs(pgxmock.AnyArg(), "shop-1", domain.AggregateTypeParty, domain.EventTypeBalanceChanged,
			pgxmock.AnyArg(), pgxmock.AnyArg(), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()
	pool.ExpectExec("INSERT INTO audit_records").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry, err := newEntryUseCaseOnPool(pool).CreateEntry(context.Background(), usecase.CreateEntryInput{
		ActorID:   "user-1",
		Kind:      domain.EntryKindLoan,
		Direction: domain.DirectionFromShop,
		PartyKind: domain.PartyKindShop,
		PartyID:   "shop-1",
		Amount:    decimal.NewFromInt(25),
		Reference: "OL-18",
		Month:     "March",
		Year:      2026,
	})
	if err != nil {
		t.Fatalf("create loan failed: %v", err)
	}

	if want := decimal.RequireFromString("225.50"); !entry.BalanceAfter.Equal(want) {
		t.Fatalf("expected balance after %s, got %s", want, entry.BalanceAfter)
	}

	assertExpectations(t, pool)
}

func TestCreatePaymentShareLocksLinkedLoan(t *testing.T) {
	pool := newMockPool(t)

	pool.ExpectBegin()
	pool.ExpectQuery(regexp.QuoteMeta(`FROM ledger_entries WHERE id = $1 AND kind = $2 AND is_deleted = false FOR SHARE`)).
		WithArgs("loan-1", "Loan").
		WillReturnRows(pgxmock.NewRows(entryColumnNames))
	pool.ExpectRollback()

	loanID := "loan-1"
	_, err := newEntryUseCaseOnPool(pool).CreateEntry(context.Background(), usecase.CreateEntryInput{
		ActorID:   "user-1",
		Kind:      domain.EntryKindPayment,
		Direction: domain.DirectionFromShop,
		PartyKind: domain.PartyKindShop,
		PartyID:   "shop-1",
		Amount:    decimal.NewFromInt(10),
		Reference: "P-4",
		LoanID:    &loanID,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for a deleted loan, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestReconcilePartyReadsOneSnapshot(t *testing.T) {
	pool := newMockPool(t)
	shop := testShop()

	pool.ExpectBeginTx(snapshotOptions)
	pool.ExpectQuery(regexp.QuoteMeta(`FROM parties WHERE id = $1 AND kind = $2 AND is_deleted = false`)).
		WithArgs("shop-1", "Shop").
		WillReturnRows(pgxmock.NewRows(partyColumnNames).AddRow(partyRow(shop)...))
	pool.ExpectQuery("FROM ledger_entries").
		WithArgs("Shop", "shop-1").
		WillReturnRows(pgxmock.NewRows([]string{"loans", "payments"}).
			AddRow(decimalToNumeric(decimal.NewFromInt(200)), decimalToNumeric(decimal.RequireFromString("49.50"))))
	pool.ExpectCommit()

	uc := usecase.NewReconciliationUseCase(newTxManagerWithPool(pool), newPartyRepository(pool), newEntryRepository(pool), nil)

	result, err := uc.ReconcileParty(context.Background(), domain.PartyKindShop, "shop-1")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !result.IsReconciled {
		t.Fatalf("expected 150.50 = 200 - 49.50, got difference %s", result.Difference)
	}

	assertExpectations(t, pool)
}
