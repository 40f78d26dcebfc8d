package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
	"github.com/iho/shopledger/internal/usecase/mocks"
)

const actor = "user-1"

type ledger struct {
	store   *mocks.FakeStore
	parties *mocks.FakePartyRepository
	entries *mocks.FakeEntryRepository
	audits  *mocks.FakeAuditRepository
	cache   *mocks.FakeCache

	partyUC *usecase.PartyUseCase
	entryUC *usecase.EntryUseCase
	auditUC *usecase.AuditUseCase
	reconUC *usecase.ReconciliationUseCase
}

func newLedger(t *testing.T) *ledger {
	t.Helper()

	store := mocks.NewFakeStore()
	l := &ledger{
		store:   store,
		parties: store.Parties(),
		entries: store.Entries(),
		audits:  mocks.NewFakeAuditRepository(),
		cache:   mocks.NewFakeCache(),
	}

	idGen := &mocks.FakeIDGenerator{}
	txManager := store.TxManager()
	partyCache := usecase.NewPartyCache(l.cache, time.Minute, nil)

	l.auditUC = usecase.NewAuditUseCase(l.audits, idGen, nil)
	l.partyUC = usecase.NewPartyUseCase(txManager, l.parties, store.Sequences(), store.Outbox(), l.auditUC, idGen, nil).
		WithCache(partyCache)
	l.entryUC = usecase.NewEntryUseCase(txManager, l.parties, l.entries, store.Outbox(), l.auditUC, idGen, nil).
		WithCache(partyCache)
	l.reconUC = usecase.NewReconciliationUseCase(txManager, l.parties, l.entries, nil)

	return l
}

func (l *ledger) newShop(t *testing.T) *domain.Party {
	t.Helper()

	shop, err := l.partyUC.CreateParty(context.Background(), usecase.CreatePartyInput{
		ActorID:   actor,
		Kind:      domain.PartyKindShop,
		Name:      "Noor Traders",
		OwnerName: "Noor",
		Phone:     "0700111222",
		Village:   "Qala",
		Category:  "Wholesale",
	})
	require.NoError(t, err)

	return shop
}

func (l *ledger) newCustomer(t *testing.T) *domain.Party {
	t.Helper()

	customer, err := l.partyUC.CreateParty(context.Background(), usecase.CreatePartyInput{
		ActorID:  actor,
		Kind:     domain.PartyKindCustomer,
		Name:     "Sami",
		Phone:    "0700333444",
		Village:  "Deh",
		Category: "Regular",
	})
	require.NoError(t, err)

	return customer
}

func (l *ledger) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()

	p, ok := l.store.Party(id)
	require.True(t, ok, "party %s not stored", id)

	return p.Balance
}

func loanInput(party *domain.Party, amount int64) usecase.CreateEntryInput {
	return usecase.CreateEntryInput{
		ActorID:   actor,
		Kind:      domain.EntryKindLoan,
		Direction: directionFor(party.Kind),
		PartyKind: party.Kind,
		PartyID:   party.ID,
		Amount:    decimal.NewFromInt(amount),
		Reference: "A",
		Month:     "March",
		Year:      2024,
	}
}

func paymentInput(party *domain.Party, amount int64) usecase.CreateEntryInput {
	return usecase.CreateEntryInput{
		ActorID:   actor,
		Kind:      domain.EntryKindPayment,
		Direction: directionFor(party.Kind),
		PartyKind: party.Kind,
		PartyID:   party.ID,
		Amount:    decimal.NewFromInt(amount),
		Reference: "P-1",
	}
}

func directionFor(kind domain.PartyKind) domain.Direction {
	if kind == domain.PartyKindShop {
		return domain.DirectionFromShop
	}
	return domain.DirectionToCustomer
}

func requireDecimal(t *testing.T, expected int64, actual decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.NewFromInt(expected).Equal(actual), "expected %d, got %s", expected, actual)
}
