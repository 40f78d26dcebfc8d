package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
)

// BalanceEngine is the only writer of party balances. Every method runs inside
// the caller's transaction and leaves the party row locked until it ends.
type BalanceEngine struct {
	partyRepo PartyRepository
	now       func() time.Time
}

// NewBalanceEngine creates a new BalanceEngine.
func NewBalanceEngine(partyRepo PartyRepository) *BalanceEngine {
	return &BalanceEngine{
		partyRepo: partyRepo,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ApplyCreate books a new entry of kind against ref.
func (e *BalanceEngine) ApplyCreate(
	ctx context.Context,
	tx Transaction,
	kind domain.EntryKind,
	direction domain.Direction,
	ref domain.PartyRef,
	amount decimal.Decimal,
) (*domain.BalanceChange, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	if err := domain.ValidatePairing(direction, ref.Kind); err != nil {
		return nil, err
	}

	party, err := e.lockActive(ctx, tx, ref)
	if err != nil {
		return nil, err
	}

	after := kind.Effect().Apply(party.Balance, amount)

	return e.save(ctx, tx, party, after, amount)
}

// ApplyAmountChange moves the party balance by the difference between the
// entry's current amount and newAmount. The entry itself is not modified.
func (e *BalanceEngine) ApplyAmountChange(
	ctx context.Context,
	tx Transaction,
	entry *domain.Entry,
	newAmount decimal.Decimal,
) (*domain.BalanceChange, error) {
	if err := domain.ValidateAmount(newAmount); err != nil {
		return nil, err
	}

	party, err := e.lockActive(ctx, tx, entry.PartyRef())
	if err != nil {
		return nil, err
	}

	delta := newAmount.Sub(entry.Amount)
	if delta.IsZero() {
		return &domain.BalanceChange{Party: party, Before: party.Balance, After: party.Balance}, nil
	}

	after := entry.Kind.Effect().Adjust(party.Balance, delta)

	return e.save(ctx, tx, party, after, delta.Abs())
}

// ApplyReversal removes the entry's effect from its party. A deleted or
// missing party is left untouched and the change is reported as skipped.
func (e *BalanceEngine) ApplyReversal(ctx context.Context, tx Transaction, entry *domain.Entry) (*domain.BalanceChange, error) {
	ref := entry.PartyRef()

	party, err := e.partyRepo.GetByIDForUpdate(ctx, tx, ref.Kind, ref.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.BalanceChange{Skipped: true}, nil
		}
		return nil, err
	}

	if party.IsDeleted {
		return &domain.BalanceChange{Party: party, Before: party.Balance, After: party.Balance, Skipped: true}, nil
	}

	after := entry.Kind.Effect().Reverse(party.Balance, entry.Amount)

	return e.save(ctx, tx, party, after, entry.Amount)
}

func (e *BalanceEngine) lockActive(ctx context.Context, tx Transaction, ref domain.PartyRef) (*domain.Party, error) {
	party, err := e.partyRepo.GetByIDForUpdate(ctx, tx, ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}

	if party.IsDeleted {
		return nil, domain.ErrPartyNotFound
	}

	return party, nil
}

// save persists after and reports whether the move was shorter than magnitude,
// which only happens when the zero floor kicked in.
func (e *BalanceEngine) save(
	ctx context.Context,
	tx Transaction,
	party *domain.Party,
	after decimal.Decimal,
	magnitude decimal.Decimal,
) (*domain.BalanceChange, error) {
	before := party.Balance
	now := e.now()

	if err := e.partyRepo.UpdateBalance(ctx, tx, party.Kind, party.ID, after, party.Version, now); err != nil {
		return nil, err
	}

	party.Balance = after
	party.Version++
	party.UpdatedAt = now

	return &domain.BalanceChange{
		Party:   party,
		Before:  before,
		After:   after,
		Clamped: after.Sub(before).Abs().LessThan(magnitude),
	}, nil
}
