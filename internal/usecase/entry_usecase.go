package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/infrastructure/metrics"
)

// EntryUseCase handles loan and payment lifecycle. Every balance move and the
// entry write it belongs to share one transaction; the audit record follows
// the commit.
type EntryUseCase struct {
	tx         txRunner
	partyRepo  PartyRepository
	entryRepo  EntryRepository
	outboxRepo OutboxRepository
	engine     *BalanceEngine
	audit      *AuditUseCase
	idGen      IDGenerator
	cache      *PartyCache
	metrics    *metrics.Metrics
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(
	txManager TransactionManager,
	partyRepo PartyRepository,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	audit *AuditUseCase,
	idGen IDGenerator,
	m *metrics.Metrics,
) *EntryUseCase {
	return &EntryUseCase{
		tx:         txRunner{manager: txManager},
		partyRepo:  partyRepo,
		entryRepo:  entryRepo,
		outboxRepo: outboxRepo,
		engine:     NewBalanceEngine(partyRepo),
		audit:      audit,
		idGen:      idGen,
		metrics:    m,
	}
}

// WithRetrier retries transactions that fail on transient conflicts.
func (uc *EntryUseCase) WithRetrier(r Retrier) *EntryUseCase {
	uc.tx.retrier = r
	return uc
}

// WithCache writes committed balances back to the party cache.
func (uc *EntryUseCase) WithCache(c *PartyCache) *EntryUseCase {
	uc.cache = c
	return uc
}

// CreateEntryInput represents input for booking a loan or a payment.
// Reference is the loan order letter or the payment number.
type CreateEntryInput struct {
	ActorID         string
	Kind            domain.EntryKind
	Direction       domain.Direction
	PartyKind       domain.PartyKind
	PartyID         string
	Amount          decimal.Decimal
	Reference       string
	Month           string
	Year            int
	DatePaid        *time.Time
	LoanID          *string
	ImagesFolderKey *string
}

// UpdateEntryInput carries entry changes. Nil pointers and empty strings keep
// the stored value.
type UpdateEntryInput struct {
	ActorID         string
	Kind            domain.EntryKind
	ID              string
	Amount          *decimal.Decimal
	Reference       string
	Month           string
	Year            int
	DatePaid        *time.Time
	LoanID          *string
	ImagesFolderKey *string
}

// CreateEntry books a new entry and moves its party's balance.
// On audit failure the committed entry is returned with a *domain.AuditWriteError.
func (uc *EntryUseCase) CreateEntry(ctx context.Context, input CreateEntryInput) (*domain.Entry, error) {
	start := time.Now()

	if input.ActorID == "" {
		return nil, domain.ErrMissingActor
	}

	now := start.UTC()
	entry := &domain.Entry{
		ID:              uc.idGen.Generate(),
		Kind:            input.Kind,
		Direction:       input.Direction,
		PartyKind:       input.PartyKind,
		PartyID:         input.PartyID,
		Amount:          input.Amount,
		Reference:       strings.TrimSpace(input.Reference),
		ImagesFolderKey: input.ImagesFolderKey,
		CreatedBy:       input.ActorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	switch input.Kind {
	case domain.EntryKindLoan:
		entry.Period = &domain.Period{Month: input.Month, Year: input.Year}
	case domain.EntryKindPayment:
		paid := now
		if input.DatePaid != nil {
			paid = input.DatePaid.UTC()
		}
		entry.DatePaid = &paid
		entry.LoanID = input.LoanID
	}

	if err := entry.Validate(); err != nil {
		uc.countError(err)
		return nil, err
	}

	var change *domain.BalanceChange

	err := uc.tx.run(ctx, func(ctx context.Context, tx Transaction) error {
		if err := uc.checkLoanLink(ctx, tx, entry); err != nil {
			return err
		}

		c, err := uc.engine.ApplyCreate(ctx, tx, entry.Kind, entry.Direction, entry.PartyRef(), entry.Amount)
		if err != nil {
			return err
		}
		change = c
		entry.BalanceAfter = c.After

		if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
			return err
		}

		return uc.emit(ctx, tx, entry, change, domain.EventTypeEntryCreated)
	})
	if err != nil {
		uc.countError(err)
		return nil, err
	}

	uc.afterCommit(ctx, "create", change, start)
	if uc.metrics != nil {
		uc.metrics.EntriesCreated.WithLabelValues(string(entry.Kind)).Inc()
		uc.metrics.EntryAmount.WithLabelValues(string(entry.Kind)).Observe(entry.Amount.InexactFloat64())
	}

	return entry, uc.audit.Record(ctx, &domain.AuditRecord{
		ActorID:    input.ActorID,
		Action:     domain.AuditActionCreate,
		TargetKind: domain.TargetForEntry(entry.Kind),
		TargetID:   entry.ID,
		After:      domain.MarshalState(entry),
		Description: fmt.Sprintf("Created %s: %s for %s (%s), balance %s -> %s",
			kindWord(entry.Kind), entry.Amount, change.Party.DisplayName(), entry.Direction, change.Before, change.After),
	})
}

// GetEntry returns a non-deleted entry.
func (uc *EntryUseCase) GetEntry(ctx context.Context, kind domain.EntryKind, id string) (*domain.Entry, error) {
	return uc.entryRepo.GetByID(ctx, kind, id)
}

// ListEntries returns non-deleted entries matching filter, newest first.
func (uc *EntryUseCase) ListEntries(ctx context.Context, filter domain.EntryFilter) ([]*domain.Entry, error) {
	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.entryRepo.List(ctx, filter)
}

// UpdateEntry changes an entry. A new amount moves the party balance by the
// difference and refreshes the entry's balance snapshot.
func (uc *EntryUseCase) UpdateEntry(ctx context.Context, input UpdateEntryInput) (*domain.Entry, error) {
	start := time.Now()

	if input.ActorID == "" {
		return nil, domain.ErrMissingActor
	}

	var (
		before, updated *domain.Entry
		change          *domain.BalanceChange
	)

	err := uc.tx.run(ctx, func(ctx context.Context, tx Transaction) error {
		current, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, input.Kind, input.ID)
		if err != nil {
			return err
		}
		before = current.Clone()

		next := current.Clone()
		applyEntryChanges(next, input)
		next.UpdatedAt = time.Now().UTC()

		if err := next.Validate(); err != nil {
			return err
		}

		if err := uc.checkLoanLink(ctx, tx, next); err != nil {
			return err
		}

		c, err := uc.engine.ApplyAmountChange(ctx, tx, current, next.Amount)
		if err != nil {
			return err
		}
		change = c
		if !next.Amount.Equal(current.Amount) {
			next.BalanceAfter = c.After
		}

		if err := uc.entryRepo.Update(ctx, tx, next); err != nil {
			return err
		}
		updated = next

		return uc.emit(ctx, tx, next, change, domain.EventTypeEntryUpdated)
	})
	if err != nil {
		uc.countError(err)
		return nil, err
	}

	uc.afterCommit(ctx, "update", change, start)
	if uc.metrics != nil {
		uc.metrics.EntriesUpdated.WithLabelValues(string(updated.Kind)).Inc()
	}

	return updated, uc.audit.Record(ctx, &domain.AuditRecord{
		ActorID:    input.ActorID,
		Action:     domain.AuditActionUpdate,
		TargetKind: domain.TargetForEntry(updated.Kind),
		TargetID:   updated.ID,
		Before:     domain.MarshalState(before),
		After:      domain.MarshalState(updated),
		Description: fmt.Sprintf("Updated %s for %s, amount %s -> %s, balance %s -> %s",
			kindWord(updated.Kind), change.Party.DisplayName(), before.Amount, updated.Amount, change.Before, change.After),
	})
}

// DeleteEntry soft-deletes an entry and reverses its effect on the party.
// When the party is already deleted the entry is still deleted but the
// balance is left alone.
func (uc *EntryUseCase) DeleteEntry(ctx context.Context, actorID string, kind domain.EntryKind, id string) (*domain.Entry, error) {
	start := time.Now()

	if actorID == "" {
		return nil, domain.ErrMissingActor
	}

	var (
		before, deleted *domain.Entry
		change          *domain.BalanceChange
	)

	err := uc.tx.run(ctx, func(ctx context.Context, tx Transaction) error {
		current, err := uc.entryRepo.GetByIDForUpdate(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		before = current.Clone()

		c, err := uc.engine.ApplyReversal(ctx, tx, current)
		if err != nil {
			return err
		}
		change = c

		next := current.Clone()
		next.IsDeleted = true
		next.UpdatedAt = time.Now().UTC()

		if err := uc.entryRepo.Update(ctx, tx, next); err != nil {
			return err
		}
		deleted = next

		return uc.emit(ctx, tx, next, change, domain.EventTypeEntryDeleted)
	})
	if err != nil {
		uc.countError(err)
		return nil, err
	}

	uc.afterCommit(ctx, "delete", change, start)
	if uc.metrics != nil {
		uc.metrics.EntriesDeleted.WithLabelValues(string(kind)).Inc()
	}

	return deleted, uc.audit.Record(ctx, &domain.AuditRecord{
		ActorID:     actorID,
		Action:      domain.AuditActionDelete,
		TargetKind:  domain.TargetForEntry(kind),
		TargetID:    deleted.ID,
		Before:      domain.MarshalState(before),
		After:       domain.MarshalState(deleted),
		Description: describeReversal(deleted, change),
	})
}

// checkLoanLink requires a payment's loan to be a live loan of the same party.
// The loan stays share-locked until tx ends so it cannot be deleted before the
// payment commits.
func (uc *EntryUseCase) checkLoanLink(ctx context.Context, tx Transaction, entry *domain.Entry) error {
	if entry.Kind != domain.EntryKindPayment || entry.LoanID == nil || *entry.LoanID == "" {
		return nil
	}

	loan, err := uc.entryRepo.GetByIDForShare(ctx, tx, domain.EntryKindLoan, *entry.LoanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: loan %s does not exist", domain.ErrValidation, *entry.LoanID)
		}
		return err
	}

	if loan.PartyRef() != entry.PartyRef() {
		return fmt.Errorf("%w: loan %s belongs to another party", domain.ErrValidation, loan.ID)
	}

	return nil
}

func (uc *EntryUseCase) emit(ctx context.Context, tx Transaction, entry *domain.Entry, change *domain.BalanceChange, eventType string) error {
	if uc.outboxRepo == nil {
		return nil
	}

	err := uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   entry.ID,
		AggregateType: domain.AggregateTypeEntry,
		EventType:     eventType,
		Payload: map[string]any{
			"entry_id":   entry.ID,
			"kind":       string(entry.Kind),
			"direction":  string(entry.Direction),
			"party_id":   entry.PartyID,
			"party_kind": string(entry.PartyKind),
			"amount":     entry.Amount.String(),
			"is_deleted": entry.IsDeleted,
		},
		CreatedAt: entry.UpdatedAt,
	})
	if err != nil {
		return err
	}

	if change.Skipped || change.Before.Equal(change.After) {
		return nil
	}

	return uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   change.Party.ID,
		AggregateType: domain.AggregateTypeParty,
		EventType:     domain.EventTypeBalanceChanged,
		Payload:       domain.BalanceChangedPayload(change, entry),
		CreatedAt:     entry.UpdatedAt,
	})
}

func (uc *EntryUseCase) afterCommit(ctx context.Context, op string, change *domain.BalanceChange, start time.Time) {
	uc.cache.put(ctx, change.Party)

	log := zerolog.Ctx(ctx)
	if change.Clamped {
		log.Info().
			Str("party_id", change.Party.ID).
			Str("before", change.Before.String()).
			Msg("balance floored at zero")
	}

	if uc.metrics == nil {
		return
	}

	uc.metrics.EntryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if change.Clamped {
		uc.metrics.BalanceClamps.WithLabelValues(string(change.Party.Kind)).Inc()
	}
	if change.Skipped {
		kind := "unknown"
		if change.Party != nil {
			kind = string(change.Party.Kind)
		}
		uc.metrics.SkippedReversal.WithLabelValues(kind).Inc()
	}
}

func (uc *EntryUseCase) countError(err error) {
	if uc.metrics == nil {
		return
	}

	errType := "internal"
	switch {
	case errors.Is(err, domain.ErrInvalidDirectionPairing):
		errType = "pairing"
	case errors.Is(err, domain.ErrValidation):
		errType = "validation"
	case errors.Is(err, domain.ErrNotFound):
		errType = "not_found"
	case errors.Is(err, domain.ErrVersionConflict):
		errType = "conflict"
	case errors.Is(err, context.DeadlineExceeded):
		errType = "timeout"
	}

	uc.metrics.EntryErrors.WithLabelValues(errType).Inc()
}

func applyEntryChanges(e *domain.Entry, input UpdateEntryInput) {
	if input.Amount != nil {
		e.Amount = *input.Amount
	}
	keep(&e.Reference, input.Reference)

	switch e.Kind {
	case domain.EntryKindLoan:
		if e.Period == nil {
			e.Period = &domain.Period{}
		}
		keep(&e.Period.Month, input.Month)
		if input.Year != 0 {
			e.Period.Year = input.Year
		}
	case domain.EntryKindPayment:
		if input.DatePaid != nil {
			paid := input.DatePaid.UTC()
			e.DatePaid = &paid
		}
		if input.LoanID != nil {
			if *input.LoanID == "" {
				e.LoanID = nil
			} else {
				id := *input.LoanID
				e.LoanID = &id
			}
		}
	}

	if input.ImagesFolderKey != nil {
		key := *input.ImagesFolderKey
		e.ImagesFolderKey = &key
	}
}

func describeReversal(entry *domain.Entry, change *domain.BalanceChange) string {
	if change.Skipped {
		return fmt.Sprintf("Deleted %s: %s (party deleted, balance not reversed)", kindWord(entry.Kind), entry.Amount)
	}
	return fmt.Sprintf("Deleted %s: %s (reversed balance %s -> %s)", kindWord(entry.Kind), entry.Amount, change.Before, change.After)
}
