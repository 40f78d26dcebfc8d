package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/infrastructure/metrics"
)

// PartyUseCase handles shop and customer lifecycle.
type PartyUseCase struct {
	tx         txRunner
	partyRepo  PartyRepository
	seqRepo    SequenceRepository
	outboxRepo OutboxRepository
	audit      *AuditUseCase
	idGen      IDGenerator
	cache      *PartyCache
	metrics    *metrics.Metrics
}

// NewPartyUseCase creates a new PartyUseCase.
func NewPartyUseCase(
	txManager TransactionManager,
	partyRepo PartyRepository,
	seqRepo SequenceRepository,
	outboxRepo OutboxRepository,
	audit *AuditUseCase,
	idGen IDGenerator,
	m *metrics.Metrics,
) *PartyUseCase {
	return &PartyUseCase{
		tx:         txRunner{manager: txManager},
		partyRepo:  partyRepo,
		seqRepo:    seqRepo,
		outboxRepo: outboxRepo,
		audit:      audit,
		idGen:      idGen,
		metrics:    m,
	}
}

// WithRetrier retries transactions that fail on transient conflicts.
func (uc *PartyUseCase) WithRetrier(r Retrier) *PartyUseCase {
	uc.tx.retrier = r
	return uc
}

// WithCache enables the party read cache.
func (uc *PartyUseCase) WithCache(c *PartyCache) *PartyUseCase {
	uc.cache = c
	return uc
}

// CreatePartyInput represents input for creating a shop or customer.
type CreatePartyInput struct {
	ActorID      string
	Kind         domain.PartyKind
	Name         string
	OwnerName    string
	Phone        string
	Village      string
	Category     string
	RegisterDate *time.Time
}

// UpdatePartyInput carries descriptive changes. Empty fields keep their value.
type UpdatePartyInput struct {
	ActorID   string
	Kind      domain.PartyKind
	ID        string
	Name      string
	OwnerName string
	Phone     string
	Village   string
	Category  string
}

// CreateParty registers a new party with a zero balance and the next code of its kind.
func (uc *PartyUseCase) CreateParty(ctx context.Context, input CreatePartyInput) (*domain.Party, error) {
	if input.ActorID == "" {
		return nil, domain.ErrMissingActor
	}

	now := time.Now().UTC()
	registerDate := now
	if input.RegisterDate != nil {
		registerDate = input.RegisterDate.UTC()
	}

	party := &domain.Party{
		ID:           uc.idGen.Generate(),
		Kind:         input.Kind,
		Name:         strings.TrimSpace(input.Name),
		OwnerName:    strings.TrimSpace(input.OwnerName),
		Phone:        strings.TrimSpace(input.Phone),
		Village:      strings.TrimSpace(input.Village),
		Category:     input.Category,
		RegisterDate: registerDate,
		CreatedBy:    input.ActorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := party.Validate(); err != nil {
		return nil, err
	}

	err := uc.tx.run(ctx, func(ctx context.Context, tx Transaction) error {
		n, err := uc.seqRepo.Next(ctx, tx, sequenceName(party.Kind))
		if err != nil {
			return err
		}

		party.Code = domain.FormatPartyCode(party.Kind, n)

		if err := uc.partyRepo.Create(ctx, tx, party); err != nil {
			return err
		}

		return uc.emit(ctx, tx, party, domain.EventTypePartyCreated, now)
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.PartiesCreated.WithLabelValues(string(party.Kind)).Inc()
	}

	return party, uc.audit.Record(ctx, &domain.AuditRecord{
		ActorID:     input.ActorID,
		Action:      domain.AuditActionCreate,
		TargetKind:  domain.TargetForParty(party.Kind),
		TargetID:    party.ID,
		After:       domain.MarshalState(party),
		Description: fmt.Sprintf("Created %s: %s (%s)", kindWord(party.Kind), party.DisplayName(), party.Code),
	})
}

// GetParty returns a non-deleted party.
func (uc *PartyUseCase) GetParty(ctx context.Context, kind domain.PartyKind, id string) (*domain.Party, error) {
	if party, ok := uc.cache.get(ctx, kind, id); ok {
		if party.IsDeleted {
			return nil, domain.ErrPartyNotFound
		}
		return party, nil
	}

	party, err := uc.partyRepo.GetByID(ctx, nil, kind, id)
	if err != nil {
		return nil, err
	}

	uc.cache.put(ctx, party)

	return party, nil
}

// ListParties returns non-deleted parties matching filter.
func (uc *PartyUseCase) ListParties(ctx context.Context, filter domain.PartyFilter) ([]*domain.Party, error) {
	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.partyRepo.List(ctx, nil, filter)
}

// UpdateParty changes descriptive fields. The balance is never touched here.
func (uc *PartyUseCase) UpdateParty(ctx context.Context, input UpdatePartyInput) (*domain.Party, error) {
	if input.ActorID == "" {
		return nil, domain.ErrMissingActor
	}

	var before, party *domain.Party

	err := uc.tx.run(ctx, func(ctx context.Context, tx Transaction) error {
		locked, err := uc.lockActive(ctx, tx, input.Kind, input.ID)
		if err != nil {
			return err
		}

		snapshot := *locked
		before = &snapshot

		keep(&locked.Name, input.Name)
		keep(&locked.OwnerName, input.OwnerName)
		keep(&locked.Phone, input.Phone)
		keep(&locked.Village, input.Village)
		keep(&locked.Category, input.Category)
		locked.UpdatedAt = time.Now().UTC()

		if err := locked.Validate(); err != nil {
			return err
		}

		if err := uc.partyRepo.Update(ctx, tx, locked); err != nil {
			return err
		}
		locked.Version++
		party = locked

		return uc.emit(ctx, tx, party, domain.EventTypePartyUpdated, party.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}

	uc.cache.put(ctx, party)

	return party, uc.audit.Record(ctx, &domain.AuditRecord{
		ActorID:     input.ActorID,
		Action:      domain.AuditActionUpdate,
		TargetKind:  domain.TargetForParty(party.Kind),
		TargetID:    party.ID,
		Before:      domain.MarshalState(before),
		After:       domain.MarshalState(party),
		Description: fmt.Sprintf("Updated %s: %s (%s)", kindWord(party.Kind), party.DisplayName(), party.Code),
	})
}

// DeleteParty soft-deletes a party. Its entries and audit history stay readable.
func (uc *PartyUseCase) DeleteParty(ctx context.Context, actorID string, kind domain.PartyKind, id string) (*domain.Party, error) {
	if actorID == "" {
		return nil, domain.ErrMissingActor
	}

	var before, party *domain.Party

	err := uc.tx.run(ctx, func(ctx context.Context, tx Transaction) error {
		locked, err := uc.lockActive(ctx, tx, kind, id)
		if err != nil {
			return err
		}

		snapshot := *locked
		before = &snapshot

		locked.IsDeleted = true
		locked.UpdatedAt = time.Now().UTC()

		if err := uc.partyRepo.Update(ctx, tx, locked); err != nil {
			return err
		}
		locked.Version++
		party = locked

		return uc.emit(ctx, tx, party, domain.EventTypePartyDeleted, party.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}

	uc.cache.put(ctx, party)

	if uc.metrics != nil {
		uc.metrics.PartiesDeleted.WithLabelValues(string(kind)).Inc()
	}

	return party, uc.audit.Record(ctx, &domain.AuditRecord{
		ActorID:     actorID,
		Action:      domain.AuditActionDelete,
		TargetKind:  domain.TargetForParty(kind),
		TargetID:    party.ID,
		Before:      domain.MarshalState(before),
		After:       domain.MarshalState(party),
		Description: fmt.Sprintf("Deleted %s: %s (%s)", kindWord(kind), party.DisplayName(), party.Code),
	})
}

func (uc *PartyUseCase) lockActive(ctx context.Context, tx Transaction, kind domain.PartyKind, id string) (*domain.Party, error) {
	party, err := uc.partyRepo.GetByIDForUpdate(ctx, tx, kind, id)
	if err != nil {
		return nil, err
	}

	if party.IsDeleted {
		return nil, domain.ErrPartyNotFound
	}

	return party, nil
}

func (uc *PartyUseCase) emit(ctx context.Context, tx Transaction, party *domain.Party, eventType string, at time.Time) error {
	if uc.outboxRepo == nil {
		return nil
	}

	return uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   party.ID,
		AggregateType: domain.AggregateTypeParty,
		EventType:     eventType,
		Payload: map[string]any{
			"party_id": party.ID,
			"kind":     string(party.Kind),
			"code":     party.Code,
			"name":     party.Name,
			"balance":  party.Balance.String(),
		},
		CreatedAt: at,
	})
}

func sequenceName(kind domain.PartyKind) string {
	return "party_code:" + string(kind)
}

func kindWord(kind fmt.Stringer) string {
	return strings.ToLower(kind.String())
}

func keep(field *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*field = v
	}
}
