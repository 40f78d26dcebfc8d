package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/infrastructure/metrics"
)

// ReconciliationUseCase compares stored balances with the entries behind them.
// Every check reads the balance and the entry totals from one snapshot, so a
// concurrent booking cannot show up as drift.
type ReconciliationUseCase struct {
	tx        txRunner
	partyRepo PartyRepository
	entryRepo EntryRepository
	metrics   *metrics.Metrics
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	txManager TransactionManager,
	partyRepo PartyRepository,
	entryRepo EntryRepository,
	m *metrics.Metrics,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		tx:        txRunner{manager: txManager},
		partyRepo: partyRepo,
		entryRepo: entryRepo,
		metrics:   m,
	}
}

// ReconciliationResult represents the result of a reconciliation check.
//
// ComputedBalance is the unclamped sum of loans minus payments. It differs
// from StoredBalance whenever a payment or a loan decrease hit the zero floor.
type ReconciliationResult struct {
	PartyKind       domain.PartyKind
	PartyID         string
	Code            string
	StoredBalance   decimal.Decimal
	LoanTotal       decimal.Decimal
	PaymentTotal    decimal.Decimal
	ComputedBalance decimal.Decimal
	Difference      decimal.Decimal
	IsReconciled    bool
	CheckedAt       time.Time
}

// ReconcileParty checks one non-deleted party.
func (uc *ReconciliationUseCase) ReconcileParty(ctx context.Context, kind domain.PartyKind, id string) (*ReconciliationResult, error) {
	var result *ReconciliationResult

	err := uc.tx.snapshot(ctx, func(ctx context.Context, tx Transaction) error {
		party, err := uc.partyRepo.GetByID(ctx, tx, kind, id)
		if err != nil {
			return err
		}

		result, err = uc.reconcile(ctx, tx, party)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *ReconciliationUseCase) reconcile(ctx context.Context, tx Transaction, party *domain.Party) (*ReconciliationResult, error) {
	loans, payments, err := uc.entryRepo.SumByParty(ctx, tx, party.Kind, party.ID)
	if err != nil {
		return nil, err
	}

	computed := loans.Sub(payments)
	diff := party.Balance.Sub(computed)

	result := &ReconciliationResult{
		PartyKind:       party.Kind,
		PartyID:         party.ID,
		Code:            party.Code,
		StoredBalance:   party.Balance,
		LoanTotal:       loans,
		PaymentTotal:    payments,
		ComputedBalance: computed,
		Difference:      diff,
		IsReconciled:    diff.IsZero(),
		CheckedAt:       time.Now().UTC(),
	}

	if !result.IsReconciled {
		zerolog.Ctx(ctx).Warn().
			Str("party_id", party.ID).
			Str("stored", party.Balance.String()).
			Str("computed", computed.String()).
			Msg("balance drift detected")

		if uc.metrics != nil {
			uc.metrics.ReconciliationDrift.WithLabelValues(string(party.Kind)).Inc()
		}
	}

	return result, nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	PartyKind         domain.PartyKind
	TotalParties      int
	ReconciledParties int
	Discrepancies     []*ReconciliationResult
	TotalDifference   decimal.Decimal
	CheckedAt         time.Time
}

// GenerateReport reconciles every non-deleted party of kind.
func (uc *ReconciliationUseCase) GenerateReport(ctx context.Context, kind domain.PartyKind) (*ReconciliationReport, error) {
	var report *ReconciliationReport

	err := uc.tx.snapshot(ctx, func(ctx context.Context, tx Transaction) error {
		report = &ReconciliationReport{
			PartyKind:       kind,
			Discrepancies:   make([]*ReconciliationResult, 0),
			TotalDifference: decimal.Zero,
		}

		for offset := 0; ; offset += reconcileBatchSize {
			parties, err := uc.partyRepo.List(ctx, tx, domain.PartyFilter{
				Kind:   kind,
				Limit:  reconcileBatchSize,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			for _, party := range parties {
				result, err := uc.reconcile(ctx, tx, party)
				if err != nil {
					return fmt.Errorf("failed to reconcile %s %s: %w", party.Kind, party.ID, err)
				}

				report.TotalParties++
				if result.IsReconciled {
					report.ReconciledParties++
					continue
				}

				report.Discrepancies = append(report.Discrepancies, result)
				report.TotalDifference = report.TotalDifference.Add(result.Difference)
			}

			if len(parties) < reconcileBatchSize {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}

	report.CheckedAt = time.Now().UTC()

	return report, nil
}
