package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/infrastructure/metrics"
)

const (
	auditMaxRetries     = 2
	auditRetryInterval  = 25 * time.Millisecond
	auditRecordDeadline = 5 * time.Second
)

// AuditUseCase appends and lists audit records.
type AuditUseCase struct {
	auditRepo AuditRepository
	idGen     IDGenerator
	metrics   *metrics.Metrics
}

// NewAuditUseCase creates a new AuditUseCase.
func NewAuditUseCase(auditRepo AuditRepository, idGen IDGenerator, m *metrics.Metrics) *AuditUseCase {
	return &AuditUseCase{
		auditRepo: auditRepo,
		idGen:     idGen,
		metrics:   m,
	}
}

// Record appends one audit record. It is called after the audited mutation
// has committed, so it outlives a cancelled request context. A failure after
// retries is returned as *domain.AuditWriteError.
func (uc *AuditUseCase) Record(ctx context.Context, record *domain.AuditRecord) error {
	if record.ID == "" {
		record.ID = uc.idGen.Generate()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.RequestID == "" {
		record.RequestID = domain.RequestIDFromContext(ctx)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditRecordDeadline)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = auditRetryInterval

	err := backoff.Retry(func() error {
		return uc.auditRepo.Create(writeCtx, record)
	}, backoff.WithContext(backoff.WithMaxRetries(b, auditMaxRetries), writeCtx))
	if err != nil {
		zerolog.Ctx(ctx).Error().
			Err(err).
			Str("target_kind", string(record.TargetKind)).
			Str("target_id", record.TargetID).
			Str("action", string(record.Action)).
			Msg("audit record not written")

		uc.count(record.Action, "failed")

		return &domain.AuditWriteError{
			TargetKind: record.TargetKind,
			TargetID:   record.TargetID,
			Err:        err,
		}
	}

	uc.count(record.Action, "success")

	return nil
}

// List returns audit records matching filter, newest first.
func (uc *AuditUseCase) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error) {
	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.auditRepo.List(ctx, filter)
}

func (uc *AuditUseCase) count(action domain.AuditAction, status string) {
	if uc.metrics != nil {
		uc.metrics.AuditRecords.WithLabelValues(string(action), status).Inc()
	}
}
