package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
)

// PartyRepository defines data access for shops and customers. Reads taking
// a nil tx run outside any transaction.
type PartyRepository interface {
	Create(ctx context.Context, tx Transaction, party *domain.Party) error
	// GetByID returns a non-deleted party.
	GetByID(ctx context.Context, tx Transaction, kind domain.PartyKind, id string) (*domain.Party, error)
	// GetByIDForUpdate locks the party row, deleted or not.
	GetByIDForUpdate(ctx context.Context, tx Transaction, kind domain.PartyKind, id string) (*domain.Party, error)
	// Update writes descriptive fields and the deleted flag when the stored
	// version still equals party.Version.
	Update(ctx context.Context, tx Transaction, party *domain.Party) error
	// UpdateBalance writes a new balance when the stored version equals expectedVersion.
	UpdateBalance(ctx context.Context, tx Transaction, kind domain.PartyKind, id string, balance decimal.Decimal, expectedVersion int64, updatedAt time.Time) error
	List(ctx context.Context, tx Transaction, filter domain.PartyFilter) ([]*domain.Party, error)
}

// EntryRepository defines data access for loans and payments.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.Entry) error
	// GetByID returns a non-deleted entry.
	GetByID(ctx context.Context, kind domain.EntryKind, id string) (*domain.Entry, error)
	// GetByIDForUpdate locks a non-deleted entry.
	GetByIDForUpdate(ctx context.Context, tx Transaction, kind domain.EntryKind, id string) (*domain.Entry, error)
	// GetByIDForShare reads a non-deleted entry and holds a share lock on it
	// until tx ends, so it cannot be deleted underneath the caller.
	GetByIDForShare(ctx context.Context, tx Transaction, kind domain.EntryKind, id string) (*domain.Entry, error)
	Update(ctx context.Context, tx Transaction, entry *domain.Entry) error
	List(ctx context.Context, filter domain.EntryFilter) ([]*domain.Entry, error)
	// SumByParty totals non-deleted loan and payment amounts booked against a
	// party. A nil tx reads outside any transaction.
	SumByParty(ctx context.Context, tx Transaction, kind domain.PartyKind, partyID string) (loans, payments decimal.Decimal, err error)
}

// SequenceRepository issues monotonic counters.
type SequenceRepository interface {
	Next(ctx context.Context, tx Transaction, name string) (int64, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit records.
type AuditRepository interface {
	Create(ctx context.Context, record *domain.AuditRecord) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
	// BeginSnapshot starts a read-only transaction whose reads all see one
	// snapshot of the store.
	BeginSnapshot(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation that failed on a transient store conflict.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// SetIfNewer stores value unless the key already holds version or a
	// newer one. It reports whether the value was written.
	SetIfNewer(ctx context.Context, key string, value []byte, version int64, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// Reserve atomically claims key for an in-flight request. When the key
	// is already claimed it reports reserved=false together with the stored
	// response, or a nil response while the first request is still running.
	Reserve(ctx context.Context, key string, ttl time.Duration) (reserved bool, response []byte, err error)
	// Complete replaces the claim with the final response.
	Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops an unfinished claim so the request can be retried.
	Release(ctx context.Context, key string) error
}
