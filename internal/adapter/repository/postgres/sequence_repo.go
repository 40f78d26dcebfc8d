package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

// SequenceRepository implements usecase.SequenceRepository on the
// party_sequences table. The upsert locks the counter row until the
// surrounding transaction ends, so two creations never share a number.
type SequenceRepository struct {
	db dbtx
}

// NewSequenceRepository creates a new SequenceRepository.
func NewSequenceRepository(pool *pgxpool.Pool) *SequenceRepository {
	return newSequenceRepository(pool)
}

func newSequenceRepository(db dbtx) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next increments the named counter and returns the new value. The first value is 1.
func (r *SequenceRepository) Next(ctx context.Context, tx usecase.Transaction, name string) (int64, error) {
	var value int64

	err := connFor(r.db, tx).QueryRow(ctx, `
		INSERT INTO party_sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = party_sequences.value + 1
		RETURNING value`,
		name,
	).Scan(&value)
	if err != nil {
		return 0, domain.NewPersistenceError("next sequence value", err)
	}

	return value, nil
}
