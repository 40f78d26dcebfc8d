package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

const partyColumns = `id, kind, code, name, owner_name, phone, village, category,
	register_date, balance, version, created_by, is_deleted, created_at, updated_at`

// PartyRepository implements usecase.PartyRepository.
type PartyRepository struct {
	db dbtx
}

// NewPartyRepository creates a new PartyRepository.
func NewPartyRepository(pool *pgxpool.Pool) *PartyRepository {
	return newPartyRepository(pool)
}

func newPartyRepository(db dbtx) *PartyRepository {
	return &PartyRepository{db: db}
}

// Create inserts a new party.
func (r *PartyRepository) Create(ctx context.Context, tx usecase.Transaction, party *domain.Party) error {
	_, err := connFor(r.db, tx).Exec(ctx, `
		INSERT INTO parties (`+partyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		party.ID,
		string(party.Kind),
		party.Code,
		party.Name,
		party.OwnerName,
		party.Phone,
		party.Village,
		party.Category,
		timeToPgTimestamptz(party.RegisterDate),
		decimalToNumeric(party.Balance),
		party.Version,
		party.CreatedBy,
		party.IsDeleted,
		timeToPgTimestamptz(party.CreatedAt),
		timeToPgTimestamptz(party.UpdatedAt),
	)
	if err != nil {
		return domain.NewPersistenceError("create party", err)
	}

	return nil
}

// GetByID retrieves a non-deleted party.
func (r *PartyRepository) GetByID(ctx context.Context, tx usecase.Transaction, kind domain.PartyKind, id string) (*domain.Party, error) {
	row := connFor(r.db, tx).QueryRow(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE id = $1 AND kind = $2 AND `+notDeleted(""),
		id, string(kind),
	)

	party, err := scanParty(row)
	if err != nil {
		return nil, storeError("get party", err, domain.ErrPartyNotFound)
	}

	return party, nil
}

// GetByIDForUpdate locks the party row, including soft-deleted rows.
func (r *PartyRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, kind domain.PartyKind, id string) (*domain.Party, error) {
	row := connFor(r.db, tx).QueryRow(ctx,
		`SELECT `+partyColumns+` FROM parties WHERE id = $1 AND kind = $2 FOR UPDATE`,
		id, string(kind),
	)

	party, err := scanParty(row)
	if err != nil {
		return nil, storeError("lock party", err, domain.ErrPartyNotFound)
	}

	return party, nil
}

// Update writes descriptive fields and the deleted flag when the stored
// version still equals party.Version. The version is bumped on success.
func (r *PartyRepository) Update(ctx context.Context, tx usecase.Transaction, party *domain.Party) error {
	tag, err := connFor(r.db, tx).Exec(ctx, `
		UPDATE parties
		SET name = $1, owner_name = $2, phone = $3, village = $4, category = $5,
		    is_deleted = $6, updated_at = $7, version = version + 1
		WHERE id = $8 AND kind = $9 AND version = $10`,
		party.Name,
		party.OwnerName,
		party.Phone,
		party.Village,
		party.Category,
		party.IsDeleted,
		timeToPgTimestamptz(party.UpdatedAt),
		party.ID,
		string(party.Kind),
		party.Version,
	)
	if err != nil {
		return domain.NewPersistenceError("update party", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}

	return nil
}

// UpdateBalance writes a new balance when the stored version equals expectedVersion.
func (r *PartyRepository) UpdateBalance(
	ctx context.Context,
	tx usecase.Transaction,
	kind domain.PartyKind,
	id string,
	balance decimal.Decimal,
	expectedVersion int64,
	updatedAt time.Time,
) error {
	tag, err := connFor(r.db, tx).Exec(ctx, `
		UPDATE parties
		SET balance = $1, updated_at = $2, version = version + 1
		WHERE id = $3 AND kind = $4 AND version = $5`,
		decimalToNumeric(balance),
		timeToPgTimestamptz(updatedAt),
		id,
		string(kind),
		expectedVersion,
	)
	if err != nil {
		return domain.NewPersistenceError("update party balance", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}

	return nil
}

// List returns non-deleted parties ordered by code.
func (r *PartyRepository) List(ctx context.Context, tx usecase.Transaction, filter domain.PartyFilter) ([]*domain.Party, error) {
	var w whereBuilder
	w.addRaw(notDeleted(""))

	if filter.Kind != "" {
		w.add("kind = $%d", string(filter.Kind))
	}
	if filter.Category != "" {
		w.add("category = $%d", filter.Category)
	}
	if filter.Search != "" {
		w.add("(name ILIKE $%[1]d OR owner_name ILIKE $%[1]d OR code ILIKE $%[1]d)", "%"+filter.Search+"%")
	}

	limit, args := w.page(filter.Limit, filter.Offset)

	rows, err := connFor(r.db, tx).Query(ctx, `SELECT `+partyColumns+` FROM parties`+w.String()+` ORDER BY code`+limit, args...)
	if err != nil {
		return nil, domain.NewPersistenceError("list parties", err)
	}
	defer rows.Close()

	parties := make([]*domain.Party, 0)
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("scan party", err)
		}
		parties = append(parties, party)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("list parties", err)
	}

	return parties, nil
}

func scanParty(row pgx.Row) (*domain.Party, error) {
	var (
		p            domain.Party
		kind         string
		registerDate pgtype.Timestamptz
		balance      pgtype.Numeric
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)

	err := row.Scan(
		&p.ID,
		&kind,
		&p.Code,
		&p.Name,
		&p.OwnerName,
		&p.Phone,
		&p.Village,
		&p.Category,
		&registerDate,
		&balance,
		&p.Version,
		&p.CreatedBy,
		&p.IsDeleted,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Kind = domain.PartyKind(kind)
	p.RegisterDate = registerDate.Time.UTC()
	p.Balance = numericToDecimal(balance)
	p.CreatedAt = createdAt.Time.UTC()
	p.UpdatedAt = updatedAt.Time.UTC()

	return &p, nil
}
