package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

const entryColumns = `id, kind, direction, party_kind, party_id, amount, reference,
	period_month, period_year, date_paid, loan_id, images_folder_key,
	balance_after, created_by, is_deleted, created_at, updated_at`

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	db dbtx
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return newEntryRepository(pool)
}

func newEntryRepository(db dbtx) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create inserts a new loan or payment.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	month, year := periodParams(entry.Period)

	_, err := connFor(r.db, tx).Exec(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		entry.ID,
		string(entry.Kind),
		string(entry.Direction),
		string(entry.PartyKind),
		entry.PartyID,
		decimalToNumeric(entry.Amount),
		entry.Reference,
		month,
		year,
		optionalTimestamptz(entry.DatePaid),
		entry.LoanID,
		entry.ImagesFolderKey,
		decimalToNumeric(entry.BalanceAfter),
		entry.CreatedBy,
		entry.IsDeleted,
		timeToPgTimestamptz(entry.CreatedAt),
		timeToPgTimestamptz(entry.UpdatedAt),
	)
	if err != nil {
		return domain.NewPersistenceError("create entry", err)
	}

	return nil
}

// GetByID retrieves a non-deleted entry of the given kind.
func (r *EntryRepository) GetByID(ctx context.Context, kind domain.EntryKind, id string) (*domain.Entry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 AND kind = $2 AND `+notDeleted(""),
		id, string(kind),
	)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, storeError("get entry", err, domain.ErrEntryNotFound)
	}

	return entry, nil
}

// GetByIDForUpdate locks a non-deleted entry.
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, kind domain.EntryKind, id string) (*domain.Entry, error) {
	row := connFor(r.db, tx).QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 AND kind = $2 AND `+notDeleted("")+` FOR UPDATE`,
		id, string(kind),
	)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, storeError("lock entry", err, domain.ErrEntryNotFound)
	}

	return entry, nil
}

// GetByIDForShare reads a non-deleted entry under FOR SHARE. Concurrent
// deletes wait for tx, and a row deleted first is no longer found.
func (r *EntryRepository) GetByIDForShare(ctx context.Context, tx usecase.Transaction, kind domain.EntryKind, id string) (*domain.Entry, error) {
	row := connFor(r.db, tx).QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 AND kind = $2 AND `+notDeleted("")+` FOR SHARE`,
		id, string(kind),
	)

	entry, err := scanEntry(row)
	if err != nil {
		return nil, storeError("share-lock entry", err, domain.ErrEntryNotFound)
	}

	return entry, nil
}

// Update writes the mutable fields of an entry.
func (r *EntryRepository) Update(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	month, year := periodParams(entry.Period)

	tag, err := connFor(r.db, tx).Exec(ctx, `
		UPDATE ledger_entries
		SET amount = $1, reference = $2, period_month = $3, period_year = $4,
		    date_paid = $5, loan_id = $6, images_folder_key = $7, balance_after = $8,
		    is_deleted = $9, updated_at = $10
		WHERE id = $11 AND kind = $12`,
		decimalToNumeric(entry.Amount),
		entry.Reference,
		month,
		year,
		optionalTimestamptz(entry.DatePaid),
		entry.LoanID,
		entry.ImagesFolderKey,
		decimalToNumeric(entry.BalanceAfter),
		entry.IsDeleted,
		timeToPgTimestamptz(entry.UpdatedAt),
		entry.ID,
		string(entry.Kind),
	)
	if err != nil {
		return domain.NewPersistenceError("update entry", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// List returns non-deleted entries, newest first.
func (r *EntryRepository) List(ctx context.Context, filter domain.EntryFilter) ([]*domain.Entry, error) {
	var w whereBuilder
	w.addRaw(notDeleted(""))

	if filter.Kind != "" {
		w.add("kind = $%d", string(filter.Kind))
	}
	if filter.Direction != "" {
		w.add("direction = $%d", string(filter.Direction))
	}
	if filter.PartyID != "" {
		w.add("party_id = $%d", filter.PartyID)
	}
	if filter.Month != "" {
		w.add("period_month = $%d", filter.Month)
	}
	if filter.Year != 0 {
		w.add("period_year = $%d", filter.Year)
	}

	limit, args := w.page(filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries`+w.String()+` ORDER BY created_at DESC, id DESC`+limit,
		args...,
	)
	if err != nil {
		return nil, domain.NewPersistenceError("list entries", err)
	}
	defer rows.Close()

	entries := make([]*domain.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("scan entry", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("list entries", err)
	}

	return entries, nil
}

// SumByParty totals non-deleted loan and payment amounts booked against a party.
func (r *EntryRepository) SumByParty(ctx context.Context, tx usecase.Transaction, kind domain.PartyKind, partyID string) (decimal.Decimal, decimal.Decimal, error) {
	var loans, payments pgtype.Numeric

	err := connFor(r.db, tx).QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE kind = 'Loan'), 0),
			COALESCE(SUM(amount) FILTER (WHERE kind = 'Payment'), 0)
		FROM ledger_entries
		WHERE party_kind = $1 AND party_id = $2 AND `+notDeleted(""),
		string(kind), partyID,
	).Scan(&loans, &payments)
	if err != nil {
		return decimal.Zero, decimal.Zero, domain.NewPersistenceError("sum entries", err)
	}

	return numericToDecimal(loans), numericToDecimal(payments), nil
}

func periodParams(p *domain.Period) (pgtype.Text, pgtype.Int4) {
	if p == nil {
		return pgtype.Text{}, pgtype.Int4{}
	}
	return pgtype.Text{String: p.Month, Valid: true}, pgtype.Int4{Int32: int32(p.Year), Valid: true}
}

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var (
		e            domain.Entry
		kind         string
		direction    string
		partyKind    string
		amount       pgtype.Numeric
		month        pgtype.Text
		year         pgtype.Int4
		datePaid     pgtype.Timestamptz
		balanceAfter pgtype.Numeric
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)

	err := row.Scan(
		&e.ID,
		&kind,
		&direction,
		&partyKind,
		&e.PartyID,
		&amount,
		&e.Reference,
		&month,
		&year,
		&datePaid,
		&e.LoanID,
		&e.ImagesFolderKey,
		&balanceAfter,
		&e.CreatedBy,
		&e.IsDeleted,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = domain.EntryKind(kind)
	e.Direction = domain.Direction(direction)
	e.PartyKind = domain.PartyKind(partyKind)
	e.Amount = numericToDecimal(amount)
	e.BalanceAfter = numericToDecimal(balanceAfter)
	e.DatePaid = timestamptzPtr(datePaid)
	e.CreatedAt = createdAt.Time.UTC()
	e.UpdatedAt = updatedAt.Time.UTC()

	if month.Valid {
		e.Period = &domain.Period{Month: month.String, Year: int(year.Int32)}
	}

	return &e, nil
}
