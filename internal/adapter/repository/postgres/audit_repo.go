package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/shopledger/internal/domain"
)

// AuditRepository implements append-only audit persistence.
type AuditRepository struct {
	db dbtx
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return newAuditRepository(pool)
}

func newAuditRepository(db dbtx) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit record. It never updates an existing one.
func (r *AuditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	before, err := marshalState(record.Before)
	if err != nil {
		return err
	}

	after, err := marshalState(record.After)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_records (
			id, actor_id, action, target_kind, target_id,
			before_state, after_state, description, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID,
		record.ActorID,
		string(record.Action),
		string(record.TargetKind),
		record.TargetID,
		before,
		after,
		record.Description,
		record.RequestID,
		timeToPgTimestamptz(record.CreatedAt),
	)
	if err != nil {
		return domain.NewPersistenceError("create audit record", err)
	}

	return nil
}

// List retrieves audit records with filtering, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error) {
	var w whereBuilder

	if filter.ActorID != "" {
		w.add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		w.add("action = $%d", string(filter.Action))
	}
	if filter.TargetKind != "" {
		w.add("target_kind = $%d", string(filter.TargetKind))
	}
	if filter.TargetID != "" {
		w.add("target_id = $%d", filter.TargetID)
	}
	if filter.StartDate != nil {
		w.add("created_at >= $%d", timeToPgTimestamptz(*filter.StartDate))
	}
	if filter.EndDate != nil {
		w.add("created_at <= $%d", timeToPgTimestamptz(*filter.EndDate))
	}

	limit, args := w.page(filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, `
		SELECT id, actor_id, action, target_kind, target_id,
		       before_state, after_state, description, request_id, created_at
		FROM audit_records`+w.String()+`
		ORDER BY created_at DESC, id DESC`+limit,
		args...,
	)
	if err != nil {
		return nil, domain.NewPersistenceError("list audit records", err)
	}
	defer rows.Close()

	records := make([]*domain.AuditRecord, 0)
	for rows.Next() {
		var (
			rec        domain.AuditRecord
			action     string
			targetKind string
			before     []byte
			after      []byte
			createdAt  pgtype.Timestamptz
		)

		err := rows.Scan(
			&rec.ID,
			&rec.ActorID,
			&action,
			&targetKind,
			&rec.TargetID,
			&before,
			&after,
			&rec.Description,
			&rec.RequestID,
			&createdAt,
		)
		if err != nil {
			return nil, domain.NewPersistenceError("scan audit record", err)
		}

		rec.Action = domain.AuditAction(action)
		rec.TargetKind = domain.TargetKind(targetKind)
		rec.CreatedAt = createdAt.Time.UTC()

		if before != nil {
			_ = json.Unmarshal(before, &rec.Before)
		}
		if after != nil {
			_ = json.Unmarshal(after, &rec.After)
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("list audit records", err)
	}

	return records, nil
}

func marshalState(state domain.JSON) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}
