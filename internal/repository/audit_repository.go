package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// AuditRepository handles the append-only audit trail.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// BulkInsert writes a batch of audit events in one COPY.
func (r *AuditRepository) BulkInsert(ctx context.Context, events []*model.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{
			e.DistrictID, e.SchoolID, e.ActorKind, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Detail, e.OccurredAt,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"audit_events"},
		[]string{"district_id", "school_id", "actor_kind", "actor_id", "action", "entity_type", "entity_id", "detail", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert writes one audit event, the fallback path when COPY fails.
func (r *AuditRepository) Insert(ctx context.Context, e *model.AuditEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_events (district_id, school_id, actor_kind, actor_id, action, entity_type, entity_id, detail, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.DistrictID, e.SchoolID, e.ActorKind, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Detail, e.OccurredAt,
	)
	return err
}

// ListPaginated retrieves audit events for a school newest first, with
// optional entity type, action, and date range filters.
func (r *AuditRepository) ListPaginated(ctx context.Context, scope model.TenantScope, entityType, action string, from, to *time.Time, limit, offset int) ([]model.AuditEvent, int, error) {
	where := ` WHERE district_id = $1 AND school_id = $2`
	args := []any{scope.DistrictID, scope.SchoolID}

	if entityType != "" {
		args = append(args, entityType)
		where += ` AND entity_type = $` + strconv.Itoa(len(args))
	}
	if action != "" {
		args = append(args, action)
		where += ` AND action = $` + strconv.Itoa(len(args))
	}
	if from != nil {
		args = append(args, *from)
		where += ` AND occurred_at >= $` + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += ` AND occurred_at <= $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, district_id, school_id, actor_kind, actor_id, action, entity_type, entity_id, detail, occurred_at
	          FROM audit_events` + where +
		` ORDER BY occurred_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		if err := rows.Scan(&e.ID, &e.DistrictID, &e.SchoolID, &e.ActorKind, &e.ActorID, &e.Action,
			&e.EntityType, &e.EntityID, &e.Detail, &e.OccurredAt); err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}
