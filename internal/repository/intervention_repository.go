package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// InterventionRepository handles MTSS intervention plans and notes.
type InterventionRepository struct {
	pool *pgxpool.Pool
}

// NewInterventionRepository creates a new InterventionRepository.
func NewInterventionRepository(pool *pgxpool.Pool) *InterventionRepository {
	return &InterventionRepository{pool: pool}
}

const planColumns = `p.id, p.district_id, p.school_id, p.student_id, CONCAT(s.first_name, ' ', s.last_name),
	p.section_id, p.tier, p.trigger_kind, p.status, p.summary, p.owner_id,
	CONCAT(st.first_name, ' ', st.last_name), p.opened_at, p.resolved_at, p.updated_at`

const planJoins = ` FROM intervention_plans p
	JOIN students s ON p.student_id = s.id
	JOIN staff st ON p.owner_id = st.id`

func scanPlan(row interface{ Scan(dest ...any) error }, p *model.InterventionPlan) error {
	return row.Scan(&p.ID, &p.DistrictID, &p.SchoolID, &p.StudentID, &p.StudentName,
		&p.SectionID, &p.Tier, &p.Trigger, &p.Status, &p.Summary, &p.OwnerID,
		&p.OwnerName, &p.OpenedAt, &p.ResolvedAt, &p.UpdatedAt)
}

// GetByID retrieves a plan by ID within a school.
func (r *InterventionRepository) GetByID(ctx context.Context, scope model.TenantScope, id uuid.UUID) (*model.InterventionPlan, error) {
	p := &model.InterventionPlan{}
	err := scanPlan(r.pool.QueryRow(ctx,
		`SELECT `+planColumns+planJoins+`
		 WHERE p.district_id = $1 AND p.school_id = $2 AND p.id = $3`,
		scope.DistrictID, scope.SchoolID, id,
	), p)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPaginated retrieves plans for a school with optional status,
// tier, and student filters, most recently opened first.
func (r *InterventionRepository) ListPaginated(ctx context.Context, scope model.TenantScope, status string, tier, studentID *int, limit, offset int) ([]model.InterventionPlan, int, error) {
	where := ` WHERE p.district_id = $1 AND p.school_id = $2`
	args := []any{scope.DistrictID, scope.SchoolID}

	if status != "" {
		args = append(args, status)
		where += ` AND p.status = $` + strconv.Itoa(len(args))
	}
	if tier != nil {
		args = append(args, *tier)
		where += ` AND p.tier = $` + strconv.Itoa(len(args))
	}
	if studentID != nil {
		args = append(args, *studentID)
		where += ` AND p.student_id = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+planJoins+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + planColumns + planJoins + where +
		` ORDER BY p.opened_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var plans []model.InterventionPlan
	for rows.Next() {
		var p model.InterventionPlan
		if err := scanPlan(rows, &p); err != nil {
			return nil, 0, err
		}
		plans = append(plans, p)
	}
	return plans, total, rows.Err()
}

// ListByStudent retrieves all plans for one student, newest first.
func (r *InterventionRepository) ListByStudent(ctx context.Context, studentID int) ([]model.InterventionPlan, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+planColumns+planJoins+`
		 WHERE p.student_id = $1
		 ORDER BY p.opened_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []model.InterventionPlan
	for rows.Next() {
		var p model.InterventionPlan
		if err := scanPlan(rows, &p); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// Create inserts a new plan.
func (r *InterventionRepository) Create(ctx context.Context, p *model.InterventionPlan) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO intervention_plans (district_id, school_id, student_id, section_id, tier, trigger_kind, status, summary, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, opened_at, updated_at`,
		p.DistrictID, p.SchoolID, p.StudentID, p.SectionID, p.Tier, p.Trigger, p.Status, p.Summary, p.OwnerID,
	).Scan(&p.ID, &p.OpenedAt, &p.UpdatedAt)
}

// Update modifies a plan's tier, status, and summary. Resolving stamps
// resolved_at; reopening clears it.
func (r *InterventionRepository) Update(ctx context.Context, p *model.InterventionPlan) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE intervention_plans
		 SET tier = $1, status = $2, summary = $3,
		     resolved_at = CASE WHEN $2 = 'resolved' THEN COALESCE(resolved_at, CURRENT_TIMESTAMP) ELSE NULL END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE district_id = $4 AND school_id = $5 AND id = $6`,
		p.Tier, p.Status, p.Summary, p.DistrictID, p.SchoolID, p.ID,
	)
	return err
}

// HasOpenPlan reports whether the student already has an unresolved
// plan for the given trigger, the dedup guard for automatic openings.
func (r *InterventionRepository) HasOpenPlan(ctx context.Context, studentID int, trigger model.InterventionTrigger) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM intervention_plans
		   WHERE student_id = $1 AND trigger_kind = $2 AND status <> 'resolved'
		 )`, studentID, trigger,
	).Scan(&exists)
	return exists, err
}

// EscalateTier raises an open plan's tier by one, but never past
// maxTier. Re-running the same severity is therefore a no-op, which is
// what keeps at-least-once event delivery from inflating tiers.
// Returns pgx.ErrNoRows when no plan qualified.
func (r *InterventionRepository) EscalateTier(ctx context.Context, studentID int, trigger model.InterventionTrigger, maxTier model.InterventionTier) (*model.InterventionPlan, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`UPDATE intervention_plans
		 SET tier = tier + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = (
		   SELECT id FROM intervention_plans
		   WHERE student_id = $1 AND trigger_kind = $2 AND status <> 'resolved'
		     AND tier < $3 AND tier < 3
		   ORDER BY opened_at DESC LIMIT 1
		 )
		 RETURNING id`, studentID, trigger, int(maxTier),
	).Scan(&id)
	if err != nil {
		return nil, err
	}

	p := &model.InterventionPlan{}
	err = scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+planJoins+` WHERE p.id = $1`, id), p)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AddNote appends a progress note to a plan.
func (r *InterventionRepository) AddNote(ctx context.Context, n *model.InterventionNote) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO intervention_notes (plan_id, author_id, body) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		n.PlanID, n.AuthorID, n.Body,
	).Scan(&n.ID, &n.CreatedAt)
}

// ListNotes retrieves a plan's notes oldest first.
func (r *InterventionRepository) ListNotes(ctx context.Context, planID uuid.UUID) ([]model.InterventionNote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT n.id, n.plan_id, n.author_id, CONCAT(st.first_name, ' ', st.last_name), n.body, n.created_at
		 FROM intervention_notes n
		 JOIN staff st ON n.author_id = st.id
		 WHERE n.plan_id = $1
		 ORDER BY n.created_at`, planID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []model.InterventionNote
	for rows.Next() {
		var n model.InterventionNote
		if err := rows.Scan(&n.ID, &n.PlanID, &n.AuthorID, &n.AuthorName, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// CountOpenByTier counts unresolved plans per tier for a school.
func (r *InterventionRepository) CountOpenByTier(ctx context.Context, scope model.TenantScope) (*model.TierBreakdown, error) {
	b := &model.TierBreakdown{}
	err := r.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE tier = 1),
		   COUNT(*) FILTER (WHERE tier = 2),
		   COUNT(*) FILTER (WHERE tier = 3)
		 FROM intervention_plans
		 WHERE district_id = $1 AND school_id = $2 AND status <> 'resolved'`,
		scope.DistrictID, scope.SchoolID,
	).Scan(&b.Tier1, &b.Tier2, &b.Tier3)
	if err != nil {
		return nil, err
	}
	return b, nil
}
