package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// DashboardRepository aggregates the counts behind the staff landing
// page in as few round trips as possible.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// Summary collects the school-wide dashboard counters.
func (r *DashboardRepository) Summary(ctx context.Context, scope model.TenantScope) (*model.DashboardSummary, error) {
	s := &model.DashboardSummary{}

	err := r.pool.QueryRow(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM students WHERE district_id = $1 AND school_id = $2 AND deleted_at IS NULL),
		  (SELECT COUNT(*) FROM sections WHERE district_id = $1 AND school_id = $2 AND deleted_at IS NULL),
		  (SELECT COUNT(*) FROM staff WHERE district_id = $1 AND school_id = $2 AND is_active),
		  (SELECT COUNT(*) FROM intervention_plans WHERE district_id = $1 AND school_id = $2 AND status <> 'resolved'),
		  (SELECT COUNT(*) FROM notifications WHERE district_id = $1 AND school_id = $2 AND status = 'dead')
	`, scope.DistrictID, scope.SchoolID).Scan(
		&s.StudentCount, &s.SectionCount, &s.StaffCount, &s.ActivePlanCount, &s.DeadNotifications,
	)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
		  COUNT(DISTINCT ar.student_id) FILTER (WHERE ar.status = 'absent'),
		  COUNT(*),
		  COALESCE(
		    COUNT(*) FILTER (WHERE ar.status <> 'absent')::float8 / NULLIF(COUNT(*), 0),
		    0
		  )
		FROM attendance_records ar
		JOIN sections se ON ar.section_id = se.id
		WHERE se.district_id = $1 AND se.school_id = $2 AND ar.date = CURRENT_DATE
	`, scope.DistrictID, scope.SchoolID).Scan(
		&s.TodayAbsentCount, &s.TodayAttendanceRun, &s.AttendanceRate,
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}
