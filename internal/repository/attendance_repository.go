package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// AttendanceRepository handles attendance data access.
type AttendanceRepository struct {
	pool *pgxpool.Pool
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(pool *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// UpsertBatch writes a full roster's marks for one date in a single
// pipelined batch. Re-recording a (section, student, date) overwrites.
func (r *AttendanceRepository) UpsertBatch(ctx context.Context, records []model.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO attendance_records (section_id, student_id, date, status, note, recorded_by)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (section_id, student_id, date) DO UPDATE
			 SET status = EXCLUDED.status,
			     note = EXCLUDED.note,
			     recorded_by = EXCLUDED.recorded_by,
			     updated_at = CURRENT_TIMESTAMP`,
			rec.SectionID, rec.StudentID, rec.Date, rec.Status, rec.Note, rec.RecordedBy,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListBySectionDate retrieves a section's marks for one date.
func (r *AttendanceRepository) ListBySectionDate(ctx context.Context, sectionID int, date time.Time) ([]model.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ar.id, ar.section_id, ar.student_id, CONCAT(s.first_name, ' ', s.last_name),
		        ar.date, ar.status, ar.note, ar.recorded_by, ar.created_at, ar.updated_at
		 FROM attendance_records ar
		 JOIN students s ON ar.student_id = s.id
		 WHERE ar.section_id = $1 AND ar.date = $2 AND s.deleted_at IS NULL
		 ORDER BY s.last_name, s.first_name`, sectionID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.SectionID, &rec.StudentID, &rec.StudentName,
			&rec.Date, &rec.Status, &rec.Note, &rec.RecordedBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListByStudent retrieves a student's marks across all sections within
// a date range, newest first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID int, from, to time.Time) ([]model.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ar.id, ar.section_id, ar.student_id, ar.date, ar.status, ar.note, ar.recorded_by, ar.created_at, ar.updated_at
		 FROM attendance_records ar
		 WHERE ar.student_id = $1 AND ar.date >= $2 AND ar.date <= $3
		 ORDER BY ar.date DESC, ar.section_id`, studentID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.SectionID, &rec.StudentID, &rec.Date, &rec.Status, &rec.Note,
			&rec.RecordedBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SummaryByStudent aggregates a student's marks within a date range.
func (r *AttendanceRepository) SummaryByStudent(ctx context.Context, studentID int, from, to time.Time) (*model.AttendanceSummary, error) {
	s := &model.AttendanceSummary{StudentID: studentID}
	err := r.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE status = 'present'),
		   COUNT(*) FILTER (WHERE status = 'absent'),
		   COUNT(*) FILTER (WHERE status = 'late'),
		   COUNT(*) FILTER (WHERE status = 'excused')
		 FROM attendance_records
		 WHERE student_id = $1 AND date >= $2 AND date <= $3`,
		studentID, from, to,
	).Scan(&s.PresentCount, &s.AbsentCount, &s.LateCount, &s.ExcusedCount)
	if err != nil {
		return nil, err
	}

	total := s.PresentCount + s.AbsentCount + s.LateCount + s.ExcusedCount
	if total > 0 {
		s.Rate = float64(s.PresentCount+s.LateCount+s.ExcusedCount) / float64(total)
	}
	return s, nil
}

// ListRecentStatuses retrieves a student's latest marks in one section,
// newest first, for streak checks. One row per recorded date.
func (r *AttendanceRepository) ListRecentStatuses(ctx context.Context, sectionID, studentID, limit int) ([]model.AttendanceStatus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status FROM attendance_records
		 WHERE section_id = $1 AND student_id = $2
		 ORDER BY date DESC
		 LIMIT $3`, sectionID, studentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []model.AttendanceStatus
	for rows.Next() {
		var s model.AttendanceStatus
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// DailySummary aggregates one date's marks across a school. Status
// counts are distinct students so a double-marked student is not
// counted twice.
func (r *AttendanceRepository) DailySummary(ctx context.Context, scope model.TenantScope, date time.Time) (*model.DailyAttendanceSummary, error) {
	s := &model.DailyAttendanceSummary{Date: date}

	err := r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM sections
		    WHERE district_id = $1 AND school_id = $2 AND deleted_at IS NULL),
		   COUNT(DISTINCT ar.section_id),
		   COUNT(DISTINCT ar.student_id) FILTER (WHERE ar.status = 'present'),
		   COUNT(DISTINCT ar.student_id) FILTER (WHERE ar.status = 'absent'),
		   COUNT(DISTINCT ar.student_id) FILTER (WHERE ar.status = 'late'),
		   COUNT(DISTINCT ar.student_id) FILTER (WHERE ar.status = 'excused')
		 FROM attendance_records ar
		 JOIN sections se ON ar.section_id = se.id
		 WHERE se.district_id = $1 AND se.school_id = $2 AND ar.date = $3`,
		scope.DistrictID, scope.SchoolID, date,
	).Scan(&s.SectionsTotal, &s.SectionsTaken, &s.PresentCount, &s.AbsentCount, &s.LateCount, &s.ExcusedCount)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT st.id, CONCAT(st.first_name, ' ', st.last_name), se.id, se.name
		 FROM attendance_records ar
		 JOIN sections se ON ar.section_id = se.id
		 JOIN students st ON ar.student_id = st.id
		 WHERE se.district_id = $1 AND se.school_id = $2 AND ar.date = $3
		   AND ar.status = 'absent' AND st.deleted_at IS NULL
		 ORDER BY st.last_name, st.first_name, se.name`,
		scope.DistrictID, scope.SchoolID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a model.AbsentStudent
		if err := rows.Scan(&a.StudentID, &a.StudentName, &a.SectionID, &a.SectionName); err != nil {
			return nil, err
		}
		s.AbsentStudents = append(s.AbsentStudents, a)
	}
	return s, rows.Err()
}

// TodayCounts returns how many students were marked absent today and
// how many marks were recorded at all, school wide.
func (r *AttendanceRepository) TodayCounts(ctx context.Context, scope model.TenantScope) (absent int, recorded int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
		   COUNT(DISTINCT ar.student_id) FILTER (WHERE ar.status = 'absent'),
		   COUNT(*)
		 FROM attendance_records ar
		 JOIN sections se ON ar.section_id = se.id
		 WHERE se.district_id = $1 AND se.school_id = $2 AND ar.date = CURRENT_DATE`,
		scope.DistrictID, scope.SchoolID,
	).Scan(&absent, &recorded)
	return absent, recorded, err
}
