package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

var (
	ErrAlreadyEnrolled = errors.New("student is already enrolled in this section")
	ErrNotEnrolled     = errors.New("student is not enrolled in this section")
)

// AverageUpdate carries one recomputed course standing for the bulk
// enrollment update.
type AverageUpdate struct {
	SectionID   int
	StudentID   int
	Average     *float64
	LetterGrade *string
}

// EnrollmentRepository handles section rosters and cached averages.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Enroll places a student in a section.
func (r *EnrollmentRepository) Enroll(ctx context.Context, sectionID, studentID int) (*model.Enrollment, error) {
	e := &model.Enrollment{SectionID: sectionID, StudentID: studentID}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO enrollments (section_id, student_id) VALUES ($1, $2)
		 RETURNING id, enrolled_at`,
		sectionID, studentID,
	).Scan(&e.ID, &e.EnrolledAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}
	return e, nil
}

// Unenroll removes a student from a section.
func (r *EnrollmentRepository) Unenroll(ctx context.Context, sectionID, studentID int) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM enrollments WHERE section_id = $1 AND student_id = $2`,
		sectionID, studentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotEnrolled
	}
	return nil
}

// IsEnrolled reports whether a student belongs to a section roster.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, sectionID, studentID int) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE section_id = $1 AND student_id = $2)`,
		sectionID, studentID,
	).Scan(&ok)
	return ok, err
}

// ListBySection retrieves a section roster with cached averages,
// skipping soft deleted students.
func (r *EnrollmentRepository) ListBySection(ctx context.Context, sectionID int) ([]model.Enrollment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.section_id, e.student_id, CONCAT(s.first_name, ' ', s.last_name), s.student_number,
		        e.current_average, e.letter_grade, e.enrolled_at
		 FROM enrollments e
		 JOIN students s ON e.student_id = s.id
		 WHERE e.section_id = $1 AND s.deleted_at IS NULL
		 ORDER BY s.last_name, s.first_name`, sectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		var e model.Enrollment
		if err := rows.Scan(&e.ID, &e.SectionID, &e.StudentID, &e.StudentName, &e.StudentNumber,
			&e.CurrentAverage, &e.LetterGrade, &e.EnrolledAt); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// Get retrieves one enrollment row.
func (r *EnrollmentRepository) Get(ctx context.Context, sectionID, studentID int) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, section_id, student_id, current_average, letter_grade, enrolled_at
		 FROM enrollments WHERE section_id = $1 AND student_id = $2`,
		sectionID, studentID,
	).Scan(&e.ID, &e.SectionID, &e.StudentID, &e.CurrentAverage, &e.LetterGrade, &e.EnrolledAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListStudentIDs retrieves the student IDs enrolled in a section.
func (r *EnrollmentRepository) ListStudentIDs(ctx context.Context, sectionID int) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.student_id
		 FROM enrollments e
		 JOIN students s ON e.student_id = s.id
		 WHERE e.section_id = $1 AND s.deleted_at IS NULL
		 ORDER BY e.student_id`, sectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BulkUpdateAverages writes recomputed averages for many enrollments
// in one statement.
func (r *EnrollmentRepository) BulkUpdateAverages(ctx context.Context, updates []AverageUpdate) error {
	n := len(updates)
	if n == 0 {
		return nil
	}

	sectionIDs := make([]int, 0, n)
	studentIDs := make([]int, 0, n)
	averages := make([]*float64, 0, n)
	letters := make([]*string, 0, n)

	for _, u := range updates {
		sectionIDs = append(sectionIDs, u.SectionID)
		studentIDs = append(studentIDs, u.StudentID)
		averages = append(averages, u.Average)
		letters = append(letters, u.LetterGrade)
	}

	query := `
		UPDATE enrollments AS e
		SET current_average = t.average,
		    letter_grade = t.letter
		FROM (
			SELECT
				u.section_id,
				u.student_id,
				u.average,
				u.letter
			FROM UNNEST(
				$1::int[],
				$2::int[],
				$3::float8[],
				$4::text[]
			) AS u (section_id, student_id, average, letter)
		) AS t
		WHERE e.section_id = t.section_id
		  AND e.student_id = t.student_id
	`

	_, err := r.pool.Exec(ctx, query, sectionIDs, studentIDs, averages, letters)
	return err
}

// UpdateAverage writes one recomputed average, the fallback path when
// the bulk statement fails.
func (r *EnrollmentRepository) UpdateAverage(ctx context.Context, u AverageUpdate) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE enrollments SET current_average = $1, letter_grade = $2
		 WHERE section_id = $3 AND student_id = $4`,
		u.Average, u.LetterGrade, u.SectionID, u.StudentID,
	)
	return err
}

// ListStudentSummaries returns one row per section the student is
// enrolled in, with the cached standing and a live missing-work count.
func (r *EnrollmentRepository) ListStudentSummaries(ctx context.Context, studentID int) ([]model.StudentGradeSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.section_id, s.course_name, s.teacher_id, CONCAT(st.first_name, ' ', st.last_name) AS teacher_name,
		        s.period, e.current_average, e.letter_grade,
		        (SELECT COUNT(*)
		         FROM assignments a
		         LEFT JOIN grades g ON g.assignment_id = a.id AND g.student_id = e.student_id
		         WHERE a.section_id = e.section_id AND a.published = TRUE
		           AND a.due_date IS NOT NULL AND a.due_date < CURRENT_DATE
		           AND g.score IS NULL AND COALESCE(g.excused, FALSE) = FALSE) AS missing_count
		 FROM enrollments e
		 JOIN sections s ON s.id = e.section_id AND s.deleted_at IS NULL
		 JOIN staff st ON st.id = s.teacher_id
		 WHERE e.student_id = $1
		 ORDER BY s.period, s.course_name`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []model.StudentGradeSummary{}
	for rows.Next() {
		var sum model.StudentGradeSummary
		sum.StudentID = studentID
		if err := rows.Scan(&sum.SectionID, &sum.CourseName, &sum.TeacherID, &sum.TeacherName, &sum.Period,
			&sum.CurrentAverage, &sum.LetterGrade, &sum.MissingCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}
