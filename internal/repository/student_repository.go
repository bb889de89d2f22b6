package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

var ErrDuplicateStudentNumber = errors.New("student with this student number already exists")

// StudentRepository handles student data access. Every read skips soft
// deleted rows unless the method says otherwise.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `id, district_id, school_id, student_number, first_name, last_name,
	grade_level, date_of_birth, has_iep, has_504, deleted_at, created_at, updated_at`

func scanStudent(row interface{ Scan(dest ...any) error }, s *model.Student) error {
	return row.Scan(&s.ID, &s.DistrictID, &s.SchoolID, &s.StudentNumber, &s.FirstName, &s.LastName,
		&s.GradeLevel, &s.DateOfBirth, &s.HasIEP, &s.Has504, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a student by ID within a school.
func (r *StudentRepository) GetByID(ctx context.Context, scope model.TenantScope, id int) (*model.Student, error) {
	s := &model.Student{}
	err := scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students
		 WHERE district_id = $1 AND school_id = $2 AND id = $3 AND deleted_at IS NULL`,
		scope.DistrictID, scope.SchoolID, id,
	), s)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByIDInDistrict retrieves a student under district scope only.
// Guardian portal flows carry no school claim to match against.
func (r *StudentRepository) GetByIDInDistrict(ctx context.Context, districtID, id int) (*model.Student, error) {
	s := &model.Student{}
	err := scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students
		 WHERE district_id = $1 AND id = $2 AND deleted_at IS NULL`,
		districtID, id,
	), s)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByNumber retrieves a student by district-unique student number,
// including soft deleted rows so imports can revive them.
func (r *StudentRepository) GetByNumber(ctx context.Context, districtID int, studentNumber string) (*model.Student, error) {
	s := &model.Student{}
	err := scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students
		 WHERE district_id = $1 AND student_number = $2`,
		districtID, studentNumber,
	), s)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListPaginated retrieves students for a school with pagination, an
// optional grade level filter, and an optional name/number search.
func (r *StudentRepository) ListPaginated(ctx context.Context, scope model.TenantScope, gradeLevel *int, search string, limit, offset int) ([]model.Student, int, error) {
	where := ` WHERE district_id = $1 AND school_id = $2 AND deleted_at IS NULL`
	args := []any{scope.DistrictID, scope.SchoolID}

	if gradeLevel != nil {
		args = append(args, *gradeLevel)
		where += ` AND grade_level = $` + strconv.Itoa(len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		idx := strconv.Itoa(len(args))
		where += ` AND (first_name ILIKE $` + idx + ` OR last_name ILIKE $` + idx + ` OR student_number ILIKE $` + idx + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + studentColumns + ` FROM students` + where +
		` ORDER BY last_name, first_name LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var s model.Student
		if err := scanStudent(rows, &s); err != nil {
			return nil, 0, err
		}
		students = append(students, s)
	}
	return students, total, rows.Err()
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (district_id, school_id, student_number, first_name, last_name, grade_level, date_of_birth, has_iep, has_504)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		s.DistrictID, s.SchoolID, s.StudentNumber, s.FirstName, s.LastName, s.GradeLevel, s.DateOfBirth, s.HasIEP, s.Has504,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateStudentNumber
		}
		return err
	}
	return nil
}

// Update modifies a student's profile fields.
func (r *StudentRepository) Update(ctx context.Context, s *model.Student) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE students
		 SET first_name = $1, last_name = $2, grade_level = $3, date_of_birth = $4,
		     has_iep = $5, has_504 = $6, updated_at = CURRENT_TIMESTAMP
		 WHERE district_id = $7 AND id = $8`,
		s.FirstName, s.LastName, s.GradeLevel, s.DateOfBirth, s.HasIEP, s.Has504, s.DistrictID, s.ID,
	)
	return err
}

// UpsertByNumber inserts a student or refreshes the existing row that
// shares the student number. A revived row loses its deleted_at mark.
// Returns true when the row was newly created.
func (r *StudentRepository) UpsertByNumber(ctx context.Context, s *model.Student) (bool, error) {
	var created bool
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (district_id, school_id, student_number, first_name, last_name, grade_level, date_of_birth, has_iep, has_504)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (district_id, student_number) DO UPDATE
		 SET school_id = EXCLUDED.school_id,
		     first_name = EXCLUDED.first_name,
		     last_name = EXCLUDED.last_name,
		     grade_level = EXCLUDED.grade_level,
		     date_of_birth = COALESCE(EXCLUDED.date_of_birth, students.date_of_birth),
		     deleted_at = NULL,
		     updated_at = CURRENT_TIMESTAMP
		 RETURNING id, (created_at = updated_at)`,
		s.DistrictID, s.SchoolID, s.StudentNumber, s.FirstName, s.LastName, s.GradeLevel, s.DateOfBirth, s.HasIEP, s.Has504,
	).Scan(&s.ID, &created)
	return created, err
}

// SoftDelete hides a student from listings while keeping their grade
// and attendance history intact.
func (r *StudentRepository) SoftDelete(ctx context.Context, scope model.TenantScope, id int) (time.Time, error) {
	var deletedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE students SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE district_id = $1 AND school_id = $2 AND id = $3 AND deleted_at IS NULL
		 RETURNING deleted_at`,
		scope.DistrictID, scope.SchoolID, id,
	).Scan(&deletedAt)
	return deletedAt, err
}

// Restore clears the soft delete mark on a student. Returns
// pgx.ErrNoRows when no deleted student matches.
func (r *StudentRepository) Restore(ctx context.Context, scope model.TenantScope, id int) (*model.Student, error) {
	s := &model.Student{}
	err := scanStudent(r.pool.QueryRow(ctx,
		`UPDATE students SET deleted_at = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE district_id = $1 AND school_id = $2 AND id = $3 AND deleted_at IS NOT NULL
		 RETURNING `+studentColumns,
		scope.DistrictID, scope.SchoolID, id,
	), s)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CountBySchool counts active students in a school.
func (r *StudentRepository) CountBySchool(ctx context.Context, scope model.TenantScope) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM students WHERE district_id = $1 AND school_id = $2 AND deleted_at IS NULL`,
		scope.DistrictID, scope.SchoolID,
	).Scan(&total)
	return total, err
}
