package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

var (
	ErrDuplicateCategoryName = errors.New("grade category with this name already exists in the section")
	ErrCategoryInUse         = errors.New("grade category still has assignments")
)

// SectionRepository handles sections and their grade categories.
type SectionRepository struct {
	pool *pgxpool.Pool
}

// NewSectionRepository creates a new SectionRepository.
func NewSectionRepository(pool *pgxpool.Pool) *SectionRepository {
	return &SectionRepository{pool: pool}
}

// GetByID retrieves a section by ID within a school.
func (r *SectionRepository) GetByID(ctx context.Context, scope model.TenantScope, id int) (*model.Section, error) {
	s := &model.Section{}
	err := r.pool.QueryRow(ctx,
		`SELECT se.id, se.district_id, se.school_id, se.teacher_id, CONCAT(st.first_name, ' ', st.last_name),
		        se.course_name, se.period, se.term, se.room_number, se.deleted_at, se.created_at, se.updated_at
		 FROM sections se
		 JOIN staff st ON se.teacher_id = st.id
		 WHERE se.district_id = $1 AND se.school_id = $2 AND se.id = $3 AND se.deleted_at IS NULL`,
		scope.DistrictID, scope.SchoolID, id,
	).Scan(&s.ID, &s.DistrictID, &s.SchoolID, &s.TeacherID, &s.TeacherName,
		&s.CourseName, &s.Period, &s.Term, &s.RoomNumber, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListPaginated retrieves sections for a school with optional teacher
// and term filters.
func (r *SectionRepository) ListPaginated(ctx context.Context, scope model.TenantScope, teacherID *int, term string, limit, offset int) ([]model.Section, int, error) {
	where := ` WHERE se.district_id = $1 AND se.school_id = $2 AND se.deleted_at IS NULL`
	args := []any{scope.DistrictID, scope.SchoolID}

	if teacherID != nil {
		args = append(args, *teacherID)
		where += ` AND se.teacher_id = $` + strconv.Itoa(len(args))
	}
	if term != "" {
		args = append(args, term)
		where += ` AND se.term = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sections se`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT se.id, se.district_id, se.school_id, se.teacher_id, CONCAT(st.first_name, ' ', st.last_name),
	                 se.course_name, se.period, se.term, se.room_number,
	                 (SELECT COUNT(*) FROM enrollments e WHERE e.section_id = se.id),
	                 se.created_at, se.updated_at
	          FROM sections se
	          JOIN staff st ON se.teacher_id = st.id` + where +
		` ORDER BY se.course_name, se.period LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.DistrictID, &s.SchoolID, &s.TeacherID, &s.TeacherName,
			&s.CourseName, &s.Period, &s.Term, &s.RoomNumber, &s.Enrolled, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		sections = append(sections, s)
	}
	return sections, total, rows.Err()
}

// Create inserts a new section.
func (r *SectionRepository) Create(ctx context.Context, s *model.Section) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO sections (district_id, school_id, teacher_id, course_name, period, term, room_number)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		s.DistrictID, s.SchoolID, s.TeacherID, s.CourseName, s.Period, s.Term, s.RoomNumber,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Update modifies a section's teacher and descriptive fields.
func (r *SectionRepository) Update(ctx context.Context, s *model.Section) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sections
		 SET teacher_id = $1, course_name = $2, period = $3, term = $4, room_number = $5, updated_at = CURRENT_TIMESTAMP
		 WHERE district_id = $6 AND school_id = $7 AND id = $8`,
		s.TeacherID, s.CourseName, s.Period, s.Term, s.RoomNumber, s.DistrictID, s.SchoolID, s.ID,
	)
	return err
}

// SoftDelete hides a section from listings without dropping its
// gradebook history.
func (r *SectionRepository) SoftDelete(ctx context.Context, scope model.TenantScope, id int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sections SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE district_id = $1 AND school_id = $2 AND id = $3 AND deleted_at IS NULL`,
		scope.DistrictID, scope.SchoolID, id,
	)
	return err
}

// IsTaughtBy reports whether the staff member teaches the section.
func (r *SectionRepository) IsTaughtBy(ctx context.Context, sectionID, staffID int) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sections WHERE id = $1 AND teacher_id = $2 AND deleted_at IS NULL)`,
		sectionID, staffID,
	).Scan(&ok)
	return ok, err
}

// ListCategories retrieves a section's grade categories ordered by name.
func (r *SectionRepository) ListCategories(ctx context.Context, sectionID int) ([]model.GradeCategory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, section_id, name, weight, created_at
		 FROM grade_categories WHERE section_id = $1 ORDER BY name`, sectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []model.GradeCategory
	for rows.Next() {
		var c model.GradeCategory
		if err := rows.Scan(&c.ID, &c.SectionID, &c.Name, &c.Weight, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetCategory retrieves one grade category by ID.
func (r *SectionRepository) GetCategory(ctx context.Context, sectionID, categoryID int) (*model.GradeCategory, error) {
	c := &model.GradeCategory{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, section_id, name, weight, created_at
		 FROM grade_categories WHERE section_id = $1 AND id = $2`, sectionID, categoryID,
	).Scan(&c.ID, &c.SectionID, &c.Name, &c.Weight, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCategory inserts a grade category for a section.
func (r *SectionRepository) CreateCategory(ctx context.Context, c *model.GradeCategory) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO grade_categories (section_id, name, weight) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.SectionID, c.Name, c.Weight,
	).Scan(&c.ID, &c.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCategoryName
		}
		return err
	}
	return nil
}

// UpdateCategory renames or reweights a grade category.
func (r *SectionRepository) UpdateCategory(ctx context.Context, c *model.GradeCategory) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE grade_categories SET name = $1, weight = $2 WHERE section_id = $3 AND id = $4`,
		c.Name, c.Weight, c.SectionID, c.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateCategoryName
		}
		return err
	}
	return nil
}

// DeleteCategory removes a grade category. Fails while assignments
// still reference it.
func (r *SectionRepository) DeleteCategory(ctx context.Context, sectionID, categoryID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM grade_categories WHERE section_id = $1 AND id = $2`, sectionID, categoryID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrCategoryInUse
		}
		return err
	}
	return nil
}
