package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// RecalcRow is one contributing grade candidate for an average
// recomputation: the category weight plus the raw grade fields.
type RecalcRow struct {
	StudentID  int
	CategoryID int
	Weight     float64
	MaxPoints  float64
	Score      *float64
	Excused    bool
}

// StudentAssignmentGrade is the guardian-facing per-assignment view of
// one student's work in a section.
type StudentAssignmentGrade struct {
	AssignmentID uuid.UUID  `json:"assignment_id"`
	Title        string     `json:"title"`
	CategoryName string     `json:"category_name"`
	MaxPoints    float64    `json:"max_points"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	Score        *float64   `json:"score"`
	Excused      bool       `json:"excused"`
	Late         bool       `json:"late"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
}

// GradeRepository handles grade data access.
type GradeRepository struct {
	pool *pgxpool.Pool
}

// NewGradeRepository creates a new GradeRepository.
func NewGradeRepository(pool *pgxpool.Pool) *GradeRepository {
	return &GradeRepository{pool: pool}
}

// Upsert inserts or overwrites one student's grade on an assignment.
func (r *GradeRepository) Upsert(ctx context.Context, g *model.Grade) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO grades (assignment_id, student_id, score, excused, late, graded_by, graded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		 ON CONFLICT (assignment_id, student_id) DO UPDATE
		 SET score = EXCLUDED.score,
		     excused = EXCLUDED.excused,
		     late = EXCLUDED.late,
		     graded_by = EXCLUDED.graded_by,
		     graded_at = CURRENT_TIMESTAMP,
		     updated_at = CURRENT_TIMESTAMP
		 RETURNING id, graded_at, created_at, updated_at`,
		g.AssignmentID, g.StudentID, g.Score, g.Excused, g.Late, g.GradedBy,
	).Scan(&g.ID, &g.GradedAt, &g.CreatedAt, &g.UpdatedAt)
}

// ListByAssignment retrieves all grades for one assignment with
// student names, skipping soft deleted students.
func (r *GradeRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]model.Grade, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.assignment_id, g.student_id, CONCAT(s.first_name, ' ', s.last_name),
		        g.score, g.excused, g.late, g.graded_by, g.graded_at, g.created_at, g.updated_at
		 FROM grades g
		 JOIN students s ON g.student_id = s.id
		 WHERE g.assignment_id = $1 AND s.deleted_at IS NULL
		 ORDER BY s.last_name, s.first_name`, assignmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grades []model.Grade
	for rows.Next() {
		var g model.Grade
		if err := rows.Scan(&g.ID, &g.AssignmentID, &g.StudentID, &g.StudentName,
			&g.Score, &g.Excused, &g.Late, &g.GradedBy, &g.GradedAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	return grades, rows.Err()
}

// GridCell is one grade cell in the section-wide gradebook grid.
type GridCell struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	StudentID    int       `json:"student_id"`
	Score        *float64  `json:"score"`
	Excused      bool      `json:"excused"`
	Late         bool      `json:"late"`
}

// ListCellsBySection retrieves every grade cell in a section, draft
// assignments included. The grid is teacher-facing.
func (r *GradeRepository) ListCellsBySection(ctx context.Context, sectionID int) ([]GridCell, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.assignment_id, g.student_id, g.score, g.excused, g.late
		 FROM grades g
		 JOIN assignments a ON g.assignment_id = a.id
		 WHERE a.section_id = $1`, sectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []GridCell
	for rows.Next() {
		var c GridCell
		if err := rows.Scan(&c.AssignmentID, &c.StudentID, &c.Score, &c.Excused, &c.Late); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// ListRecalcRows retrieves every grade row on published assignments of
// the section for the given students. The average calculator decides
// which rows actually contribute.
func (r *GradeRepository) ListRecalcRows(ctx context.Context, sectionID int, studentIDs []int) ([]RecalcRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.student_id, a.category_id, c.weight, a.max_points, g.score, g.excused
		 FROM grades g
		 JOIN assignments a ON g.assignment_id = a.id
		 JOIN grade_categories c ON a.category_id = c.id
		 WHERE a.section_id = $1 AND a.published AND g.student_id = ANY($2)`,
		sectionID, studentIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RecalcRow
	for rows.Next() {
		var row RecalcRow
		if err := rows.Scan(&row.StudentID, &row.CategoryID, &row.Weight, &row.MaxPoints, &row.Score, &row.Excused); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// ListForStudentSection retrieves the published assignment list of a
// section with the student's grade on each, newest due first.
func (r *GradeRepository) ListForStudentSection(ctx context.Context, sectionID, studentID int) ([]StudentAssignmentGrade, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.title, c.name, a.max_points, a.due_date,
		        g.score, COALESCE(g.excused, FALSE), COALESCE(g.late, FALSE), g.graded_at
		 FROM assignments a
		 JOIN grade_categories c ON a.category_id = c.id
		 LEFT JOIN grades g ON g.assignment_id = a.id AND g.student_id = $2
		 WHERE a.section_id = $1 AND a.published
		 ORDER BY a.due_date DESC NULLS LAST, a.created_at DESC`,
		sectionID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StudentAssignmentGrade
	for rows.Next() {
		var g StudentAssignmentGrade
		if err := rows.Scan(&g.AssignmentID, &g.Title, &g.CategoryName, &g.MaxPoints, &g.DueDate,
			&g.Score, &g.Excused, &g.Late, &g.GradedAt); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

// MissingCount counts published assignments past due with no usable
// grade for the student.
func (r *GradeRepository) MissingCount(ctx context.Context, sectionID, studentID int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM assignments a
		 WHERE a.section_id = $1 AND a.published AND a.due_date IS NOT NULL AND a.due_date < CURRENT_DATE
		   AND NOT EXISTS (
		       SELECT 1 FROM grades g
		       WHERE g.assignment_id = a.id AND g.student_id = $2 AND (g.score IS NOT NULL OR g.excused)
		   )`,
		sectionID, studentID,
	).Scan(&count)
	return count, err
}
