package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// AssignmentRepository handles assignment data access.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// GetByID retrieves an assignment by ID.
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := r.pool.QueryRow(ctx,
		`SELECT a.id, a.section_id, a.category_id, c.name, a.title, a.description,
		        a.max_points, a.due_date, a.published, a.created_at, a.updated_at
		 FROM assignments a
		 JOIN grade_categories c ON a.category_id = c.id
		 WHERE a.id = $1`, id,
	).Scan(&a.ID, &a.SectionID, &a.CategoryID, &a.CategoryName, &a.Title, &a.Description,
		&a.MaxPoints, &a.DueDate, &a.Published, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListBySection retrieves all assignments of a section, newest due first.
func (r *AssignmentRepository) ListBySection(ctx context.Context, sectionID int, publishedOnly bool) ([]model.Assignment, error) {
	query := `SELECT a.id, a.section_id, a.category_id, c.name, a.title, a.description,
	                 a.max_points, a.due_date, a.published, a.created_at, a.updated_at
	          FROM assignments a
	          JOIN grade_categories c ON a.category_id = c.id
	          WHERE a.section_id = $1`
	if publishedOnly {
		query += ` AND a.published`
	}
	query += ` ORDER BY a.due_date DESC NULLS LAST, a.created_at DESC`

	rows, err := r.pool.Query(ctx, query, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.SectionID, &a.CategoryID, &a.CategoryName, &a.Title, &a.Description,
			&a.MaxPoints, &a.DueDate, &a.Published, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assignments (section_id, category_id, title, description, max_points, due_date, published)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		a.SectionID, a.CategoryID, a.Title, a.Description, a.MaxPoints, a.DueDate, a.Published,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// Update modifies an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, a *model.Assignment) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assignments
		 SET category_id = $1, title = $2, description = $3, max_points = $4, due_date = $5, published = $6,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = $7 AND section_id = $8`,
		a.CategoryID, a.Title, a.Description, a.MaxPoints, a.DueDate, a.Published, a.ID, a.SectionID,
	)
	return err
}

// Delete removes an assignment and, through cascade, its grades.
func (r *AssignmentRepository) Delete(ctx context.Context, sectionID int, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM assignments WHERE id = $1 AND section_id = $2`, id, sectionID)
	return err
}
