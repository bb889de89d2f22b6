package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

var ErrDuplicateSchoolCode = errors.New("school with this code already exists in the district")

// SchoolRepository handles school data access.
type SchoolRepository struct {
	pool *pgxpool.Pool
}

// NewSchoolRepository creates a new SchoolRepository.
func NewSchoolRepository(pool *pgxpool.Pool) *SchoolRepository {
	return &SchoolRepository{pool: pool}
}

// GetByID retrieves a school by ID within a district.
func (r *SchoolRepository) GetByID(ctx context.Context, districtID, id int) (*model.School, error) {
	s := &model.School{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, district_id, name, code, timezone, created_at, updated_at
		 FROM schools WHERE district_id = $1 AND id = $2`, districtID, id,
	).Scan(&s.ID, &s.DistrictID, &s.Name, &s.Code, &s.Timezone, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByDistrict retrieves all schools in a district.
func (r *SchoolRepository) ListByDistrict(ctx context.Context, districtID int) ([]model.School, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, district_id, name, code, timezone, created_at, updated_at
		 FROM schools WHERE district_id = $1 ORDER BY name`, districtID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schools []model.School
	for rows.Next() {
		var s model.School
		if err := rows.Scan(&s.ID, &s.DistrictID, &s.Name, &s.Code, &s.Timezone, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		schools = append(schools, s)
	}
	return schools, rows.Err()
}

// Create inserts a new school.
func (r *SchoolRepository) Create(ctx context.Context, s *model.School) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO schools (district_id, name, code, timezone)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		s.DistrictID, s.Name, s.Code, s.Timezone,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSchoolCode
		}
		return err
	}
	return nil
}

// Update modifies a school's name and timezone.
func (r *SchoolRepository) Update(ctx context.Context, s *model.School) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE schools SET name = $1, timezone = $2, updated_at = CURRENT_TIMESTAMP
		 WHERE district_id = $3 AND id = $4`,
		s.Name, s.Timezone, s.DistrictID, s.ID,
	)
	return err
}
