package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

var ErrDuplicateDistrictCode = errors.New("district with this code already exists")

// DistrictRepository handles district data access.
type DistrictRepository struct {
	pool *pgxpool.Pool
}

// NewDistrictRepository creates a new DistrictRepository.
func NewDistrictRepository(pool *pgxpool.Pool) *DistrictRepository {
	return &DistrictRepository{pool: pool}
}

// GetByID retrieves a district by ID.
func (r *DistrictRepository) GetByID(ctx context.Context, id int) (*model.District, error) {
	d := &model.District{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, code, created_at, updated_at FROM districts WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.Code, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetByCode retrieves a district by its unique code.
func (r *DistrictRepository) GetByCode(ctx context.Context, code string) (*model.District, error) {
	d := &model.District{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, code, created_at, updated_at FROM districts WHERE code = $1`, code,
	).Scan(&d.ID, &d.Name, &d.Code, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Create inserts a new district.
func (r *DistrictRepository) Create(ctx context.Context, d *model.District) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO districts (name, code) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		d.Name, d.Code,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateDistrictCode
		}
		return err
	}
	return nil
}
