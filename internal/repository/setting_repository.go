package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

type SettingRepository struct {
	pool *pgxpool.Pool
}

func NewSettingRepository(pool *pgxpool.Pool) *SettingRepository {
	return &SettingRepository{pool: pool}
}

func (r *SettingRepository) GetAll(ctx context.Context, districtID int) ([]model.Setting, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT key, value, updated_at FROM app_settings WHERE district_id = $1 ORDER BY key ASC`, districtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *SettingRepository) Upsert(ctx context.Context, districtID int, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO app_settings (district_id, key, value, updated_at) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (district_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		districtID, key, value)
	return err
}

func (r *SettingRepository) GetByKey(ctx context.Context, districtID int, key string) (*model.Setting, error) {
	s := &model.Setting{}
	err := r.pool.QueryRow(ctx,
		`SELECT key, value, updated_at FROM app_settings WHERE district_id = $1 AND key = $2`, districtID, key).
		Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}
