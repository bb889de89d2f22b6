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
	ErrDuplicateStaffEmail = errors.New("staff with this email already exists")
	ErrStaffHasSections    = errors.New("staff member still teaches sections")
)

// StaffRepository handles staff account data access.
type StaffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository creates a new StaffRepository.
func NewStaffRepository(pool *pgxpool.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

// GetByID retrieves a staff member by ID within a district.
func (r *StaffRepository) GetByID(ctx context.Context, districtID, id int) (*model.Staff, error) {
	s := &model.Staff{}
	err := r.pool.QueryRow(ctx,
		`SELECT st.id, st.district_id, st.school_id, st.role_id, ro.name, st.email, st.password_hash,
		        st.first_name, st.last_name, st.title, st.is_active, st.last_login_at, st.created_at, st.updated_at
		 FROM staff st
		 JOIN roles ro ON st.role_id = ro.id
		 WHERE st.district_id = $1 AND st.id = $2`, districtID, id,
	).Scan(&s.ID, &s.DistrictID, &s.SchoolID, &s.RoleID, &s.RoleName, &s.Email, &s.PasswordHash,
		&s.FirstName, &s.LastName, &s.Title, &s.IsActive, &s.LastLoginAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByEmail retrieves a staff member by their unique email address.
func (r *StaffRepository) GetByEmail(ctx context.Context, email string) (*model.Staff, error) {
	s := &model.Staff{}
	err := r.pool.QueryRow(ctx,
		`SELECT st.id, st.district_id, st.school_id, st.role_id, ro.name, st.email, st.password_hash,
		        st.first_name, st.last_name, st.title, st.is_active, st.last_login_at, st.created_at, st.updated_at
		 FROM staff st
		 JOIN roles ro ON st.role_id = ro.id
		 WHERE st.email = $1`, email,
	).Scan(&s.ID, &s.DistrictID, &s.SchoolID, &s.RoleID, &s.RoleName, &s.Email, &s.PasswordHash,
		&s.FirstName, &s.LastName, &s.Title, &s.IsActive, &s.LastLoginAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListPaginated retrieves staff for a school with pagination and optional role filter.
func (r *StaffRepository) ListPaginated(ctx context.Context, scope model.TenantScope, roleID *int, limit, offset int) ([]model.Staff, int, error) {
	countQuery := `SELECT COUNT(*) FROM staff WHERE district_id = $1 AND school_id = $2`
	countArgs := []any{scope.DistrictID, scope.SchoolID}
	if roleID != nil {
		countQuery += ` AND role_id = $3`
		countArgs = append(countArgs, *roleID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT st.id, st.district_id, st.school_id, st.role_id, ro.name, st.email,
	                 st.first_name, st.last_name, st.title, st.is_active, st.last_login_at, st.created_at, st.updated_at
	          FROM staff st
	          JOIN roles ro ON st.role_id = ro.id
	          WHERE st.district_id = $1 AND st.school_id = $2`
	args := []any{scope.DistrictID, scope.SchoolID}
	argIdx := 3

	if roleID != nil {
		query += ` AND st.role_id = $3`
		args = append(args, *roleID)
		argIdx++
	}

	query += ` ORDER BY st.last_name, st.first_name LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var members []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.DistrictID, &s.SchoolID, &s.RoleID, &s.RoleName, &s.Email,
			&s.FirstName, &s.LastName, &s.Title, &s.IsActive, &s.LastLoginAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		members = append(members, s)
	}
	return members, total, rows.Err()
}

// ListWithPermission retrieves a school's active staff whose role
// carries the permission code. The notification fan-out uses it to
// find the counselors for intervention plan activity.
func (r *StaffRepository) ListWithPermission(ctx context.Context, scope model.TenantScope, code string) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT st.id, st.district_id, st.school_id, st.role_id, ro.name, st.email,
		        st.first_name, st.last_name, st.title, st.is_active, st.last_login_at, st.created_at, st.updated_at
		 FROM staff st
		 JOIN roles ro ON st.role_id = ro.id
		 JOIN role_permissions rp ON rp.role_id = ro.id
		 JOIN permissions p ON p.id = rp.permission_id
		 WHERE st.district_id = $1 AND st.school_id = $2 AND st.is_active AND p.code = $3
		 ORDER BY st.id`,
		scope.DistrictID, scope.SchoolID, code,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.DistrictID, &s.SchoolID, &s.RoleID, &s.RoleName, &s.Email,
			&s.FirstName, &s.LastName, &s.Title, &s.IsActive, &s.LastLoginAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, s)
	}
	return members, rows.Err()
}

// Create inserts a new staff member.
func (r *StaffRepository) Create(ctx context.Context, s *model.Staff) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO staff (district_id, school_id, role_id, email, password_hash, first_name, last_name, title)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, is_active, created_at, updated_at`,
		s.DistrictID, s.SchoolID, s.RoleID, s.Email, s.PasswordHash, s.FirstName, s.LastName, s.Title,
	).Scan(&s.ID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateStaffEmail
		}
		return err
	}
	return nil
}

// Update modifies a staff member's role and profile (excluding password).
func (r *StaffRepository) Update(ctx context.Context, s *model.Staff) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE staff SET role_id = $1, first_name = $2, last_name = $3, title = $4, is_active = $5, updated_at = CURRENT_TIMESTAMP
		 WHERE district_id = $6 AND id = $7`,
		s.RoleID, s.FirstName, s.LastName, s.Title, s.IsActive, s.DistrictID, s.ID,
	)
	return err
}

// UpdatePassword updates a staff member's password hash.
func (r *StaffRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE staff SET password_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		passwordHash, id,
	)
	return err
}

// TouchLastLogin stamps a successful login.
func (r *StaffRepository) TouchLastLogin(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE staff SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1`, id,
	)
	return err
}

// Delete removes a staff member. Fails while sections still reference them.
func (r *StaffRepository) Delete(ctx context.Context, districtID, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM staff WHERE district_id = $1 AND id = $2`, districtID, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrStaffHasSections
		}
		return err
	}
	return nil
}
