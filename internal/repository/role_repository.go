package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillcore/skillcore-backend/internal/model"
)

var (
	ErrDuplicateRoleName = errors.New("role with this name already exists in the district")
	ErrRoleInUse         = errors.New("role is still assigned to staff members")
)

// RoleRepository handles role and permission data access.
type RoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// GetPermissionsByRoleID retrieves all permission codes for a given role.
func (r *RoleRepository) GetPermissionsByRoleID(ctx context.Context, roleID int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.code
		 FROM permissions p
		 JOIN role_permissions rp ON p.id = rp.permission_id
		 WHERE rp.role_id = $1
		 ORDER BY p.code`, roleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		permissions = append(permissions, code)
	}
	return permissions, rows.Err()
}

// GetByID retrieves a role and its permissions within a district.
func (r *RoleRepository) GetByID(ctx context.Context, districtID, id int) (*model.Role, error) {
	role := &model.Role{ID: id}
	err := r.pool.QueryRow(ctx,
		`SELECT district_id, name, created_at, updated_at FROM roles WHERE district_id = $1 AND id = $2`,
		districtID, id,
	).Scan(&role.DistrictID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, err
	}

	codes, err := r.GetPermissionsByRoleID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, code := range codes {
		role.Permissions = append(role.Permissions, model.Permission(code))
	}
	return role, nil
}

// ListByDistrict retrieves all roles in a district with their permissions.
func (r *RoleRepository) ListByDistrict(ctx context.Context, districtID int) ([]model.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, district_id, name, created_at, updated_at FROM roles WHERE district_id = $1 ORDER BY id`,
		districtID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []model.Role
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.DistrictID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Districts carry a handful of roles at most, so a query per role
	// stays cheaper than juggling an aggregate join here.
	for i := range roles {
		codes, err := r.GetPermissionsByRoleID(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		for _, code := range codes {
			roles[i].Permissions = append(roles[i].Permissions, model.Permission(code))
		}
	}
	return roles, nil
}

// Create inserts a new role and returns its ID.
func (r *RoleRepository) Create(ctx context.Context, districtID int, name string) (int, error) {
	var id int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (district_id, name) VALUES ($1, $2) RETURNING id`,
		districtID, name,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateRoleName
		}
		return 0, err
	}
	return id, nil
}

// Update renames an existing role.
func (r *RoleRepository) Update(ctx context.Context, districtID, id int, name string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE roles SET name = $1, updated_at = CURRENT_TIMESTAMP WHERE district_id = $2 AND id = $3`,
		name, districtID, id,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateRoleName
		}
		return err
	}
	return nil
}

// Delete removes a role. Fails while staff accounts still use it.
func (r *RoleRepository) Delete(ctx context.Context, districtID, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE district_id = $1 AND id = $2`, districtID, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrRoleInUse
		}
		return err
	}
	return nil
}

// ClearPermissions removes all permissions associated with a role.
func (r *RoleRepository) ClearPermissions(ctx context.Context, roleID int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID)
	return err
}

// AssignPermissions assigns a list of permission codes to a role.
// Unknown codes are silently skipped.
func (r *RoleRepository) AssignPermissions(ctx context.Context, roleID int, permissionCodes []string) error {
	if len(permissionCodes) == 0 {
		return nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id FROM permissions WHERE code = ANY($1)`, permissionCodes)
	if err != nil {
		return err
	}
	defer rows.Close()

	var permissionIDs []int
	for rows.Next() {
		var pid int
		if err := rows.Scan(&pid); err != nil {
			return err
		}
		permissionIDs = append(permissionIDs, pid)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(permissionIDs) == 0 {
		return nil
	}

	_, err = r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"role_permissions"},
		[]string{"role_id", "permission_id"},
		pgx.CopyFromSlice(len(permissionIDs), func(i int) ([]any, error) {
			return []any{roleID, permissionIDs[i]}, nil
		}),
	)
	return err
}
