package service

import (
	"context"

	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// RoleService handles business logic for district RBAC roles.
type RoleService struct {
	roleRepo *repository.RoleRepository
}

func NewRoleService(roleRepo *repository.RoleRepository) *RoleService {
	return &RoleService{roleRepo: roleRepo}
}

// ListRoles retrieves the district's roles with their permissions.
func (s *RoleService) ListRoles(ctx context.Context, districtID int) ([]model.Role, error) {
	return s.roleRepo.ListByDistrict(ctx, districtID)
}

func (s *RoleService) GetRole(ctx context.Context, districtID, id int) (*model.Role, error) {
	return s.roleRepo.GetByID(ctx, districtID, id)
}

// CreateRole creates a role and assigns its permissions. If the
// assignment fails the half-created role is removed.
func (s *RoleService) CreateRole(ctx context.Context, districtID int, req *model.CreateRoleRequest) (*model.Role, error) {
	id, err := s.roleRepo.Create(ctx, districtID, req.Name)
	if err != nil {
		return nil, err
	}

	if err := s.roleRepo.AssignPermissions(ctx, id, req.Permissions); err != nil {
		_ = s.roleRepo.Delete(ctx, districtID, id)
		return nil, err
	}
	return s.roleRepo.GetByID(ctx, districtID, id)
}

// UpdateRole replaces the role's name and permission set.
func (s *RoleService) UpdateRole(ctx context.Context, districtID, id int, req *model.UpdateRoleRequest) (*model.Role, error) {
	if err := s.roleRepo.Update(ctx, districtID, id, req.Name); err != nil {
		return nil, err
	}
	if err := s.roleRepo.ClearPermissions(ctx, id); err != nil {
		return nil, err
	}
	if err := s.roleRepo.AssignPermissions(ctx, id, req.Permissions); err != nil {
		return nil, err
	}
	return s.roleRepo.GetByID(ctx, districtID, id)
}

// DeleteRole removes an unused role. Fails while staff still hold it.
func (s *RoleService) DeleteRole(ctx context.Context, districtID, id int) error {
	return s.roleRepo.Delete(ctx, districtID, id)
}
