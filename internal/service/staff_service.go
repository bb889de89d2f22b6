package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// StaffService manages staff accounts for district administrators.
type StaffService struct {
	staffRepo   *repository.StaffRepository
	roleRepo    *repository.RoleRepository
	schoolRepo  *repository.SchoolRepository
	authService *AuthService
	log         zerolog.Logger
}

func NewStaffService(staffRepo *repository.StaffRepository, roleRepo *repository.RoleRepository, schoolRepo *repository.SchoolRepository, authService *AuthService, log zerolog.Logger) *StaffService {
	return &StaffService{
		staffRepo:   staffRepo,
		roleRepo:    roleRepo,
		schoolRepo:  schoolRepo,
		authService: authService,
		log:         log.With().Str("component", "staff_service").Logger(),
	}
}

func (s *StaffService) GetByID(ctx context.Context, districtID, id int) (*model.Staff, error) {
	return s.staffRepo.GetByID(ctx, districtID, id)
}

func (s *StaffService) GetByEmail(ctx context.Context, email string) (*model.Staff, error) {
	return s.staffRepo.GetByEmail(ctx, email)
}

// GetPermissions resolves the permission codes embedded in staff tokens.
func (s *StaffService) GetPermissions(ctx context.Context, roleID int) ([]string, error) {
	return s.roleRepo.GetPermissionsByRoleID(ctx, roleID)
}

func (s *StaffService) List(ctx context.Context, scope model.TenantScope, roleID *int, limit, offset int) ([]model.Staff, int, error) {
	return s.staffRepo.ListPaginated(ctx, scope, roleID, limit, offset)
}

func (s *StaffService) Create(ctx context.Context, scope model.TenantScope, req *model.CreateStaffRequest) (*model.Staff, error) {
	// Role and target school must both belong to the caller's district.
	if _, err := s.roleRepo.GetByID(ctx, scope.DistrictID, req.RoleID); err != nil {
		return nil, err
	}
	if _, err := s.schoolRepo.GetByID(ctx, scope.DistrictID, req.SchoolID); err != nil {
		return nil, err
	}

	hash, err := s.authService.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	staff := &model.Staff{
		DistrictID:   scope.DistrictID,
		SchoolID:     req.SchoolID,
		RoleID:       req.RoleID,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Title:        req.Title,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.staffRepo.Create(ctx, staff); err != nil {
		return nil, err
	}
	return s.staffRepo.GetByID(ctx, scope.DistrictID, staff.ID)
}

func (s *StaffService) Update(ctx context.Context, scope model.TenantScope, id int, req *model.UpdateStaffRequest) (*model.Staff, error) {
	staff, err := s.staffRepo.GetByID(ctx, scope.DistrictID, id)
	if err != nil {
		return nil, err
	}
	if req.RoleID != staff.RoleID {
		if _, err := s.roleRepo.GetByID(ctx, scope.DistrictID, req.RoleID); err != nil {
			return nil, err
		}
	}

	staff.RoleID = req.RoleID
	staff.FirstName = req.FirstName
	staff.LastName = req.LastName
	staff.Title = req.Title
	staff.IsActive = *req.IsActive
	if err := s.staffRepo.Update(ctx, staff); err != nil {
		return nil, err
	}
	return s.staffRepo.GetByID(ctx, scope.DistrictID, id)
}

// ResetPassword sets a new password, admin initiated.
func (s *StaffService) ResetPassword(ctx context.Context, scope model.TenantScope, id int, password string) error {
	if _, err := s.staffRepo.GetByID(ctx, scope.DistrictID, id); err != nil {
		return err
	}
	hash, err := s.authService.HashPassword(password)
	if err != nil {
		return err
	}
	return s.staffRepo.UpdatePassword(ctx, id, hash)
}

func (s *StaffService) Delete(ctx context.Context, districtID, id int) error {
	return s.staffRepo.Delete(ctx, districtID, id)
}

// TouchLastLogin records a successful login. Failures only log; the
// timestamp is informational.
func (s *StaffService) TouchLastLogin(ctx context.Context, id int) {
	if err := s.staffRepo.TouchLastLogin(ctx, id); err != nil {
		s.log.Warn().Err(err).Int("staff_id", id).Msg("Failed to record staff login time")
	}
}
