package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/notify"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// ErrGuardianAlreadyActivated guards re-invites of live accounts.
var ErrGuardianAlreadyActivated = errors.New("guardian account is already activated")

// GuardianService manages guardian accounts, student links, and the
// invite/activation flow. It also answers the portal's "is this your
// child" authorization question.
type GuardianService struct {
	guardianRepo *repository.GuardianRepository
	studentRepo  *repository.StudentRepository
	authService  *AuthService
	dispatcher   *notify.Dispatcher
	cfg          *config.Config
	log          zerolog.Logger
}

func NewGuardianService(
	guardianRepo *repository.GuardianRepository,
	studentRepo *repository.StudentRepository,
	authService *AuthService,
	dispatcher *notify.Dispatcher,
	cfg *config.Config,
	log zerolog.Logger,
) *GuardianService {
	return &GuardianService{
		guardianRepo: guardianRepo,
		studentRepo:  studentRepo,
		authService:  authService,
		dispatcher:   dispatcher,
		cfg:          cfg,
		log:          log.With().Str("component", "guardian_service").Logger(),
	}
}

func (s *GuardianService) Get(ctx context.Context, scope model.TenantScope, id int) (*model.Guardian, error) {
	return s.guardianRepo.GetByID(ctx, scope.DistrictID, id)
}

func (s *GuardianService) GetByEmail(ctx context.Context, email string) (*model.Guardian, error) {
	return s.guardianRepo.GetByEmail(ctx, email)
}

// TouchLastLogin records a successful login. Failures only log; the
// timestamp is informational.
func (s *GuardianService) TouchLastLogin(ctx context.Context, id int) {
	if err := s.guardianRepo.TouchLastLogin(ctx, id); err != nil {
		s.log.Warn().Err(err).Int("guardian_id", id).Msg("Failed to record guardian login time")
	}
}

func (s *GuardianService) List(ctx context.Context, scope model.TenantScope, search string, limit, offset int) ([]model.Guardian, int, error) {
	return s.guardianRepo.ListPaginated(ctx, scope.DistrictID, search, limit, offset)
}

// Create registers an unactivated guardian account and issues an
// invite token. The token is returned to the caller and, when an email
// provider is configured, also mailed to the guardian.
func (s *GuardianService) Create(ctx context.Context, scope model.TenantScope, req *model.CreateGuardianRequest) (*model.Guardian, string, error) {
	guardian := &model.Guardian{
		DistrictID: scope.DistrictID,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		// Until activation the preferences are placeholders; email on
		// is the sensible default once the account goes live.
		NotifyEmail: true,
	}
	if err := s.guardianRepo.Create(ctx, guardian); err != nil {
		return nil, "", err
	}

	token, err := s.issueInvite(ctx, guardian)
	if err != nil {
		return nil, "", err
	}
	return guardian, token, nil
}

// Reinvite issues a fresh activation token for a guardian who lost or
// expired the original invite.
func (s *GuardianService) Reinvite(ctx context.Context, scope model.TenantScope, guardianID int) (string, error) {
	guardian, err := s.guardianRepo.GetByID(ctx, scope.DistrictID, guardianID)
	if err != nil {
		return "", err
	}
	if guardian.IsActivated {
		return "", ErrGuardianAlreadyActivated
	}
	return s.issueInvite(ctx, guardian)
}

func (s *GuardianService) issueInvite(ctx context.Context, guardian *model.Guardian) (string, error) {
	token, err := s.authService.CreateGuardianInvite(ctx, guardian.ID, guardian.DistrictID)
	if err != nil {
		return "", fmt.Errorf("create invite: %w", err)
	}

	// Best effort. The token is returned to the staff caller either
	// way, so a mail outage never blocks onboarding.
	invite := &model.Notification{
		ID:      uuid.New(),
		Channel: model.ChannelEmail,
		Subject: "Your SkillCore family portal invitation",
		Body: fmt.Sprintf(
			"Hello %s,\n\nAn account has been created for you on the SkillCore family portal. "+
				"Use this code to activate it within %s:\n\n%s\n\nIf you were not expecting this, ignore this message.",
			guardian.FirstName, s.cfg.GuardianInviteTTL, token),
	}
	if err := s.dispatcher.Dispatch(ctx, invite, notify.GuardianRecipient(guardian)); err != nil {
		s.log.Warn().Err(err).Int("guardian_id", guardian.ID).Msg("Invite email failed")
	}

	return token, nil
}

// Activate consumes an invite token, sets the password, and flips the
// account live. Tokens are single use.
func (s *GuardianService) Activate(ctx context.Context, req *model.GuardianActivateRequest) (*model.Guardian, error) {
	invite, err := s.authService.ConsumeGuardianInvite(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	hash, err := s.authService.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	if err := s.guardianRepo.Activate(ctx, invite.GuardianID, hash); err != nil {
		return nil, err
	}
	return s.guardianRepo.GetByID(ctx, invite.DistrictID, invite.GuardianID)
}

// UpdatePrefs lets an activated guardian choose delivery channels.
func (s *GuardianService) UpdatePrefs(ctx context.Context, districtID, guardianID int, req *model.UpdateGuardianPrefsRequest) (*model.Guardian, error) {
	guardian, err := s.guardianRepo.GetByID(ctx, districtID, guardianID)
	if err != nil {
		return nil, err
	}

	guardian.NotifyEmail = *req.NotifyEmail
	guardian.NotifySMS = *req.NotifySMS
	guardian.NotifyPush = *req.NotifyPush
	if req.Phone != "" {
		guardian.Phone = req.Phone
	}
	if req.PushToken != "" {
		guardian.PushToken = req.PushToken
	}

	if err := s.guardianRepo.UpdatePrefs(ctx, guardian); err != nil {
		return nil, err
	}
	return guardian, nil
}

// ─────────────────────────── Links ───────────────────────────

// Link ties a guardian to a student in the same district.
func (s *GuardianService) Link(ctx context.Context, scope model.TenantScope, guardianID int, req *model.LinkGuardianRequest) error {
	if _, err := s.guardianRepo.GetByID(ctx, scope.DistrictID, guardianID); err != nil {
		return err
	}
	if _, err := s.studentRepo.GetByID(ctx, scope, req.StudentID); err != nil {
		return err
	}
	return s.guardianRepo.LinkStudent(ctx, guardianID, req.StudentID, req.Relationship)
}

func (s *GuardianService) Unlink(ctx context.Context, scope model.TenantScope, guardianID, studentID int) error {
	if _, err := s.guardianRepo.GetByID(ctx, scope.DistrictID, guardianID); err != nil {
		return err
	}
	return s.guardianRepo.UnlinkStudent(ctx, guardianID, studentID)
}

// ListByStudent returns the guardians linked to a student, staff side.
func (s *GuardianService) ListByStudent(ctx context.Context, scope model.TenantScope, studentID int) ([]model.Guardian, error) {
	if _, err := s.studentRepo.GetByID(ctx, scope, studentID); err != nil {
		return nil, err
	}
	return s.guardianRepo.ListByStudent(ctx, studentID)
}

// ─────────────────────────── Portal ───────────────────────────

// ListChildren returns the guardian's linked, active students.
func (s *GuardianService) ListChildren(ctx context.Context, guardianID int) ([]model.Student, error) {
	return s.guardianRepo.ListChildren(ctx, guardianID)
}

// AuthorizeChild verifies a portal request targets a linked student.
// Every child-scoped portal read goes through this check.
func (s *GuardianService) AuthorizeChild(ctx context.Context, guardianID, studentID int) error {
	linked, err := s.guardianRepo.IsLinked(ctx, guardianID, studentID)
	if err != nil {
		return err
	}
	if !linked {
		return ErrGuardianNotLinked
	}
	return nil
}
