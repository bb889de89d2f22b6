package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// ErrPlanResolved rejects writes against a closed plan.
var ErrPlanResolved = errors.New("intervention plan is already resolved")

// RuleConfig carries a district's parsed intervention thresholds.
type RuleConfig struct {
	// AbsenceLimit is the consecutive unexcused absence count that
	// opens an attendance plan.
	AbsenceLimit int
	// GradeFloor is the course average below which a grade plan opens.
	GradeFloor float64
	// NotifyBelow is the average below which guardians get an alert
	// when the average crosses it downward.
	NotifyBelow float64
}

// DefaultRules applies when a district has not tuned its thresholds.
var DefaultRules = RuleConfig{AbsenceLimit: 3, GradeFloor: 70, NotifyBelow: 70}

// RulesFromSettings parses threshold settings, falling back to the
// defaults for missing or malformed values.
func RulesFromSettings(settings map[string]string) RuleConfig {
	rules := DefaultRules
	if v, err := strconv.Atoi(settings[model.SettingAbsenceStreakLimit]); err == nil && v > 0 {
		rules.AbsenceLimit = v
	}
	if v, err := strconv.ParseFloat(settings[model.SettingGradeFloorThreshold], 64); err == nil && v > 0 {
		rules.GradeFloor = v
	}
	if v, err := strconv.ParseFloat(settings[model.SettingLowGradeNotifyBelow], 64); err == nil && v > 0 {
		rules.NotifyBelow = v
	}
	return rules
}

// TierForStreak maps an absence streak onto an MTSS tier: hitting the
// limit is universal support, double the limit is targeted, triple is
// intensive.
func TierForStreak(streak, limit int) model.InterventionTier {
	if limit < 1 {
		limit = DefaultRules.AbsenceLimit
	}
	switch {
	case streak >= limit*3:
		return model.TierIntensive
	case streak >= limit*2:
		return model.TierTargeted
	default:
		return model.TierUniversal
	}
}

// TierForAverage maps how far an average sits below the floor onto a
// tier: more than 20 points under is intensive, more than 10 targeted.
func TierForAverage(average, floor float64) model.InterventionTier {
	switch {
	case average < floor-20:
		return model.TierIntensive
	case average < floor-10:
		return model.TierTargeted
	default:
		return model.TierUniversal
	}
}

// InterventionService manages MTSS support plans. Staff open manual
// plans through the API; the intervention worker opens and escalates
// rule-driven plans through OpenOrEscalate.
type InterventionService struct {
	interventionRepo *repository.InterventionRepository
	studentRepo      *repository.StudentRepository
	publisher        *event.Publisher
	log              zerolog.Logger
}

func NewInterventionService(
	interventionRepo *repository.InterventionRepository,
	studentRepo *repository.StudentRepository,
	publisher *event.Publisher,
	log zerolog.Logger,
) *InterventionService {
	return &InterventionService{
		interventionRepo: interventionRepo,
		studentRepo:      studentRepo,
		publisher:        publisher,
		log:              log.With().Str("component", "intervention_service").Logger(),
	}
}

func (s *InterventionService) Get(ctx context.Context, scope model.TenantScope, id uuid.UUID) (*model.InterventionPlan, error) {
	return s.interventionRepo.GetByID(ctx, scope, id)
}

func (s *InterventionService) List(ctx context.Context, scope model.TenantScope, status string, tier, studentID *int, limit, offset int) ([]model.InterventionPlan, int, error) {
	return s.interventionRepo.ListPaginated(ctx, scope, status, tier, studentID, limit, offset)
}

func (s *InterventionService) ListByStudent(ctx context.Context, scope model.TenantScope, studentID int) ([]model.InterventionPlan, error) {
	if _, err := s.studentRepo.GetByID(ctx, scope, studentID); err != nil {
		return nil, err
	}
	return s.interventionRepo.ListByStudent(ctx, studentID)
}

// ListForChild serves the guardian portal, which carries a district
// claim but no school. Link authorization happens in the handler.
func (s *InterventionService) ListForChild(ctx context.Context, districtID, studentID int) ([]model.InterventionPlan, error) {
	if _, err := s.studentRepo.GetByIDInDistrict(ctx, districtID, studentID); err != nil {
		return nil, err
	}
	return s.interventionRepo.ListByStudent(ctx, studentID)
}

// Create opens a manual plan on behalf of a counselor or teacher.
func (s *InterventionService) Create(ctx context.Context, scope model.TenantScope, ownerID int, req *model.CreateInterventionRequest) (*model.InterventionPlan, error) {
	if _, err := s.studentRepo.GetByID(ctx, scope, req.StudentID); err != nil {
		return nil, err
	}

	plan := &model.InterventionPlan{
		ID:         uuid.New(),
		DistrictID: scope.DistrictID,
		SchoolID:   scope.SchoolID,
		StudentID:  req.StudentID,
		SectionID:  req.SectionID,
		Tier:       model.InterventionTier(req.Tier),
		Trigger:    model.TriggerManual,
		Status:     model.PlanActive,
		Summary:    req.Summary,
		OwnerID:    ownerID,
	}
	if err := s.interventionRepo.Create(ctx, plan); err != nil {
		return nil, err
	}

	s.publishPlanEvent(ctx, scope, event.TypeInterventionOpened, plan)
	return plan, nil
}

func (s *InterventionService) Update(ctx context.Context, scope model.TenantScope, id uuid.UUID, req *model.UpdateInterventionRequest) (*model.InterventionPlan, error) {
	plan, err := s.interventionRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	plan.Tier = model.InterventionTier(req.Tier)
	plan.Status = model.InterventionStatus(req.Status)
	plan.Summary = req.Summary
	if err := s.interventionRepo.Update(ctx, plan); err != nil {
		return nil, err
	}
	return s.interventionRepo.GetByID(ctx, scope, id)
}

// AddNote appends a progress entry. Resolved plans are closed records
// and take no further notes.
func (s *InterventionService) AddNote(ctx context.Context, scope model.TenantScope, planID uuid.UUID, authorID int, req *model.AddInterventionNoteRequest) (*model.InterventionNote, error) {
	plan, err := s.interventionRepo.GetByID(ctx, scope, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status == model.PlanResolved {
		return nil, ErrPlanResolved
	}

	note := &model.InterventionNote{
		PlanID:   planID,
		AuthorID: authorID,
		Body:     req.Body,
	}
	if err := s.interventionRepo.AddNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *InterventionService) ListNotes(ctx context.Context, scope model.TenantScope, planID uuid.UUID) ([]model.InterventionNote, error) {
	if _, err := s.interventionRepo.GetByID(ctx, scope, planID); err != nil {
		return nil, err
	}
	return s.interventionRepo.ListNotes(ctx, planID)
}

// OpenOrEscalate is the worker entry point for rule-driven plans. With
// no open plan for the trigger it opens one at the given tier; with an
// open plan it escalates one step at a time toward that tier. Running
// the same evaluation twice changes nothing, so redelivered events are
// harmless. Returns nil when there was nothing to do.
func (s *InterventionService) OpenOrEscalate(ctx context.Context, scope model.TenantScope, studentID int, sectionID *int, ownerID int, trigger model.InterventionTrigger, tier model.InterventionTier, summary string) (*model.InterventionPlan, error) {
	hasOpen, err := s.interventionRepo.HasOpenPlan(ctx, studentID, trigger)
	if err != nil {
		return nil, err
	}

	if !hasOpen {
		plan := &model.InterventionPlan{
			ID:         uuid.New(),
			DistrictID: scope.DistrictID,
			SchoolID:   scope.SchoolID,
			StudentID:  studentID,
			SectionID:  sectionID,
			Tier:       tier,
			Trigger:    trigger,
			Status:     model.PlanActive,
			Summary:    summary,
			OwnerID:    ownerID,
		}
		if err := s.interventionRepo.Create(ctx, plan); err != nil {
			return nil, err
		}
		s.publishPlanEvent(ctx, scope, event.TypeInterventionOpened, plan)
		s.log.Info().
			Int("student_id", studentID).
			Str("trigger", string(trigger)).
			Int("tier", int(tier)).
			Msg("Intervention plan opened")
		return plan, nil
	}

	plan, err := s.interventionRepo.EscalateTier(ctx, studentID, trigger, tier)
	if errors.Is(err, pgx.ErrNoRows) {
		// Open plan already at or above the warranted tier.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.publishPlanEvent(ctx, scope, event.TypeInterventionEscalated, plan)
	s.log.Info().
		Int("student_id", studentID).
		Str("trigger", string(trigger)).
		Int("tier", int(plan.Tier)).
		Msg("Intervention plan escalated")
	return plan, nil
}

func (s *InterventionService) publishPlanEvent(ctx context.Context, scope model.TenantScope, eventType string, plan *model.InterventionPlan) {
	env, err := event.NewEnvelope(eventType, scope, event.InterventionPayload{
		PlanID:    plan.ID,
		StudentID: plan.StudentID,
		Tier:      int(plan.Tier),
		Trigger:   string(plan.Trigger),
	})
	if err != nil {
		s.log.Error().Err(err).Str("plan_id", plan.ID.String()).Msg("Failed to build intervention event")
		return
	}
	if err := s.publisher.Publish(ctx, config.QueueKey.Notifications, env); err != nil {
		s.log.Error().Err(err).Str("plan_id", plan.ID.String()).Msg("Failed to enqueue intervention event")
	}
}
