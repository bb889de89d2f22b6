package worker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/service"
)

// InterventionWorker evaluates district intervention rules against
// attendance.recorded and average.changed events. It opens or escalates
// MTSS plans and raises guardian alerts when a threshold trips.
type InterventionWorker struct {
	interventionService *service.InterventionService
	attendanceService   *service.AttendanceService
	settingService      *service.SettingService
	sectionRepo         *repository.SectionRepository
	studentRepo         *repository.StudentRepository
	publisher           *event.Publisher
	consumer            *event.Consumer
	log                 zerolog.Logger
}

func NewInterventionWorker(
	interventionService *service.InterventionService,
	attendanceService *service.AttendanceService,
	settingService *service.SettingService,
	sectionRepo *repository.SectionRepository,
	studentRepo *repository.StudentRepository,
	publisher *event.Publisher,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *InterventionWorker {
	return &InterventionWorker{
		interventionService: interventionService,
		attendanceService:   attendanceService,
		settingService:      settingService,
		sectionRepo:         sectionRepo,
		studentRepo:         studentRepo,
		publisher:           publisher,
		consumer:            event.NewConsumer(rdb, log, config.QueueKey.Interventions, cfg.EventMaxAttempts, cfg.EventRetryBase),
		log:                 log.With().Str("component", "intervention_worker").Logger(),
	}
}

func (w *InterventionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("InterventionWorker started")
	go w.consumer.RunRetryPump(ctx)
	w.consumer.Run(ctx, w.handle)
}

func (w *InterventionWorker) handle(ctx context.Context, env *event.Envelope) error {
	switch env.Type {
	case event.TypeAttendanceRecorded:
		var payload event.AttendanceRecordedPayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		return w.handleAttendance(ctx, env, payload)
	case event.TypeAverageChanged:
		var payload event.AverageChangedPayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		return w.handleAverage(ctx, env, payload)
	default:
		// Unknown types are dropped; retrying cannot make them known.
		w.log.Warn().Str("type", env.Type).Str("event_id", env.ID.String()).Msg("Unhandled event type on interventions queue")
		return nil
	}
}

func (w *InterventionWorker) handleAttendance(ctx context.Context, env *event.Envelope, payload event.AttendanceRecordedPayload) error {
	scope := model.TenantScope{DistrictID: env.DistrictID, SchoolID: env.SchoolID}

	rules, err := w.settingService.RulesFor(ctx, scope.DistrictID)
	if err != nil {
		return fmt.Errorf("load intervention rules: %w", err)
	}

	section, err := w.sectionRepo.GetByID(ctx, scope, payload.SectionID)
	if err != nil {
		return fmt.Errorf("load section %d: %w", payload.SectionID, err)
	}

	for _, studentID := range payload.AbsentIDs {
		student, err := w.studentRepo.GetByID(ctx, scope, studentID)
		if err != nil {
			return fmt.Errorf("load student %d: %w", studentID, err)
		}

		alert := event.GuardianAlertPayload{
			StudentID: studentID,
			Subject:   fmt.Sprintf("Absence recorded for %s %s", student.FirstName, student.LastName),
			Body: fmt.Sprintf("%s %s was marked absent from %s on %s.",
				student.FirstName, student.LastName, section.CourseName, payload.Date),
		}
		if err := w.publishAlert(ctx, scope, alert); err != nil {
			return err
		}

		// Lookback covers the deepest tier so a long streak is never
		// undercounted.
		streak, err := w.attendanceService.CurrentStreak(ctx, payload.SectionID, studentID, rules.AbsenceLimit*3)
		if err != nil {
			return fmt.Errorf("absence streak for student %d: %w", studentID, err)
		}
		if streak < rules.AbsenceLimit {
			continue
		}

		tier := service.TierForStreak(streak, rules.AbsenceLimit)
		summary := fmt.Sprintf("%d consecutive unexcused absences in %s", streak, section.CourseName)
		sectionID := payload.SectionID
		if _, err := w.interventionService.OpenOrEscalate(
			ctx, scope, studentID, &sectionID, section.TeacherID,
			model.TriggerAbsenceStreak, tier, summary,
		); err != nil {
			return fmt.Errorf("open attendance plan for student %d: %w", studentID, err)
		}
	}

	// Late marks alert guardians but never open a plan; only unexcused
	// absences count toward the streak rules.
	for _, studentID := range payload.LateIDs {
		student, err := w.studentRepo.GetByID(ctx, scope, studentID)
		if err != nil {
			return fmt.Errorf("load student %d: %w", studentID, err)
		}

		alert := event.GuardianAlertPayload{
			StudentID: studentID,
			Subject:   fmt.Sprintf("Tardy recorded for %s %s", student.FirstName, student.LastName),
			Body: fmt.Sprintf("%s %s arrived late to %s on %s.",
				student.FirstName, student.LastName, section.CourseName, payload.Date),
		}
		if err := w.publishAlert(ctx, scope, alert); err != nil {
			return err
		}
	}
	return nil
}

func (w *InterventionWorker) handleAverage(ctx context.Context, env *event.Envelope, payload event.AverageChangedPayload) error {
	if payload.NewAverage == nil {
		// The gradebook emptied out; nothing left to evaluate.
		return nil
	}
	scope := model.TenantScope{DistrictID: env.DistrictID, SchoolID: env.SchoolID}

	rules, err := w.settingService.RulesFor(ctx, scope.DistrictID)
	if err != nil {
		return fmt.Errorf("load intervention rules: %w", err)
	}
	newAvg := *payload.NewAverage

	section, err := w.sectionRepo.GetByID(ctx, scope, payload.SectionID)
	if err != nil {
		return fmt.Errorf("load section %d: %w", payload.SectionID, err)
	}
	student, err := w.studentRepo.GetByID(ctx, scope, payload.StudentID)
	if err != nil {
		return fmt.Errorf("load student %d: %w", payload.StudentID, err)
	}

	// The recalc worker already told guardians about the posted grade;
	// this alert fires only on the downward crossing of the threshold,
	// so a sliding average is not re-flagged per assignment.
	if crossedBelow(payload.PrevAverage, newAvg, rules.NotifyBelow) {
		alert := event.GuardianAlertPayload{
			StudentID: payload.StudentID,
			Subject:   fmt.Sprintf("Grade alert for %s %s", student.FirstName, student.LastName),
			Body: fmt.Sprintf("%s %s's average in %s has dropped to %.1f.",
				student.FirstName, student.LastName, section.CourseName, newAvg),
		}
		if err := w.publishAlert(ctx, scope, alert); err != nil {
			return err
		}
	}

	if newAvg >= rules.GradeFloor {
		return nil
	}

	tier := service.TierForAverage(newAvg, rules.GradeFloor)
	summary := fmt.Sprintf("Course average %.1f in %s is below the district floor of %.0f",
		newAvg, section.CourseName, rules.GradeFloor)
	sectionID := payload.SectionID
	if _, err := w.interventionService.OpenOrEscalate(
		ctx, scope, payload.StudentID, &sectionID, section.TeacherID,
		model.TriggerGradeDrop, tier, summary,
	); err != nil {
		return fmt.Errorf("open grade plan for student %d: %w", payload.StudentID, err)
	}
	return nil
}

// crossedBelow reports whether the average moved from at-or-above the
// threshold to below it. A student with no prior average counts as a
// crossing when the first value lands below.
func crossedBelow(prev *float64, newAvg, threshold float64) bool {
	return newAvg < threshold && (prev == nil || *prev >= threshold)
}

func (w *InterventionWorker) publishAlert(ctx context.Context, scope model.TenantScope, payload event.GuardianAlertPayload) error {
	env, err := event.NewEnvelope(event.TypeGuardianAlert, scope, payload)
	if err != nil {
		return err
	}
	return w.publisher.Publish(ctx, config.QueueKey.Notifications, env)
}
