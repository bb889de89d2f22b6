package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/service"
)

const (
	RecalcBatchSize    = 50
	RecalcBatchTimeout = 2 * time.Second
	RecalcPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// RecalcWorker consumes grade.updated events, recomputes weighted
// course averages, persists them in bulk, fans a grade-posted alert
// out to the graded students' guardians, and emits average.changed
// for every standing that actually moved. Recomputation is a full
// recalculation per student, so redelivered events are harmless.
type RecalcWorker struct {
	gradeRepo      *repository.GradeRepository
	enrollmentRepo *repository.EnrollmentRepository
	sectionRepo    *repository.SectionRepository
	studentRepo    *repository.StudentRepository
	settingService *service.SettingService
	publisher      *event.Publisher
	consumer       *event.Consumer
	rdb            *redis.Client
	log            zerolog.Logger
}

func NewRecalcWorker(
	gradeRepo *repository.GradeRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	sectionRepo *repository.SectionRepository,
	studentRepo *repository.StudentRepository,
	settingService *service.SettingService,
	publisher *event.Publisher,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *RecalcWorker {
	return &RecalcWorker{
		gradeRepo:      gradeRepo,
		enrollmentRepo: enrollmentRepo,
		sectionRepo:    sectionRepo,
		studentRepo:    studentRepo,
		settingService: settingService,
		publisher:      publisher,
		consumer:       event.NewConsumer(rdb, log, config.QueueKey.GradeRecalc, cfg.EventMaxAttempts, cfg.EventRetryBase),
		rdb:            rdb,
		log:            log.With().Str("component", "recalc_worker").Logger(),
	}
}

// recalcItem pairs a parsed payload with its envelope so failed
// flushes can go back through the retry schedule.
type recalcItem struct {
	env     *event.Envelope
	payload event.GradeUpdatedPayload
}

func (w *RecalcWorker) Start(ctx context.Context) {
	w.log.Info().Msg("RecalcWorker started")
	go w.consumer.RunRetryPump(ctx)

	batch := make([]*recalcItem, 0, RecalcBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= RecalcBatchSize || time.Since(lastFlush) >= RecalcBatchTimeout) {
			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.flush(shutdownCtx, batch)
			cancel()
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, RecalcPollTimeout, config.QueueKey.GradeRecalc).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Queue pop failed, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var env event.Envelope
		if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
			w.log.Error().Err(err).Msg("Malformed event moved to dead letter list")
			w.rdb.RPush(ctx, config.QueueKey.DeadKey(config.QueueKey.GradeRecalc), result[1])
			continue
		}
		env.Attempt++

		var payload event.GradeUpdatedPayload
		if err := env.Decode(&payload); err != nil {
			w.log.Error().Err(err).Str("event_id", env.ID.String()).Msg("Undecodable payload moved to dead letter list")
			w.rdb.RPush(ctx, config.QueueKey.DeadKey(config.QueueKey.GradeRecalc), result[1])
			continue
		}

		batch = append(batch, &recalcItem{env: &env, payload: payload})
	}
}

// sectionJob is the deduplicated unit of work for one flush: a section
// and the set of students needing a recompute. gradedIDs is the subset
// that actually received a grade; roster-wide recomputes (enrollment
// churn, assignment deletion) recalc everyone but alert no one.
type sectionJob struct {
	scope      model.TenantScope
	studentIDs map[int]struct{}
	gradedIDs  map[int]struct{}
	envs       []*event.Envelope
}

// flush dedups the batch into per-section jobs and recomputes each.
// Sections that fail re-enter the retry schedule envelope by envelope.
func (w *RecalcWorker) flush(ctx context.Context, batch []*recalcItem) {
	if len(batch) == 0 {
		return
	}

	jobs := make(map[int]*sectionJob)
	for _, item := range batch {
		job, ok := jobs[item.payload.SectionID]
		if !ok {
			job = &sectionJob{
				scope:      model.TenantScope{DistrictID: item.env.DistrictID, SchoolID: item.env.SchoolID},
				studentIDs: make(map[int]struct{}),
				gradedIDs:  make(map[int]struct{}),
			}
			jobs[item.payload.SectionID] = job
		}
		job.envs = append(job.envs, item.env)

		if len(item.payload.StudentIDs) == 0 {
			// Whole-roster recalc requested; resolve at flush time.
			ids, err := w.enrollmentRepo.ListStudentIDs(ctx, item.payload.SectionID)
			if err != nil {
				w.log.Error().Err(err).Int("section_id", item.payload.SectionID).Msg("Roster resolution failed")
				w.consumer.Fail(ctx, item.env, err)
				continue
			}
			for _, id := range ids {
				job.studentIDs[id] = struct{}{}
			}
			continue
		}
		for _, id := range item.payload.StudentIDs {
			job.studentIDs[id] = struct{}{}
			if item.env.Type == event.TypeGradeUpdated {
				job.gradedIDs[id] = struct{}{}
			}
		}
	}

	for sectionID, job := range jobs {
		if len(job.studentIDs) == 0 {
			continue
		}
		if err := w.recalcSection(ctx, sectionID, job); err != nil {
			w.log.Error().Err(err).Int("section_id", sectionID).Msg("Section recalc failed, scheduling retries")
			for _, env := range job.envs {
				w.consumer.Fail(ctx, env, err)
			}
		}
	}
}

func (w *RecalcWorker) recalcSection(ctx context.Context, sectionID int, job *sectionJob) error {
	cutoffs, err := w.settingService.GradeCutoffsFor(ctx, job.scope.DistrictID)
	if err != nil {
		return err
	}

	studentIDs := make([]int, 0, len(job.studentIDs))
	for id := range job.studentIDs {
		studentIDs = append(studentIDs, id)
	}

	rows, err := w.gradeRepo.ListRecalcRows(ctx, sectionID, studentIDs)
	if err != nil {
		return err
	}

	// Previous standings, for change detection.
	enrollments, err := w.enrollmentRepo.ListBySection(ctx, sectionID)
	if err != nil {
		return err
	}
	prev := make(map[int]*float64, len(enrollments))
	for i := range enrollments {
		prev[enrollments[i].StudentID] = enrollments[i].CurrentAverage
	}

	perStudent := make(map[int][]repository.RecalcRow)
	for _, row := range rows {
		perStudent[row.StudentID] = append(perStudent[row.StudentID], row)
	}

	updates := make([]repository.AverageUpdate, 0, len(studentIDs))
	changed := make([]event.AverageChangedPayload, 0)
	newAvgs := make(map[int]*float64, len(studentIDs))
	for _, studentID := range studentIDs {
		newAvg := service.CourseAverage(perStudent[studentID])
		newAvgs[studentID] = newAvg
		var letter *string
		if newAvg != nil {
			l := cutoffs.Letter(*newAvg)
			letter = &l
		}
		updates = append(updates, repository.AverageUpdate{
			SectionID:   sectionID,
			StudentID:   studentID,
			Average:     newAvg,
			LetterGrade: letter,
		})

		if prevAvg, ok := prev[studentID]; ok && !service.AveragesEqual(prevAvg, newAvg) {
			changed = append(changed, event.AverageChangedPayload{
				SectionID:   sectionID,
				StudentID:   studentID,
				PrevAverage: prevAvg,
				NewAverage:  newAvg,
			})
		}
	}

	if err := w.enrollmentRepo.BulkUpdateAverages(ctx, updates); err != nil {
		w.log.Warn().Err(err).Int("section_id", sectionID).Msg("Bulk average update failed, using fallback")
		for _, u := range updates {
			if err := w.enrollmentRepo.UpdateAverage(ctx, u); err != nil {
				return err
			}
		}
	}

	// Stored averages feed the cached grid and roster; drop stale copies.
	if err := w.rdb.Del(ctx,
		config.CacheKey.SectionGradebookKey(sectionID),
		config.CacheKey.SectionRosterKey(sectionID),
	).Err(); err != nil {
		w.log.Warn().Err(err).Int("section_id", sectionID).Msg("Failed to invalidate section caches")
	}

	for _, payload := range changed {
		env, err := event.NewEnvelope(event.TypeAverageChanged, job.scope, payload)
		if err != nil {
			w.log.Error().Err(err).Msg("Failed to build average.changed event")
			continue
		}
		if err := w.publisher.Publish(ctx, config.QueueKey.Interventions, env); err != nil {
			w.log.Error().Err(err).Int("student_id", payload.StudentID).Msg("Failed to enqueue average.changed")
		}
	}

	w.publishGradeAlerts(ctx, sectionID, job, newAvgs)

	w.log.Debug().
		Int("section_id", sectionID).
		Int("students", len(studentIDs)).
		Int("changed", len(changed)).
		Msg("Section averages recomputed")
	return nil
}

// publishGradeAlerts fans a grade-posted alert out to the guardians of
// every student in the flush who received a grade. Unlike the low-grade
// drop alert, this fires regardless of thresholds or direction; the
// averages are already persisted, so failures here are logged rather
// than failing the section.
func (w *RecalcWorker) publishGradeAlerts(ctx context.Context, sectionID int, job *sectionJob, newAvgs map[int]*float64) {
	if len(job.gradedIDs) == 0 {
		return
	}

	section, err := w.sectionRepo.GetByID(ctx, job.scope, sectionID)
	if err != nil {
		w.log.Error().Err(err).Int("section_id", sectionID).Msg("Section lookup for grade alerts failed")
		return
	}

	for studentID := range job.gradedIDs {
		student, err := w.studentRepo.GetByID(ctx, job.scope, studentID)
		if err != nil {
			w.log.Error().Err(err).Int("student_id", studentID).Msg("Student lookup for grade alert failed")
			continue
		}

		env, err := event.NewEnvelope(event.TypeGuardianAlert, job.scope,
			gradePostedAlert(student, section.CourseName, newAvgs[studentID]))
		if err != nil {
			w.log.Error().Err(err).Int("student_id", studentID).Msg("Failed to build grade alert")
			continue
		}
		if err := w.publisher.Publish(ctx, config.QueueKey.Notifications, env); err != nil {
			w.log.Error().Err(err).Int("student_id", studentID).Msg("Failed to enqueue grade alert")
		}
	}
}

// gradePostedAlert builds the guardian fan-out for one freshly graded
// student. A nil average means the section has no gradable scores yet.
func gradePostedAlert(student *model.Student, courseName string, avg *float64) event.GuardianAlertPayload {
	body := fmt.Sprintf("A new grade was posted for %s %s in %s.",
		student.FirstName, student.LastName, courseName)
	if avg != nil {
		body = fmt.Sprintf("%s The course average is now %.1f.", body, *avg)
	}
	return event.GuardianAlertPayload{
		StudentID: student.ID,
		Subject:   fmt.Sprintf("New grade posted for %s %s", student.FirstName, student.LastName),
		Body:      body,
	}
}
