package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// SectionService manages course sections and their rosters. Rosters are
// cached in Redis and dropped on enrollment changes.
type SectionService struct {
	sectionRepo    *repository.SectionRepository
	enrollmentRepo *repository.EnrollmentRepository
	studentRepo    *repository.StudentRepository
	staffRepo      *repository.StaffRepository
	publisher      *event.Publisher
	rdb            *redis.Client
	cacheTTL       time.Duration
	log            zerolog.Logger
}

func NewSectionService(
	sectionRepo *repository.SectionRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	studentRepo *repository.StudentRepository,
	staffRepo *repository.StaffRepository,
	publisher *event.Publisher,
	rdb *redis.Client,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *SectionService {
	return &SectionService{
		sectionRepo:    sectionRepo,
		enrollmentRepo: enrollmentRepo,
		studentRepo:    studentRepo,
		staffRepo:      staffRepo,
		publisher:      publisher,
		rdb:            rdb,
		cacheTTL:       cacheTTL,
		log:            log.With().Str("component", "section_service").Logger(),
	}
}

func (s *SectionService) GetSection(ctx context.Context, scope model.TenantScope, id int) (*model.Section, error) {
	return s.sectionRepo.GetByID(ctx, scope, id)
}

func (s *SectionService) ListSections(ctx context.Context, scope model.TenantScope, teacherID *int, term string, limit, offset int) ([]model.Section, int, error) {
	return s.sectionRepo.ListPaginated(ctx, scope, teacherID, term, limit, offset)
}

func (s *SectionService) CreateSection(ctx context.Context, scope model.TenantScope, req *model.CreateSectionRequest) (*model.Section, error) {
	// The teacher must exist in the same district before a section can
	// point at them.
	if _, err := s.staffRepo.GetByID(ctx, scope.DistrictID, req.TeacherID); err != nil {
		return nil, err
	}

	section := &model.Section{
		DistrictID: scope.DistrictID,
		SchoolID:   scope.SchoolID,
		TeacherID:  req.TeacherID,
		CourseName: req.CourseName,
		Period:     req.Period,
		Term:       req.Term,
		RoomNumber: req.RoomNumber,
	}
	if err := s.sectionRepo.Create(ctx, section); err != nil {
		return nil, err
	}
	return section, nil
}

func (s *SectionService) UpdateSection(ctx context.Context, scope model.TenantScope, id int, req *model.UpdateSectionRequest) (*model.Section, error) {
	section, err := s.sectionRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if req.TeacherID != section.TeacherID {
		if _, err := s.staffRepo.GetByID(ctx, scope.DistrictID, req.TeacherID); err != nil {
			return nil, err
		}
	}

	section.TeacherID = req.TeacherID
	section.CourseName = req.CourseName
	section.Period = req.Period
	section.Term = req.Term
	section.RoomNumber = req.RoomNumber
	if err := s.sectionRepo.Update(ctx, section); err != nil {
		return nil, err
	}
	return section, nil
}

func (s *SectionService) DeleteSection(ctx context.Context, scope model.TenantScope, id int) error {
	return s.sectionRepo.SoftDelete(ctx, scope, id)
}

// IsTaughtBy reports whether the staff member teaches the section.
// Handlers use it to limit gradebook writes to the owning teacher.
func (s *SectionService) IsTaughtBy(ctx context.Context, sectionID, staffID int) (bool, error) {
	return s.sectionRepo.IsTaughtBy(ctx, sectionID, staffID)
}

// ─────────────────────────── Roster ───────────────────────────

// ListRoster returns a section's enrollments with stored averages,
// served from Redis when a fresh copy exists.
func (s *SectionService) ListRoster(ctx context.Context, scope model.TenantScope, sectionID int) ([]model.Enrollment, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}

	key := config.CacheKey.SectionRosterKey(sectionID)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var roster []model.Enrollment
		if err := json.Unmarshal(data, &roster); err == nil {
			return roster, nil
		}
		s.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Int("section_id", sectionID).Msg("Roster cache read failed, serving from database")
	}

	roster, err := s.enrollmentRepo.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(roster); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Int("section_id", sectionID).Msg("Roster cache write failed")
		}
	}
	return roster, nil
}

// ExportRoster writes the section roster as an xlsx workbook.
func (s *SectionService) ExportRoster(ctx context.Context, scope model.TenantScope, sectionID int, w io.Writer) error {
	roster, err := s.ListRoster(ctx, scope, sectionID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close spreadsheet")
		}
	}()

	sheetName := f.GetSheetName(0)
	headers := []string{"student_number", "student_name", "current_average", "letter_grade", "enrolled_at"}
	for col, title := range headers {
		cellRef, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cellRef, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for rowIdx, e := range roster {
		values := []any{e.StudentNumber, e.StudentName, "", "", e.EnrolledAt.Format("2006-01-02")}
		if e.CurrentAverage != nil {
			values[2] = *e.CurrentAverage
		}
		if e.LetterGrade != nil {
			values[3] = *e.LetterGrade
		}
		for col, v := range values {
			cellRef, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cellRef, v); err != nil {
				return fmt.Errorf("write row %d: %w", rowIdx+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// invalidateRoster drops the cached roster and grid. Enrollment changes
// alter the row set of both views.
func (s *SectionService) invalidateRoster(ctx context.Context, sectionID int) {
	if err := s.rdb.Del(ctx,
		config.CacheKey.SectionRosterKey(sectionID),
		config.CacheKey.SectionGradebookKey(sectionID),
	).Err(); err != nil {
		s.log.Warn().Err(err).Int("section_id", sectionID).Msg("Failed to invalidate roster cache")
	}
}

// EnrollStudent places a student in a section, queues a roster recalc,
// and announces the change on the school's live feed. The recalc
// matters on re-enrollment: reactivating a dropped row would otherwise
// serve its stale stored average until the next grade write.
func (s *SectionService) EnrollStudent(ctx context.Context, scope model.TenantScope, sectionID int, req *model.EnrollStudentRequest) (*model.Enrollment, error) {
	section, err := s.sectionRepo.GetByID(ctx, scope, sectionID)
	if err != nil {
		return nil, err
	}
	student, err := s.studentRepo.GetByID(ctx, scope, req.StudentID)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.enrollmentRepo.Enroll(ctx, sectionID, student.ID)
	if err != nil {
		return nil, err
	}
	s.invalidateRoster(ctx, sectionID)

	env, err := event.NewEnvelope(event.TypeStudentEnrolled, scope, event.StudentEnrolledPayload{
		SectionID:  section.ID,
		StudentID:  student.ID,
		CourseName: section.CourseName,
	})
	if err == nil {
		// The payload carries no student_ids field, which the recalc
		// worker reads as a whole-roster recompute for the section.
		if err := s.publisher.Publish(ctx, config.QueueKey.GradeRecalc, env); err != nil {
			s.log.Warn().Err(err).Int("section_id", sectionID).Msg("Failed to queue enrollment recalc")
		}
		if err := s.publisher.Broadcast(ctx, env); err != nil {
			s.log.Warn().Err(err).Int("section_id", sectionID).Msg("Enrollment broadcast failed")
		}
	}

	return enrollment, nil
}

func (s *SectionService) UnenrollStudent(ctx context.Context, scope model.TenantScope, sectionID, studentID int) error {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return err
	}
	if err := s.enrollmentRepo.Unenroll(ctx, sectionID, studentID); err != nil {
		return err
	}

	s.invalidateRoster(ctx, sectionID)
	return nil
}
