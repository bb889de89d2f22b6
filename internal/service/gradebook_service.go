package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// Sentinel errors for gradebook operations.
var (
	ErrAssignmentNotInSection = errors.New("assignment does not belong to this section")
	ErrCategoryNotInSection   = errors.New("category does not belong to this section")
	ErrScoreExceedsMax        = errors.New("score exceeds assignment max points")
	ErrStudentNotEnrolled     = errors.New("student is not enrolled in this section")
	ErrWeightBudgetExceeded   = errors.New("category weights would exceed 1.0")
)

// GradebookService owns grade categories, assignments and grade entry
// for a section. Every successful grade write enqueues a recalculation
// event; stored averages are only ever touched by the recalc worker.
// The section grid is cached in Redis and dropped on every write.
type GradebookService struct {
	sectionRepo    *repository.SectionRepository
	assignmentRepo *repository.AssignmentRepository
	gradeRepo      *repository.GradeRepository
	enrollmentRepo *repository.EnrollmentRepository
	publisher      *event.Publisher
	rdb            *redis.Client
	cacheTTL       time.Duration
	log            zerolog.Logger
}

func NewGradebookService(
	sectionRepo *repository.SectionRepository,
	assignmentRepo *repository.AssignmentRepository,
	gradeRepo *repository.GradeRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	publisher *event.Publisher,
	rdb *redis.Client,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *GradebookService {
	return &GradebookService{
		sectionRepo:    sectionRepo,
		assignmentRepo: assignmentRepo,
		gradeRepo:      gradeRepo,
		enrollmentRepo: enrollmentRepo,
		publisher:      publisher,
		rdb:            rdb,
		cacheTTL:       cacheTTL,
		log:            log.With().Str("component", "gradebook_service").Logger(),
	}
}

// ─────────────────────────── Categories ───────────────────────────

func (s *GradebookService) ListCategories(ctx context.Context, scope model.TenantScope, sectionID int) ([]model.GradeCategory, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}
	return s.sectionRepo.ListCategories(ctx, sectionID)
}

func (s *GradebookService) CreateCategory(ctx context.Context, scope model.TenantScope, sectionID int, req *model.CreateGradeCategoryRequest) (*model.GradeCategory, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}
	if err := s.checkWeightBudget(ctx, sectionID, 0, req.Weight); err != nil {
		return nil, err
	}

	category := &model.GradeCategory{
		SectionID: sectionID,
		Name:      req.Name,
		Weight:    req.Weight,
	}
	if err := s.sectionRepo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	s.invalidateGrid(ctx, sectionID)
	return category, nil
}

func (s *GradebookService) UpdateCategory(ctx context.Context, scope model.TenantScope, sectionID, categoryID int, req *model.UpdateGradeCategoryRequest) (*model.GradeCategory, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}
	category, err := s.sectionRepo.GetCategory(ctx, sectionID, categoryID)
	if err != nil {
		return nil, err
	}
	if err := s.checkWeightBudget(ctx, sectionID, categoryID, req.Weight); err != nil {
		return nil, err
	}

	category.Name = req.Name
	category.Weight = req.Weight
	if err := s.sectionRepo.UpdateCategory(ctx, category); err != nil {
		return nil, err
	}

	// A weight change shifts every enrolled student's average.
	s.invalidateGrid(ctx, sectionID)
	s.enqueueSectionRecalc(ctx, scope, sectionID, uuid.Nil)
	return category, nil
}

func (s *GradebookService) DeleteCategory(ctx context.Context, scope model.TenantScope, sectionID, categoryID int) error {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return err
	}
	if err := s.sectionRepo.DeleteCategory(ctx, sectionID, categoryID); err != nil {
		return err
	}

	s.invalidateGrid(ctx, sectionID)
	return nil
}

// checkWeightBudget rejects a weight that would push the section's
// total past 1.0. excludeID skips the category being updated.
func (s *GradebookService) checkWeightBudget(ctx context.Context, sectionID, excludeID int, newWeight float64) error {
	categories, err := s.sectionRepo.ListCategories(ctx, sectionID)
	if err != nil {
		return err
	}

	total := newWeight
	for _, c := range categories {
		if c.ID == excludeID {
			continue
		}
		total += c.Weight
	}
	// Small epsilon so 0.3+0.3+0.4 entered as floats still passes.
	if total > 1.0+1e-9 {
		return fmt.Errorf("%w: total would be %.4f", ErrWeightBudgetExceeded, total)
	}
	return nil
}

// ─────────────────────────── Assignments ───────────────────────────

func (s *GradebookService) ListAssignments(ctx context.Context, scope model.TenantScope, sectionID int) ([]model.Assignment, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}
	return s.assignmentRepo.ListBySection(ctx, sectionID, false)
}

func (s *GradebookService) GetAssignment(ctx context.Context, scope model.TenantScope, sectionID int, id uuid.UUID) (*model.Assignment, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}
	assignment, err := s.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if assignment.SectionID != sectionID {
		return nil, ErrAssignmentNotInSection
	}
	return assignment, nil
}

func (s *GradebookService) CreateAssignment(ctx context.Context, scope model.TenantScope, sectionID int, req *model.CreateAssignmentRequest) (*model.Assignment, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}
	if _, err := s.sectionRepo.GetCategory(ctx, sectionID, req.CategoryID); err != nil {
		return nil, ErrCategoryNotInSection
	}

	assignment := &model.Assignment{
		ID:          uuid.New(),
		SectionID:   sectionID,
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		MaxPoints:   req.MaxPoints,
		Published:   req.Published,
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return nil, fmt.Errorf("parse due date: %w", err)
		}
		assignment.DueDate = &due
	}

	if err := s.assignmentRepo.Create(ctx, assignment); err != nil {
		return nil, err
	}

	s.invalidateGrid(ctx, sectionID)
	return assignment, nil
}

func (s *GradebookService) UpdateAssignment(ctx context.Context, scope model.TenantScope, sectionID int, id uuid.UUID, req *model.UpdateAssignmentRequest) (*model.Assignment, error) {
	assignment, err := s.GetAssignment(ctx, scope, sectionID, id)
	if err != nil {
		return nil, err
	}
	if req.CategoryID != assignment.CategoryID {
		if _, err := s.sectionRepo.GetCategory(ctx, sectionID, req.CategoryID); err != nil {
			return nil, ErrCategoryNotInSection
		}
	}

	wasCounting := assignment.Published
	assignment.CategoryID = req.CategoryID
	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.MaxPoints = req.MaxPoints
	assignment.Published = req.Published
	assignment.DueDate = nil
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return nil, fmt.Errorf("parse due date: %w", err)
		}
		assignment.DueDate = &due
	}

	if err := s.assignmentRepo.Update(ctx, assignment); err != nil {
		return nil, err
	}

	// Publishing, unpublishing, re-weighting or re-pointing an
	// assignment all change what contributes to the average.
	s.invalidateGrid(ctx, sectionID)
	if wasCounting || assignment.Published {
		s.enqueueSectionRecalc(ctx, scope, sectionID, assignment.ID)
	}
	return assignment, nil
}

func (s *GradebookService) DeleteAssignment(ctx context.Context, scope model.TenantScope, sectionID int, id uuid.UUID) error {
	assignment, err := s.GetAssignment(ctx, scope, sectionID, id)
	if err != nil {
		return err
	}
	if err := s.assignmentRepo.Delete(ctx, sectionID, id); err != nil {
		return err
	}

	s.invalidateGrid(ctx, sectionID)
	if assignment.Published {
		s.enqueueSectionRecalc(ctx, scope, sectionID, id)
	}
	return nil
}

// ─────────────────────────── Grade entry ───────────────────────────

// UpsertGrade records or replaces one student's score on an assignment
// and enqueues a recalculation for that student.
func (s *GradebookService) UpsertGrade(ctx context.Context, scope model.TenantScope, sectionID int, assignmentID uuid.UUID, gradedBy int, req *model.UpsertGradeRequest) (*model.Grade, error) {
	assignment, err := s.GetAssignment(ctx, scope, sectionID, assignmentID)
	if err != nil {
		return nil, err
	}

	grade, err := s.buildGrade(ctx, assignment, gradedBy, req)
	if err != nil {
		return nil, err
	}
	if err := s.gradeRepo.Upsert(ctx, grade); err != nil {
		return nil, err
	}

	s.invalidateGrid(ctx, sectionID)
	s.publishGradeUpdated(ctx, scope, sectionID, assignmentID, []int{req.StudentID})
	return grade, nil
}

// BulkUpsertGrades records a whole column of scores at once. The write
// is not atomic: rows before the first failure are kept, matching how
// teachers actually want partial saves to behave.
func (s *GradebookService) BulkUpsertGrades(ctx context.Context, scope model.TenantScope, sectionID int, assignmentID uuid.UUID, gradedBy int, req *model.BulkGradeRequest) ([]model.Grade, error) {
	assignment, err := s.GetAssignment(ctx, scope, sectionID, assignmentID)
	if err != nil {
		return nil, err
	}

	grades := make([]model.Grade, 0, len(req.Grades))
	studentIDs := make([]int, 0, len(req.Grades))
	for i := range req.Grades {
		grade, err := s.buildGrade(ctx, assignment, gradedBy, &req.Grades[i])
		if err != nil {
			return nil, fmt.Errorf("student %d: %w", req.Grades[i].StudentID, err)
		}
		if err := s.gradeRepo.Upsert(ctx, grade); err != nil {
			return nil, fmt.Errorf("student %d: %w", req.Grades[i].StudentID, err)
		}
		grades = append(grades, *grade)
		studentIDs = append(studentIDs, grade.StudentID)
	}

	s.invalidateGrid(ctx, sectionID)
	s.publishGradeUpdated(ctx, scope, sectionID, assignmentID, studentIDs)
	return grades, nil
}

func (s *GradebookService) ListGrades(ctx context.Context, scope model.TenantScope, sectionID int, assignmentID uuid.UUID) ([]model.Grade, error) {
	if _, err := s.GetAssignment(ctx, scope, sectionID, assignmentID); err != nil {
		return nil, err
	}
	return s.gradeRepo.ListByAssignment(ctx, assignmentID)
}

// buildGrade validates one grade row against the assignment and the
// roster before it is written.
func (s *GradebookService) buildGrade(ctx context.Context, assignment *model.Assignment, gradedBy int, req *model.UpsertGradeRequest) (*model.Grade, error) {
	enrolled, err := s.enrollmentRepo.IsEnrolled(ctx, assignment.SectionID, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, ErrStudentNotEnrolled
	}
	if req.Score != nil && *req.Score > assignment.MaxPoints {
		return nil, fmt.Errorf("%w: %.2f > %.2f", ErrScoreExceedsMax, *req.Score, assignment.MaxPoints)
	}

	return &model.Grade{
		AssignmentID: assignment.ID,
		StudentID:    req.StudentID,
		Score:        req.Score,
		Excused:      req.Excused,
		Late:         req.Late,
		GradedBy:     &gradedBy,
	}, nil
}

// ─────────────────────────── Roster view ───────────────────────────

// SectionStanding pairs an enrollment with its missing-work count for
// the teacher's gradebook sidebar.
type SectionStanding struct {
	model.Enrollment
	MissingCount int `json:"missing_count"`
}

// ListStandings returns each enrolled student's stored average and
// missing-assignment count.
func (s *GradebookService) ListStandings(ctx context.Context, scope model.TenantScope, sectionID int) ([]SectionStanding, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}

	enrollments, err := s.enrollmentRepo.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	standings := make([]SectionStanding, 0, len(enrollments))
	for _, e := range enrollments {
		missing, err := s.gradeRepo.MissingCount(ctx, sectionID, e.StudentID)
		if err != nil {
			return nil, fmt.Errorf("missing count for student %d: %w", e.StudentID, err)
		}
		standings = append(standings, SectionStanding{Enrollment: e, MissingCount: missing})
	}
	return standings, nil
}

// StudentWork returns every published assignment in the section with
// the student's grade rows joined in. Used by the guardian portal.
func (s *GradebookService) StudentWork(ctx context.Context, sectionID, studentID int) ([]repository.StudentAssignmentGrade, error) {
	return s.gradeRepo.ListForStudentSection(ctx, sectionID, studentID)
}

// StudentSummaries returns the student's standing in every active
// section on their schedule.
func (s *GradebookService) StudentSummaries(ctx context.Context, studentID int) ([]model.StudentGradeSummary, error) {
	return s.enrollmentRepo.ListStudentSummaries(ctx, studentID)
}

// ─────────────────────────── Grid ───────────────────────────

// GradebookGrid is the teacher-facing section view: one column per
// assignment, one row per enrolled student.
type GradebookGrid struct {
	SectionID   int                `json:"section_id"`
	Assignments []model.Assignment `json:"assignments"`
	Students    []GridRow          `json:"students"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// GridRow is one student's row. Cells are keyed by assignment ID so the
// client never has to positionally match columns.
type GridRow struct {
	StudentID      int                 `json:"student_id"`
	StudentName    string              `json:"student_name"`
	StudentNumber  string              `json:"student_number"`
	CurrentAverage *float64            `json:"current_average"`
	LetterGrade    *string             `json:"letter_grade"`
	Cells          map[string]GridCell `json:"cells"`
}

// GridCell is one student's mark on one assignment.
type GridCell struct {
	Score   *float64 `json:"score"`
	Excused bool     `json:"excused,omitempty"`
	Late    bool     `json:"late,omitempty"`
}

// Grid returns the section's full gradebook, served from Redis when a
// fresh copy exists. Every gradebook write drops the cached copy, and
// the TTL caps staleness if an invalidation is ever lost.
func (s *GradebookService) Grid(ctx context.Context, scope model.TenantScope, sectionID int) (*GradebookGrid, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}

	key := config.CacheKey.SectionGradebookKey(sectionID)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		grid := &GradebookGrid{}
		if err := json.Unmarshal(data, grid); err == nil {
			return grid, nil
		}
		// A corrupt entry gets dropped and rebuilt below.
		s.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Int("section_id", sectionID).Msg("Gradebook cache read failed, serving from database")
	}

	grid, err := s.buildGrid(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(grid); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Int("section_id", sectionID).Msg("Gradebook cache write failed")
		}
	}
	return grid, nil
}

func (s *GradebookService) buildGrid(ctx context.Context, sectionID int) (*GradebookGrid, error) {
	assignments, err := s.assignmentRepo.ListBySection(ctx, sectionID, false)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollmentRepo.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	cells, err := s.gradeRepo.ListCellsBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[int]map[string]GridCell, len(enrollments))
	for _, c := range cells {
		row, ok := byStudent[c.StudentID]
		if !ok {
			row = make(map[string]GridCell)
			byStudent[c.StudentID] = row
		}
		row[c.AssignmentID.String()] = GridCell{Score: c.Score, Excused: c.Excused, Late: c.Late}
	}

	rows := make([]GridRow, 0, len(enrollments))
	for _, e := range enrollments {
		cellMap := byStudent[e.StudentID]
		if cellMap == nil {
			cellMap = map[string]GridCell{}
		}
		rows = append(rows, GridRow{
			StudentID:      e.StudentID,
			StudentName:    e.StudentName,
			StudentNumber:  e.StudentNumber,
			CurrentAverage: e.CurrentAverage,
			LetterGrade:    e.LetterGrade,
			Cells:          cellMap,
		})
	}

	return &GradebookGrid{
		SectionID:   sectionID,
		Assignments: assignments,
		Students:    rows,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ExportGrid writes the grid as an xlsx workbook: one row per student,
// one column per assignment, the stored average and letter last.
func (s *GradebookService) ExportGrid(ctx context.Context, scope model.TenantScope, sectionID int, w io.Writer) error {
	grid, err := s.Grid(ctx, scope, sectionID)
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
	headers := []string{"student_number", "student_name"}
	for _, a := range grid.Assignments {
		headers = append(headers, fmt.Sprintf("%s (%.0f pts)", a.Title, a.MaxPoints))
	}
	headers = append(headers, "average", "letter")
	for col, title := range headers {
		cellRef, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cellRef, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for rowIdx, row := range grid.Students {
		values := make([]any, 0, len(headers))
		values = append(values, row.StudentNumber, row.StudentName)
		for _, a := range grid.Assignments {
			cell, ok := row.Cells[a.ID.String()]
			switch {
			case !ok, cell.Score == nil && !cell.Excused:
				values = append(values, "")
			case cell.Excused:
				values = append(values, "EX")
			default:
				values = append(values, *cell.Score)
			}
		}
		values = append(values, "", "")
		if row.CurrentAverage != nil {
			values[len(values)-2] = *row.CurrentAverage
		}
		if row.LetterGrade != nil {
			values[len(values)-1] = *row.LetterGrade
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

// invalidateGrid drops the cached grid. Failures are logged, not fatal:
// the TTL bounds how long a stale copy can live.
func (s *GradebookService) invalidateGrid(ctx context.Context, sectionID int) {
	if err := s.rdb.Del(ctx, config.CacheKey.SectionGradebookKey(sectionID)).Err(); err != nil {
		s.log.Warn().Err(err).Int("section_id", sectionID).Msg("Failed to invalidate gradebook cache")
	}
}

// ─────────────────────────── Events ───────────────────────────

func (s *GradebookService) publishGradeUpdated(ctx context.Context, scope model.TenantScope, sectionID int, assignmentID uuid.UUID, studentIDs []int) {
	env, err := event.NewEnvelope(event.TypeGradeUpdated, scope, event.GradeUpdatedPayload{
		SectionID:    sectionID,
		AssignmentID: assignmentID,
		StudentIDs:   studentIDs,
	})
	if err != nil {
		s.log.Error().Err(err).Int("section_id", sectionID).Msg("Failed to build grade.updated event")
		return
	}
	if err := s.publisher.Publish(ctx, config.QueueKey.GradeRecalc, env); err != nil {
		s.log.Error().Err(err).Int("section_id", sectionID).Msg("Failed to enqueue grade recalc")
	}
}

// enqueueSectionRecalc schedules a recalculation for the whole roster.
// An empty StudentIDs slice tells the worker to resolve the roster
// itself at processing time.
func (s *GradebookService) enqueueSectionRecalc(ctx context.Context, scope model.TenantScope, sectionID int, assignmentID uuid.UUID) {
	s.publishGradeUpdated(ctx, scope, sectionID, assignmentID, nil)
}
