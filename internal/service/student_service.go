package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// Sentinel errors for roster operations.
var (
	ErrEmptySpreadsheet = errors.New("spreadsheet has no data rows")
	ErrTooManyRows      = errors.New("spreadsheet exceeds the import row limit")
)

// rosterImportLimit bounds one import request. Larger districts split
// their files per school anyway.
const rosterImportLimit = 5000

// rosterHeader is the column order for both import and export.
var rosterHeader = []string{"student_number", "first_name", "last_name", "grade_level", "date_of_birth", "has_iep", "has_504"}

// StudentService manages student records and bulk roster imports.
type StudentService struct {
	studentRepo *repository.StudentRepository
	log         zerolog.Logger
}

func NewStudentService(studentRepo *repository.StudentRepository, log zerolog.Logger) *StudentService {
	return &StudentService{
		studentRepo: studentRepo,
		log:         log.With().Str("component", "student_service").Logger(),
	}
}

func (s *StudentService) GetStudent(ctx context.Context, scope model.TenantScope, id int) (*model.Student, error) {
	return s.studentRepo.GetByID(ctx, scope, id)
}

func (s *StudentService) ListStudents(ctx context.Context, scope model.TenantScope, gradeLevel *int, search string, limit, offset int) ([]model.Student, int, error) {
	return s.studentRepo.ListPaginated(ctx, scope, gradeLevel, search, limit, offset)
}

func (s *StudentService) CreateStudent(ctx context.Context, scope model.TenantScope, req *model.CreateStudentRequest) (*model.Student, error) {
	student := &model.Student{
		DistrictID:    scope.DistrictID,
		SchoolID:      scope.SchoolID,
		StudentNumber: strings.TrimSpace(req.StudentNumber),
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		GradeLevel:    req.GradeLevel,
		HasIEP:        req.HasIEP,
		Has504:        req.Has504,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("parse date of birth: %w", err)
		}
		student.DateOfBirth = &dob
	}

	if err := s.studentRepo.Create(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *StudentService) UpdateStudent(ctx context.Context, scope model.TenantScope, id int, req *model.UpdateStudentRequest) (*model.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	student.FirstName = strings.TrimSpace(req.FirstName)
	student.LastName = strings.TrimSpace(req.LastName)
	student.GradeLevel = req.GradeLevel
	student.HasIEP = req.HasIEP
	student.Has504 = req.Has504
	student.DateOfBirth = nil
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("parse date of birth: %w", err)
		}
		student.DateOfBirth = &dob
	}

	if err := s.studentRepo.Update(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// DeleteStudent soft deletes. History stays queryable for audits; the
// student just stops appearing in rosters and searches.
func (s *StudentService) DeleteStudent(ctx context.Context, scope model.TenantScope, id int) error {
	_, err := s.studentRepo.SoftDelete(ctx, scope, id)
	return err
}

// RestoreStudent undoes a soft delete, typically after a withdrawal was
// recorded by mistake. Enrollments and history resurface untouched.
func (s *StudentService) RestoreStudent(ctx context.Context, scope model.TenantScope, id int) (*model.Student, error) {
	return s.studentRepo.Restore(ctx, scope, id)
}

// ─────────────────────────── Import / export ───────────────────────────

// ImportRoster reads an xlsx roster and upserts every row keyed on the
// student number. Rows that fail validation are reported, not fatal.
// Re-importing a previously deleted student revives the record.
func (s *StudentService) ImportRoster(ctx context.Context, scope model.TenantScope, file io.Reader) (*model.RosterImportResult, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close spreadsheet")
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrEmptySpreadsheet
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptySpreadsheet
	}
	if len(rows)-1 > rosterImportLimit {
		return nil, fmt.Errorf("%w: %d rows (max %d)", ErrTooManyRows, len(rows)-1, rosterImportLimit)
	}

	result := &model.RosterImportResult{}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rowNum := i + 1

		student, err := parseRosterRow(scope, row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, model.RosterImportRow{Row: rowNum, Message: err.Error()})
			continue
		}

		created, err := s.studentRepo.UpsertByNumber(ctx, student)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, model.RosterImportRow{Row: rowNum, Message: err.Error()})
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.log.Info().
		Int("school_id", scope.SchoolID).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("Roster import finished")
	return result, nil
}

// parseRosterRow maps one spreadsheet row onto a student record.
// Expected columns follow rosterHeader.
func parseRosterRow(scope model.TenantScope, row []string) (*model.Student, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	number := cell(0)
	firstName := cell(1)
	lastName := cell(2)
	if number == "" || firstName == "" || lastName == "" {
		return nil, errors.New("student_number, first_name and last_name are required")
	}
	if len(number) < 3 || len(number) > 30 {
		return nil, errors.New("student_number must be 3-30 characters")
	}

	gradeLevel, err := strconv.Atoi(cell(3))
	if err != nil || gradeLevel < 0 || gradeLevel > 12 {
		return nil, errors.New("grade_level must be a number between 0 and 12")
	}

	student := &model.Student{
		DistrictID:    scope.DistrictID,
		SchoolID:      scope.SchoolID,
		StudentNumber: number,
		FirstName:     firstName,
		LastName:      lastName,
		GradeLevel:    gradeLevel,
		HasIEP:        parseSheetBool(cell(5)),
		Has504:        parseSheetBool(cell(6)),
	}
	if dobCell := cell(4); dobCell != "" {
		dob, err := time.Parse("2006-01-02", dobCell)
		if err != nil {
			return nil, errors.New("date_of_birth must be YYYY-MM-DD")
		}
		student.DateOfBirth = &dob
	}
	return student, nil
}

// parseSheetBool accepts the spellings spreadsheets actually contain.
func parseSheetBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "x":
		return true
	default:
		return false
	}
}

// ExportRoster writes the school's active students as an xlsx workbook.
func (s *StudentService) ExportRoster(ctx context.Context, scope model.TenantScope, w io.Writer) error {
	const pageSize = 500

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close spreadsheet")
		}
	}()

	sheetName := f.GetSheetName(0)
	for col, title := range rosterHeader {
		cellRef, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cellRef, title); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	rowNum := 2
	for offset := 0; ; offset += pageSize {
		students, _, err := s.studentRepo.ListPaginated(ctx, scope, nil, "", pageSize, offset)
		if err != nil {
			return fmt.Errorf("list students: %w", err)
		}
		for _, st := range students {
			values := []any{st.StudentNumber, st.FirstName, st.LastName, st.GradeLevel, "", st.HasIEP, st.Has504}
			if st.DateOfBirth != nil {
				values[4] = st.DateOfBirth.Format("2006-01-02")
			}
			for col, v := range values {
				cellRef, err := excelize.CoordinatesToCellName(col+1, rowNum)
				if err != nil {
					return fmt.Errorf("data cell: %w", err)
				}
				if err := f.SetCellValue(sheetName, cellRef, v); err != nil {
					return fmt.Errorf("write row %d: %w", rowNum, err)
				}
			}
			rowNum++
		}
		if len(students) < pageSize {
			break
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
