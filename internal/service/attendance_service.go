package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// Sentinel errors for attendance recording.
var (
	ErrAttendanceInFuture = errors.New("attendance date cannot be in the future")
	ErrAttendanceTooOld   = errors.New("attendance date is outside the edit window")
)

// attendanceEditWindow is how far back a mark can still be corrected.
const attendanceEditWindow = 14 * 24 * time.Hour

// AttendanceService records daily attendance and answers summary queries.
type AttendanceService struct {
	sectionRepo    *repository.SectionRepository
	attendanceRepo *repository.AttendanceRepository
	enrollmentRepo *repository.EnrollmentRepository
	publisher      *event.Publisher
	log            zerolog.Logger
}

func NewAttendanceService(
	sectionRepo *repository.SectionRepository,
	attendanceRepo *repository.AttendanceRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	publisher *event.Publisher,
	log zerolog.Logger,
) *AttendanceService {
	return &AttendanceService{
		sectionRepo:    sectionRepo,
		attendanceRepo: attendanceRepo,
		enrollmentRepo: enrollmentRepo,
		publisher:      publisher,
		log:            log.With().Str("component", "attendance_service").Logger(),
	}
}

// RecordAttendance upserts a batch of marks for one section and date.
// Absent and late students are forwarded to the intervention queue so
// guardian alerts and streak rules run off the request path.
func (s *AttendanceService) RecordAttendance(ctx context.Context, scope model.TenantScope, sectionID, recordedBy int, req *model.RecordAttendanceRequest) ([]model.AttendanceRecord, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}
	if err := checkAttendanceDate(date, time.Now()); err != nil {
		return nil, err
	}

	records := make([]model.AttendanceRecord, 0, len(req.Entries))
	for _, entry := range req.Entries {
		enrolled, err := s.enrollmentRepo.IsEnrolled(ctx, sectionID, entry.StudentID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, fmt.Errorf("student %d: %w", entry.StudentID, ErrStudentNotEnrolled)
		}

		records = append(records, model.AttendanceRecord{
			SectionID:  sectionID,
			StudentID:  entry.StudentID,
			Date:       date,
			Status:     model.AttendanceStatus(entry.Status),
			Note:       entry.Note,
			RecordedBy: recordedBy,
		})
	}

	if err := s.attendanceRepo.UpsertBatch(ctx, records); err != nil {
		return nil, err
	}

	absentIDs, lateIDs := splitForAlerts(records)
	env, err := event.NewEnvelope(event.TypeAttendanceRecorded, scope, event.AttendanceRecordedPayload{
		SectionID: sectionID,
		Date:      req.Date,
		AbsentIDs: absentIDs,
		LateIDs:   lateIDs,
	})
	if err != nil {
		s.log.Error().Err(err).Int("section_id", sectionID).Msg("Failed to build attendance event")
	} else if err := s.publisher.Publish(ctx, config.QueueKey.Interventions, env); err != nil {
		s.log.Error().Err(err).Int("section_id", sectionID).Msg("Failed to enqueue attendance event")
	}

	return records, nil
}

// splitForAlerts buckets the marks that trigger guardian fan-out.
// Unexcused absences also feed the streak rules downstream; excused
// and present marks notify no one.
func splitForAlerts(records []model.AttendanceRecord) (absentIDs, lateIDs []int) {
	absentIDs = make([]int, 0, len(records))
	lateIDs = make([]int, 0)
	for _, r := range records {
		switch r.Status {
		case model.AttendanceAbsent:
			absentIDs = append(absentIDs, r.StudentID)
		case model.AttendanceLate:
			lateIDs = append(lateIDs, r.StudentID)
		}
	}
	return absentIDs, lateIDs
}

// checkAttendanceDate enforces the recording window. Marks are taken
// for today or corrected within two weeks, never dated into the future.
func checkAttendanceDate(date, now time.Time) error {
	today := now.UTC().Truncate(24 * time.Hour)
	mark := date.UTC().Truncate(24 * time.Hour)

	if mark.After(today) {
		return ErrAttendanceInFuture
	}
	if today.Sub(mark) > attendanceEditWindow {
		return ErrAttendanceTooOld
	}
	return nil
}

func (s *AttendanceService) ListForSectionDate(ctx context.Context, scope model.TenantScope, sectionID int, date time.Time) ([]model.AttendanceRecord, error) {
	if _, err := s.sectionRepo.GetByID(ctx, scope, sectionID); err != nil {
		return nil, err
	}
	return s.attendanceRepo.ListBySectionDate(ctx, sectionID, date)
}

func (s *AttendanceService) ListForStudent(ctx context.Context, studentID int, from, to time.Time) ([]model.AttendanceRecord, error) {
	return s.attendanceRepo.ListByStudent(ctx, studentID, from, to)
}

func (s *AttendanceService) StudentSummary(ctx context.Context, studentID int, from, to time.Time) (*model.AttendanceSummary, error) {
	return s.attendanceRepo.SummaryByStudent(ctx, studentID, from, to)
}

// SchoolDailySummary aggregates one date's marks across the school for
// the front office view.
func (s *AttendanceService) SchoolDailySummary(ctx context.Context, scope model.TenantScope, date time.Time) (*model.DailyAttendanceSummary, error) {
	return s.attendanceRepo.DailySummary(ctx, scope, date)
}

// AbsenceStreak counts how many of the student's most recent marks in
// the section are consecutive unexcused absences, newest first. An
// excused absence breaks the streak just like a present mark.
func AbsenceStreak(statuses []model.AttendanceStatus) int {
	streak := 0
	for _, status := range statuses {
		if status != model.AttendanceAbsent {
			break
		}
		streak++
	}
	return streak
}

// CurrentStreak loads the student's recent marks and counts the live
// absence streak. Used by the intervention worker.
func (s *AttendanceService) CurrentStreak(ctx context.Context, sectionID, studentID, lookback int) (int, error) {
	statuses, err := s.attendanceRepo.ListRecentStatuses(ctx, sectionID, studentID, lookback)
	if err != nil {
		return 0, err
	}
	return AbsenceStreak(statuses), nil
}
