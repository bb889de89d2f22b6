package service

import (
	"errors"
	"testing"
	"time"

	"github.com/skillcore/skillcore-backend/internal/model"
)

func TestAbsenceStreakCountsFromNewest(t *testing.T) {
	statuses := []model.AttendanceStatus{
		model.AttendanceAbsent,
		model.AttendanceAbsent,
		model.AttendanceAbsent,
		model.AttendancePresent,
		model.AttendanceAbsent,
	}
	if got := AbsenceStreak(statuses); got != 3 {
		t.Errorf("streak = %d, want 3", got)
	}
}

func TestAbsenceStreakBrokenByExcused(t *testing.T) {
	statuses := []model.AttendanceStatus{
		model.AttendanceAbsent,
		model.AttendanceExcused,
		model.AttendanceAbsent,
	}
	if got := AbsenceStreak(statuses); got != 1 {
		t.Errorf("streak = %d, want 1", got)
	}
}

func TestAbsenceStreakZeroWhenPresent(t *testing.T) {
	statuses := []model.AttendanceStatus{
		model.AttendancePresent,
		model.AttendanceAbsent,
	}
	if got := AbsenceStreak(statuses); got != 0 {
		t.Errorf("streak = %d, want 0", got)
	}
	if got := AbsenceStreak(nil); got != 0 {
		t.Errorf("empty history: streak = %d, want 0", got)
	}
}

func TestCheckAttendanceDateWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	if err := checkAttendanceDate(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), now); err != nil {
		t.Errorf("today should be recordable: %v", err)
	}
	if err := checkAttendanceDate(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), now); err != nil {
		t.Errorf("date inside the edit window should be recordable: %v", err)
	}

	err := checkAttendanceDate(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), now)
	if !errors.Is(err, ErrAttendanceInFuture) {
		t.Errorf("tomorrow: err = %v, want ErrAttendanceInFuture", err)
	}

	err = checkAttendanceDate(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), now)
	if !errors.Is(err, ErrAttendanceTooOld) {
		t.Errorf("six weeks ago: err = %v, want ErrAttendanceTooOld", err)
	}
}

func TestSplitForAlertsBucketsAbsentAndLate(t *testing.T) {
	records := []model.AttendanceRecord{
		{StudentID: 1, Status: model.AttendancePresent},
		{StudentID: 2, Status: model.AttendanceAbsent},
		{StudentID: 3, Status: model.AttendanceLate},
		{StudentID: 4, Status: model.AttendanceExcused},
		{StudentID: 5, Status: model.AttendanceAbsent},
	}

	absentIDs, lateIDs := splitForAlerts(records)
	if len(absentIDs) != 2 || absentIDs[0] != 2 || absentIDs[1] != 5 {
		t.Errorf("absent ids = %v, want [2 5]", absentIDs)
	}
	if len(lateIDs) != 1 || lateIDs[0] != 3 {
		t.Errorf("late ids = %v, want [3]", lateIDs)
	}
}

func TestSplitForAlertsQuietDay(t *testing.T) {
	records := []model.AttendanceRecord{
		{StudentID: 1, Status: model.AttendancePresent},
		{StudentID: 2, Status: model.AttendanceExcused},
	}

	absentIDs, lateIDs := splitForAlerts(records)
	if len(absentIDs) != 0 || len(lateIDs) != 0 {
		t.Errorf("present and excused marks must alert no one: absent=%v late=%v", absentIDs, lateIDs)
	}
}
