package model

import "time"

// AttendanceStatus enumerates the valid attendance marks.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// Valid reports whether s is one of the recognized attendance marks.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// AttendanceRecord is one student's mark for one section on one date.
// The (section, student, date) triple is unique; re-recording overwrites.
type AttendanceRecord struct {
	ID          int              `json:"id"`
	SectionID   int              `json:"section_id"`
	StudentID   int              `json:"student_id"`
	StudentName string           `json:"student_name,omitempty"`
	Date        time.Time        `json:"date"`
	Status      AttendanceStatus `json:"status"`
	Note        string           `json:"note"`
	RecordedBy  int              `json:"recorded_by"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type RecordAttendanceEntry struct {
	StudentID int    `json:"student_id" binding:"required,min=1"`
	Status    string `json:"status" binding:"required,oneof=present absent late excused"`
	Note      string `json:"note" binding:"max=500"`
}

type RecordAttendanceRequest struct {
	Date    string                  `json:"date" binding:"required,datetime=2006-01-02"`
	Entries []RecordAttendanceEntry `json:"entries" binding:"required,min=1,max=200,dive"`
}

// AttendanceSummary aggregates one student's marks over a date range.
type AttendanceSummary struct {
	StudentID    int     `json:"student_id"`
	PresentCount int     `json:"present_count"`
	AbsentCount  int     `json:"absent_count"`
	LateCount    int     `json:"late_count"`
	ExcusedCount int     `json:"excused_count"`
	Rate         float64 `json:"rate"`
}

// DailyAttendanceSummary aggregates a school's marks for one date.
// SectionsTaken counts sections with at least one mark, so front office
// staff can chase the teachers who have not taken attendance yet.
type DailyAttendanceSummary struct {
	Date           time.Time       `json:"date"`
	SectionsTotal  int             `json:"sections_total"`
	SectionsTaken  int             `json:"sections_taken"`
	PresentCount   int             `json:"present_count"`
	AbsentCount    int             `json:"absent_count"`
	LateCount      int             `json:"late_count"`
	ExcusedCount   int             `json:"excused_count"`
	AbsentStudents []AbsentStudent `json:"absent_students"`
}

// AbsentStudent is one absence row in the daily school summary.
type AbsentStudent struct {
	StudentID   int    `json:"student_id"`
	StudentName string `json:"student_name"`
	SectionID   int    `json:"section_id"`
	SectionName string `json:"section_name"`
}
