package model

import "time"

// Enrollment places a student in a section and caches the computed
// course average so list views never recompute it on read.
type Enrollment struct {
	ID             int       `json:"id"`
	SectionID      int       `json:"section_id"`
	StudentID      int       `json:"student_id"`
	StudentName    string    `json:"student_name,omitempty"`
	StudentNumber  string    `json:"student_number,omitempty"`
	CurrentAverage *float64  `json:"current_average"`
	LetterGrade    *string   `json:"letter_grade"`
	EnrolledAt     time.Time `json:"enrolled_at"`
}

type EnrollStudentRequest struct {
	StudentID int `json:"student_id" binding:"required,min=1"`
}
