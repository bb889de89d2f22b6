package model

import (
	"time"

	"github.com/google/uuid"
)

// Grade is one student's score on one assignment. A nil score means
// "not yet graded" and an excused grade never counts toward averages.
type Grade struct {
	ID           int        `json:"id"`
	AssignmentID uuid.UUID  `json:"assignment_id"`
	StudentID    int        `json:"student_id"`
	StudentName  string     `json:"student_name,omitempty"`
	Score        *float64   `json:"score"`
	Excused      bool       `json:"excused"`
	Late         bool       `json:"late"`
	GradedBy     *int       `json:"graded_by,omitempty"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type UpsertGradeRequest struct {
	StudentID int      `json:"student_id" binding:"required,min=1"`
	Score     *float64 `json:"score" binding:"omitempty,gte=0"`
	Excused   bool     `json:"excused"`
	Late      bool     `json:"late"`
}

type BulkGradeRequest struct {
	Grades []UpsertGradeRequest `json:"grades" binding:"required,min=1,max=200,dive"`
}

// StudentGradeSummary is the guardian-facing view of one section's
// standing for a single student.
type StudentGradeSummary struct {
	StudentID      int      `json:"student_id"`
	SectionID      int      `json:"section_id"`
	CourseName     string   `json:"course_name"`
	TeacherID      int      `json:"teacher_id"`
	TeacherName    string   `json:"teacher_name"`
	Period         string   `json:"period"`
	CurrentAverage *float64 `json:"current_average"`
	LetterGrade    *string  `json:"letter_grade"`
	MissingCount   int      `json:"missing_count"`
}
