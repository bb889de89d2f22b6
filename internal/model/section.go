package model

import "time"

// Section is one course offering taught by a staff member in a term,
// for example "Algebra I - Period 3".
type Section struct {
	ID          int        `json:"id"`
	DistrictID  int        `json:"district_id"`
	SchoolID    int        `json:"school_id"`
	TeacherID   int        `json:"teacher_id"`
	TeacherName string     `json:"teacher_name,omitempty"`
	CourseName  string     `json:"course_name"`
	Period      string     `json:"period"`
	Term        string     `json:"term"`
	RoomNumber  string     `json:"room_number"`
	Enrolled    int        `json:"enrolled,omitempty"`
	DeletedAt   *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CreateSectionRequest struct {
	TeacherID  int    `json:"teacher_id" binding:"required,min=1"`
	CourseName string `json:"course_name" binding:"required,min=2,max=120"`
	Period     string `json:"period" binding:"required,min=1,max=20"`
	Term       string `json:"term" binding:"required,min=2,max=40"`
	RoomNumber string `json:"room_number" binding:"max=20"`
}

type UpdateSectionRequest struct {
	TeacherID  int    `json:"teacher_id" binding:"required,min=1"`
	CourseName string `json:"course_name" binding:"required,min=2,max=120"`
	Period     string `json:"period" binding:"required,min=1,max=20"`
	Term       string `json:"term" binding:"required,min=2,max=40"`
	RoomNumber string `json:"room_number" binding:"max=20"`
}

// GradeCategory weights a slice of a section's gradebook, for example
// "Homework 20%". Weights are fractions that should sum to 1 per section.
type GradeCategory struct {
	ID        int       `json:"id"`
	SectionID int       `json:"section_id"`
	Name      string    `json:"name"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateGradeCategoryRequest struct {
	Name   string  `json:"name" binding:"required,min=2,max=60"`
	Weight float64 `json:"weight" binding:"required,gt=0,lte=1"`
}

type UpdateGradeCategoryRequest struct {
	Name   string  `json:"name" binding:"required,min=2,max=60"`
	Weight float64 `json:"weight" binding:"required,gt=0,lte=1"`
}
