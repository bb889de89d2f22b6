package model

import "time"

// Student is a pupil record scoped to a school. Soft deleted rows keep
// their grade and attendance history but disappear from listings.
type Student struct {
	ID            int        `json:"id"`
	DistrictID    int        `json:"district_id"`
	SchoolID      int        `json:"school_id"`
	StudentNumber string     `json:"student_number"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	GradeLevel    int        `json:"grade_level"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	HasIEP        bool       `json:"has_iep"`
	Has504        bool       `json:"has_504"`
	DeletedAt     *time.Time `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type CreateStudentRequest struct {
	StudentNumber string `json:"student_number" binding:"required,min=3,max=30,alphanum"`
	FirstName     string `json:"first_name" binding:"required,min=1,max=80"`
	LastName      string `json:"last_name" binding:"required,min=1,max=80"`
	GradeLevel    int    `json:"grade_level" binding:"required,min=0,max=12"`
	DateOfBirth   string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	HasIEP        bool   `json:"has_iep"`
	Has504        bool   `json:"has_504"`
}

type UpdateStudentRequest struct {
	FirstName   string `json:"first_name" binding:"required,min=1,max=80"`
	LastName    string `json:"last_name" binding:"required,min=1,max=80"`
	GradeLevel  int    `json:"grade_level" binding:"required,min=0,max=12"`
	DateOfBirth string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	HasIEP      bool   `json:"has_iep"`
	Has504      bool   `json:"has_504"`
}

// RosterImportResult summarizes a bulk spreadsheet import.
type RosterImportResult struct {
	Created int               `json:"created"`
	Updated int               `json:"updated"`
	Skipped int               `json:"skipped"`
	Errors  []RosterImportRow `json:"errors,omitempty"`
}

// RosterImportRow reports a spreadsheet row that failed validation.
type RosterImportRow struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}
