package model

import (
	"time"

	"github.com/google/uuid"
)

// Assignment is gradeable work inside a section's grade category.
// Only published assignments contribute to course averages.
type Assignment struct {
	ID           uuid.UUID  `json:"id"`
	SectionID    int        `json:"section_id"`
	CategoryID   int        `json:"category_id"`
	CategoryName string     `json:"category_name,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	MaxPoints    float64    `json:"max_points"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	Published    bool       `json:"published"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type CreateAssignmentRequest struct {
	CategoryID  int     `json:"category_id" binding:"required,min=1"`
	Title       string  `json:"title" binding:"required,min=2,max=160"`
	Description string  `json:"description" binding:"max=2000"`
	MaxPoints   float64 `json:"max_points" binding:"required,gt=0,lte=10000"`
	DueDate     string  `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Published   bool    `json:"published"`
}

type UpdateAssignmentRequest struct {
	CategoryID  int     `json:"category_id" binding:"required,min=1"`
	Title       string  `json:"title" binding:"required,min=2,max=160"`
	Description string  `json:"description" binding:"max=2000"`
	MaxPoints   float64 `json:"max_points" binding:"required,gt=0,lte=10000"`
	DueDate     string  `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Published   bool    `json:"published"`
}
