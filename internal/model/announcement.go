package model

import (
	"time"

	"github.com/google/uuid"
)

// Announcement is a one-to-many broadcast. A nil SectionID means the
// announcement targets the whole school.
type Announcement struct {
	ID          uuid.UUID  `json:"id"`
	DistrictID  int        `json:"district_id"`
	SchoolID    int        `json:"school_id"`
	SectionID   *int       `json:"section_id,omitempty"`
	AuthorID    int        `json:"author_id"`
	AuthorName  string     `json:"author_name,omitempty"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CreateAnnouncementRequest struct {
	SectionID *int   `json:"section_id" binding:"omitempty,min=1"`
	Title     string `json:"title" binding:"required,min=2,max=200"`
	Body      string `json:"body" binding:"required,min=1,max=10000"`
}

type UpdateAnnouncementRequest struct {
	Title string `json:"title" binding:"required,min=2,max=200"`
	Body  string `json:"body" binding:"required,min=1,max=10000"`
}
