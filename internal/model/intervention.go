package model

import (
	"time"

	"github.com/google/uuid"
)

// InterventionTier maps to the MTSS pyramid: 1 is universal support,
// 2 is targeted small-group, 3 is intensive individual.
type InterventionTier int

const (
	TierUniversal InterventionTier = 1
	TierTargeted  InterventionTier = 2
	TierIntensive InterventionTier = 3
)

// InterventionTrigger records what opened a plan.
type InterventionTrigger string

const (
	TriggerGradeDrop     InterventionTrigger = "grade_drop"
	TriggerAbsenceStreak InterventionTrigger = "absence_streak"
	TriggerManual        InterventionTrigger = "manual"
)

// InterventionStatus is the plan lifecycle.
type InterventionStatus string

const (
	PlanActive     InterventionStatus = "active"
	PlanMonitoring InterventionStatus = "monitoring"
	PlanResolved   InterventionStatus = "resolved"
)

// InterventionPlan is an MTSS support plan opened for one student,
// either by a counselor or automatically by the intervention worker.
type InterventionPlan struct {
	ID          uuid.UUID           `json:"id"`
	DistrictID  int                 `json:"district_id"`
	SchoolID    int                 `json:"school_id"`
	StudentID   int                 `json:"student_id"`
	StudentName string              `json:"student_name,omitempty"`
	SectionID   *int                `json:"section_id,omitempty"`
	Tier        InterventionTier    `json:"tier"`
	Trigger     InterventionTrigger `json:"trigger"`
	Status      InterventionStatus  `json:"status"`
	Summary     string              `json:"summary"`
	OwnerID     int                 `json:"owner_id"`
	OwnerName   string              `json:"owner_name,omitempty"`
	OpenedAt    time.Time           `json:"opened_at"`
	ResolvedAt  *time.Time          `json:"resolved_at,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// InterventionNote is a progress-monitoring entry on a plan.
type InterventionNote struct {
	ID         int       `json:"id"`
	PlanID     uuid.UUID `json:"plan_id"`
	AuthorID   int       `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateInterventionRequest struct {
	StudentID int    `json:"student_id" binding:"required,min=1"`
	SectionID *int   `json:"section_id" binding:"omitempty,min=1"`
	Tier      int    `json:"tier" binding:"required,min=1,max=3"`
	Summary   string `json:"summary" binding:"required,min=5,max=2000"`
}

type UpdateInterventionRequest struct {
	Tier    int    `json:"tier" binding:"required,min=1,max=3"`
	Status  string `json:"status" binding:"required,oneof=active monitoring resolved"`
	Summary string `json:"summary" binding:"required,min=5,max=2000"`
}

type AddInterventionNoteRequest struct {
	Body string `json:"body" binding:"required,min=1,max=2000"`
}
