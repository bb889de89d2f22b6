package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// Domain event types. Each queue-bound type is consumed by exactly one
// worker; feed-only types are broadcast for live monitors and never queued.
const (
	TypeGradeUpdated          = "grade.updated"
	TypeAverageChanged        = "average.changed"
	TypeStudentEnrolled       = "student.enrolled"
	TypeAttendanceRecorded    = "attendance.recorded"
	TypeMessageSent           = "message.sent"
	TypeAnnouncementPublished = "announcement.published"
	TypeInterventionOpened    = "intervention.opened"
	TypeInterventionEscalated = "intervention.escalated"
	TypeGuardianAlert         = "guardian.alert"
	TypeNotificationDispatch  = "notification.dispatch"
	TypeAuditRecord           = "audit.record"
)

// Envelope is the wire format for every queued domain event. Attempt
// starts at zero and is incremented by the consumer before each handler
// call, so a handler always sees the attempt it is running.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	DistrictID int             `json:"district_id"`
	SchoolID   int             `json:"school_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Attempt    int             `json:"attempt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload in a fresh envelope scoped to the tenant.
func NewEnvelope(eventType string, scope model.TenantScope, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		ID:         uuid.New(),
		Type:       eventType,
		DistrictID: scope.DistrictID,
		SchoolID:   scope.SchoolID,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Decode unmarshals the envelope payload into dst.
func (e *Envelope) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

type GradeUpdatedPayload struct {
	SectionID    int       `json:"section_id"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	StudentIDs   []int     `json:"student_ids"`
}

type AverageChangedPayload struct {
	SectionID   int      `json:"section_id"`
	StudentID   int      `json:"student_id"`
	PrevAverage *float64 `json:"prev_average"`
	NewAverage  *float64 `json:"new_average"`
}

type StudentEnrolledPayload struct {
	SectionID  int    `json:"section_id"`
	StudentID  int    `json:"student_id"`
	CourseName string `json:"course_name,omitempty"`
}

type AttendanceRecordedPayload struct {
	SectionID int    `json:"section_id"`
	Date      string `json:"date"`
	AbsentIDs []int  `json:"absent_ids"`
	LateIDs   []int  `json:"late_ids,omitempty"`
}

type MessageSentPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	SenderKind     string    `json:"sender_kind"`
	SenderID       int       `json:"sender_id"`
}

type AnnouncementPublishedPayload struct {
	AnnouncementID uuid.UUID `json:"announcement_id"`
}

type InterventionPayload struct {
	PlanID    uuid.UUID `json:"plan_id"`
	StudentID int       `json:"student_id"`
	Tier      int       `json:"tier"`
	Trigger   string    `json:"trigger"`
}

type GuardianAlertPayload struct {
	StudentID int    `json:"student_id"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type NotificationDispatchPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

type AuditRecordPayload struct {
	ActorKind  string          `json:"actor_kind"`
	ActorID    int             `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Detail     json.RawMessage `json:"detail,omitempty"`
}
