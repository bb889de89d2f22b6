package model

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantKind distinguishes the two account tables a conversation
// participant row can reference.
type ParticipantKind string

const (
	ParticipantStaff    ParticipantKind = "staff"
	ParticipantGuardian ParticipantKind = "guardian"
)

// Conversation is a message thread between staff and guardians,
// usually about one student.
type Conversation struct {
	ID            uuid.UUID     `json:"id"`
	DistrictID    int           `json:"district_id"`
	SchoolID      int           `json:"school_id"`
	StudentID     *int          `json:"student_id,omitempty"`
	Subject       string        `json:"subject"`
	CreatedBy     int           `json:"created_by"`
	CreatedByKind string        `json:"created_by_kind"`
	LastMessageAt *time.Time    `json:"last_message_at,omitempty"`
	Participants  []Participant `json:"participants,omitempty"`
	UnreadCount   int           `json:"unread_count"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Participant is one member of a conversation.
type Participant struct {
	ConversationID uuid.UUID       `json:"-"`
	Kind           ParticipantKind `json:"kind"`
	MemberID       int             `json:"member_id"`
	Name           string          `json:"name,omitempty"`
	LastReadAt     *time.Time      `json:"last_read_at,omitempty"`
}

// Message is a single post inside a conversation.
type Message struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	SenderKind     ParticipantKind `json:"sender_kind"`
	SenderID       int             `json:"sender_id"`
	SenderName     string          `json:"sender_name,omitempty"`
	Body           string          `json:"body"`
	AttachmentURL  string          `json:"attachment_url,omitempty"`
	SentAt         time.Time       `json:"sent_at"`
}

type CreateConversationRequest struct {
	StudentID   *int   `json:"student_id" binding:"omitempty,min=1"`
	Subject     string `json:"subject" binding:"required,min=2,max=200"`
	GuardianIDs []int  `json:"guardian_ids" binding:"required,min=1,max=10,dive,min=1"`
	StaffIDs    []int  `json:"staff_ids" binding:"omitempty,max=10,dive,min=1"`
	Body        string `json:"body" binding:"required,min=1,max=5000"`
}

// GuardianCreateConversationRequest opens a thread from the portal. It
// always concerns one of the guardian's children and targets staff.
type GuardianCreateConversationRequest struct {
	StudentID int    `json:"student_id" binding:"required,min=1"`
	Subject   string `json:"subject" binding:"required,min=2,max=200"`
	StaffIDs  []int  `json:"staff_ids" binding:"required,min=1,max=10,dive,min=1"`
	Body      string `json:"body" binding:"required,min=1,max=5000"`
}

type SendMessageRequest struct {
	Body          string `json:"body" binding:"required,min=1,max=5000"`
	AttachmentURL string `json:"attachment_url" binding:"omitempty,max=500,uri"`
}
