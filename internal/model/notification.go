package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationChannel is the delivery vendor class for one notification.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelPush  NotificationChannel = "push"
)

// NotificationRecipient says who a notification is addressed to:
// a guardian through their preferred channels, or a staff member
// (counselors on plan activity) by email.
type NotificationRecipient string

const (
	RecipientGuardian NotificationRecipient = "guardian"
	RecipientStaff    NotificationRecipient = "staff"
)

// NotificationStatus is the delivery lifecycle. Dead notifications
// exhausted every retry and require a manual re-enqueue.
type NotificationStatus string

const (
	NotificationQueued NotificationStatus = "queued"
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
	NotificationDead   NotificationStatus = "dead"
)

// Notification is one outbound delivery attempt record. The worker
// owns status transitions; handlers only read and re-enqueue.
type Notification struct {
	ID            uuid.UUID             `json:"id"`
	DistrictID    int                   `json:"district_id"`
	SchoolID      int                   `json:"school_id"`
	RecipientType NotificationRecipient `json:"recipient_type"`
	RecipientID   int                   `json:"recipient_id"`
	Channel       NotificationChannel   `json:"channel"`
	Subject       string                `json:"subject"`
	Body          string                `json:"body"`
	Status        NotificationStatus    `json:"status"`
	Attempts      int                   `json:"attempts"`
	LastError     string                `json:"last_error,omitempty"`
	SentAt        *time.Time            `json:"sent_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}
