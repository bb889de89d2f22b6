package model

import "time"

// Guardian is a parent or caretaker account. Guardians only see data
// for students they are linked to, never the full roster.
type Guardian struct {
	ID           int        `json:"id"`
	DistrictID   int        `json:"district_id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone"`
	NotifyEmail  bool       `json:"notify_email"`
	NotifySMS    bool       `json:"notify_sms"`
	NotifyPush   bool       `json:"notify_push"`
	PushToken    string     `json:"-"`
	IsActivated  bool       `json:"is_activated"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// GuardianLink ties a guardian to one student with a relationship label.
type GuardianLink struct {
	GuardianID   int    `json:"guardian_id"`
	StudentID    int    `json:"student_id"`
	Relationship string `json:"relationship"`
	StudentName  string `json:"student_name,omitempty"`
	GuardianName string `json:"guardian_name,omitempty"`
}

type CreateGuardianRequest struct {
	Email     string `json:"email" binding:"required,email,max=160"`
	FirstName string `json:"first_name" binding:"required,min=1,max=80"`
	LastName  string `json:"last_name" binding:"required,min=1,max=80"`
	Phone     string `json:"phone" binding:"omitempty,e164"`
}

type LinkGuardianRequest struct {
	StudentID    int    `json:"student_id" binding:"required,min=1"`
	Relationship string `json:"relationship" binding:"required,min=2,max=40"`
}

type GuardianActivateRequest struct {
	Token    string `json:"token" binding:"required,len=36"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type GuardianLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateGuardianPrefsRequest struct {
	NotifyEmail *bool  `json:"notify_email" binding:"required"`
	NotifySMS   *bool  `json:"notify_sms" binding:"required"`
	NotifyPush  *bool  `json:"notify_push" binding:"required"`
	Phone       string `json:"phone" binding:"omitempty,e164"`
	PushToken   string `json:"push_token" binding:"omitempty,max=255"`
}

// GuardianInvite is the activation payload stored in Redis under the
// invite token until the guardian sets a password or the TTL expires.
type GuardianInvite struct {
	GuardianID int `json:"guardian_id"`
	DistrictID int `json:"district_id"`
}
