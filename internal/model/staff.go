package model

import "time"

// Staff is a district employee account: teachers, counselors, admins.
type Staff struct {
	ID           int        `json:"id"`
	DistrictID   int        `json:"district_id"`
	SchoolID     int        `json:"school_id"`
	RoleID       int        `json:"role_id"`
	RoleName     string     `json:"role_name,omitempty"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Title        string     `json:"title"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type CreateStaffRequest struct {
	SchoolID  int    `json:"school_id" binding:"required,min=1"`
	RoleID    int    `json:"role_id" binding:"required,min=1"`
	Email     string `json:"email" binding:"required,email,max=160"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	FirstName string `json:"first_name" binding:"required,min=1,max=80"`
	LastName  string `json:"last_name" binding:"required,min=1,max=80"`
	Title     string `json:"title" binding:"max=80"`
}

type UpdateStaffRequest struct {
	RoleID    int    `json:"role_id" binding:"required,min=1"`
	FirstName string `json:"first_name" binding:"required,min=1,max=80"`
	LastName  string `json:"last_name" binding:"required,min=1,max=80"`
	Title     string `json:"title" binding:"max=80"`
	IsActive  *bool  `json:"is_active" binding:"required"`
}

type ResetStaffPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type StaffLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
