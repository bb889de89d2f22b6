package model

import "time"

// Role groups a set of permissions under a district-scoped name.
type Role struct {
	ID          int          `json:"id"`
	DistrictID  int          `json:"district_id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required,min=2,max=60"`
	Permissions []string `json:"permissions" binding:"required,min=1,dive,min=3"`
}

type UpdateRoleRequest struct {
	Name        string   `json:"name" binding:"required,min=2,max=60"`
	Permissions []string `json:"permissions" binding:"required,min=1,dive,min=3"`
}
