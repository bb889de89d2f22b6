package model

import "time"

// School is a campus within a district.
type School struct {
	ID         int       `json:"id"`
	DistrictID int       `json:"district_id"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	Timezone   string    `json:"timezone"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateSchoolRequest is the payload for creating a new school.
type CreateSchoolRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=120"`
	Code     string `json:"code" binding:"required,min=2,max=20,alphanum"`
	Timezone string `json:"timezone" binding:"omitempty,max=64"`
}

// TenantScope identifies the rows a request may touch. It is extracted from
// the JWT claims by middleware and threaded through repositories.
type TenantScope struct {
	DistrictID int
	SchoolID   int
}
