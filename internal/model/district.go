package model

import "time"

// District is the tenant root. Every row in the system is scoped to one.
type District struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateDistrictRequest is the payload for creating a new district.
type CreateDistrictRequest struct {
	Name string `json:"name" binding:"required,min=2,max=120"`
	Code string `json:"code" binding:"required,min=2,max=20,alphanum"`
}
