package model

import (
	"encoding/json"
	"time"
)

// AuditEvent is an append-only log row recording who touched what.
// Rows are written in bulk by the audit worker, never updated.
type AuditEvent struct {
	ID         int64           `json:"id"`
	DistrictID int             `json:"district_id"`
	SchoolID   int             `json:"school_id"`
	ActorKind  string          `json:"actor_kind"`
	ActorID    int             `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
