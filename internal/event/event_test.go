package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/skillcore/skillcore-backend/internal/model"
)

func TestRetryDelayDoublesPerAttempt(t *testing.T) {
	base := 2 * time.Second
	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
	}

	for i, expected := range want {
		attempt := i + 1
		got := RetryDelay(base, attempt)
		if got != expected {
			t.Errorf("attempt %d: expected delay %v, got %v", attempt, expected, got)
		}
	}
}

func TestRetryDelayCapped(t *testing.T) {
	got := RetryDelay(2*time.Second, 40)
	if got != maxRetryDelay {
		t.Errorf("expected capped delay %v, got %v", maxRetryDelay, got)
	}
}

func TestRetryDelayTreatsZeroAttemptAsFirst(t *testing.T) {
	base := 500 * time.Millisecond
	if got := RetryDelay(base, 0); got != base {
		t.Errorf("expected base delay %v for attempt 0, got %v", base, got)
	}
	if got := RetryDelay(base, -3); got != base {
		t.Errorf("expected base delay %v for negative attempt, got %v", base, got)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	scope := model.TenantScope{DistrictID: 3, SchoolID: 17}
	assignmentID := uuid.New()

	env, err := NewEnvelope(TypeGradeUpdated, scope, GradeUpdatedPayload{
		SectionID:    42,
		AssignmentID: assignmentID,
		StudentIDs:   []int{7, 9, 11},
	})
	if err != nil {
		t.Fatalf("failed to build envelope: %v", err)
	}

	if env.ID == uuid.Nil {
		t.Fatal("expected envelope to get a fresh id")
	}
	if env.Attempt != 0 {
		t.Fatalf("expected attempt 0 on a fresh envelope, got %d", env.Attempt)
	}
	if env.DistrictID != 3 || env.SchoolID != 17 {
		t.Fatalf("tenant scope not carried: district=%d school=%d", env.DistrictID, env.SchoolID)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("failed to unmarshal envelope: %v", err)
	}

	if decoded.Type != TypeGradeUpdated {
		t.Errorf("expected type %q, got %q", TypeGradeUpdated, decoded.Type)
	}

	var payload GradeUpdatedPayload
	if err := decoded.Decode(&payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.SectionID != 42 {
		t.Errorf("expected section 42, got %d", payload.SectionID)
	}
	if payload.AssignmentID != assignmentID {
		t.Errorf("assignment id not preserved")
	}
	if len(payload.StudentIDs) != 3 || payload.StudentIDs[1] != 9 {
		t.Errorf("student ids not preserved: %v", payload.StudentIDs)
	}
}

func TestStudentEnrolledReadsAsRosterRecalc(t *testing.T) {
	scope := model.TenantScope{DistrictID: 3, SchoolID: 17}

	// Enrollment events ride the grade recalc queue. The recalc worker
	// decodes them as GradeUpdatedPayload, and the missing student_ids
	// field must read as empty so the whole roster gets recomputed and
	// a re-enrolled student never keeps a stale stored average.
	env, err := NewEnvelope(TypeStudentEnrolled, scope, StudentEnrolledPayload{
		SectionID:  42,
		StudentID:  7,
		CourseName: "Algebra I",
	})
	if err != nil {
		t.Fatalf("failed to build envelope: %v", err)
	}

	var payload GradeUpdatedPayload
	if err := env.Decode(&payload); err != nil {
		t.Fatalf("failed to decode as recalc payload: %v", err)
	}
	if payload.SectionID != 42 {
		t.Errorf("expected section 42, got %d", payload.SectionID)
	}
	if len(payload.StudentIDs) != 0 {
		t.Errorf("expected no student ids, got %v", payload.StudentIDs)
	}
}
