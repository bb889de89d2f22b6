package service

import (
	"testing"

	"github.com/skillcore/skillcore-backend/internal/model"
)

func TestTierForStreak(t *testing.T) {
	cases := []struct {
		streak int
		limit  int
		want   model.InterventionTier
	}{
		{3, 3, model.TierUniversal},
		{5, 3, model.TierUniversal},
		{6, 3, model.TierTargeted},
		{8, 3, model.TierTargeted},
		{9, 3, model.TierIntensive},
		{20, 3, model.TierIntensive},
		{5, 5, model.TierUniversal},
		{10, 5, model.TierTargeted},
	}
	for _, tc := range cases {
		if got := TierForStreak(tc.streak, tc.limit); got != tc.want {
			t.Errorf("TierForStreak(%d, %d) = %d, want %d", tc.streak, tc.limit, got, tc.want)
		}
	}
}

func TestTierForStreakGuardsBadLimit(t *testing.T) {
	// A corrupted setting must not divide the rules by zero severity.
	if got := TierForStreak(9, 0); got != model.TierIntensive {
		t.Errorf("TierForStreak with zero limit = %d, want intensive via default limit", got)
	}
}

func TestTierForAverage(t *testing.T) {
	cases := []struct {
		average float64
		floor   float64
		want    model.InterventionTier
	}{
		{69, 70, model.TierUniversal},
		{60.1, 70, model.TierUniversal},
		{59, 70, model.TierTargeted},
		{50.1, 70, model.TierTargeted},
		{49, 70, model.TierIntensive},
		{10, 70, model.TierIntensive},
	}
	for _, tc := range cases {
		if got := TierForAverage(tc.average, tc.floor); got != tc.want {
			t.Errorf("TierForAverage(%v, %v) = %d, want %d", tc.average, tc.floor, got, tc.want)
		}
	}
}

func TestRulesFromSettings(t *testing.T) {
	rules := RulesFromSettings(map[string]string{
		"absence_streak_limit":  "5",
		"grade_floor_threshold": "65",
	})
	if rules.AbsenceLimit != 5 {
		t.Errorf("AbsenceLimit = %d, want 5", rules.AbsenceLimit)
	}
	if rules.GradeFloor != 65 {
		t.Errorf("GradeFloor = %v, want 65", rules.GradeFloor)
	}
	if rules.NotifyBelow != DefaultRules.NotifyBelow {
		t.Errorf("NotifyBelow = %v, want default %v", rules.NotifyBelow, DefaultRules.NotifyBelow)
	}
}

func TestRulesFromSettingsRejectsNonPositive(t *testing.T) {
	rules := RulesFromSettings(map[string]string{
		"absence_streak_limit":  "-2",
		"grade_floor_threshold": "0",
	})
	if rules != DefaultRules {
		t.Errorf("non-positive values should fall back to defaults, got %+v", rules)
	}
}
