package model

import "time"

// Setting is one key/value pair in the per-district settings table.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Well-known settings keys. Values are stored as strings and parsed
// by the services that consume them.
const (
	SettingGradeCutoffA        = "grade_cutoff_a"
	SettingGradeCutoffB        = "grade_cutoff_b"
	SettingGradeCutoffC        = "grade_cutoff_c"
	SettingGradeCutoffD        = "grade_cutoff_d"
	SettingAbsenceStreakLimit  = "absence_streak_limit"
	SettingGradeFloorThreshold = "grade_floor_threshold"
	SettingLowGradeNotifyBelow = "low_grade_notify_below"
)

type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" binding:"required,min=1"`
}
