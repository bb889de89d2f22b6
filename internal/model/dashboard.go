package model

// DashboardSummary is the staff landing-page aggregate for one school.
type DashboardSummary struct {
	StudentCount       int     `json:"student_count"`
	SectionCount       int     `json:"section_count"`
	StaffCount         int     `json:"staff_count"`
	ActivePlanCount    int     `json:"active_plan_count"`
	TodayAbsentCount   int     `json:"today_absent_count"`
	TodayAttendanceRun int     `json:"today_attendance_run"`
	AttendanceRate     float64 `json:"attendance_rate"`
	DeadNotifications  int     `json:"dead_notifications"`
}

// TierBreakdown counts open intervention plans per MTSS tier.
type TierBreakdown struct {
	Tier1 int `json:"tier_1"`
	Tier2 int `json:"tier_2"`
	Tier3 int `json:"tier_3"`
}
