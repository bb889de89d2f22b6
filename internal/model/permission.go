package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionStudentsRead allows viewing student lists and details.
	PermissionStudentsRead Permission = "students:read"

	// PermissionStudentsWrite allows creating, updating, and soft-deleting students.
	PermissionStudentsWrite Permission = "students:write"

	// PermissionStudentsImport allows bulk roster imports from spreadsheet files.
	PermissionStudentsImport Permission = "students:import"

	// PermissionGuardiansRead allows viewing guardian accounts and links.
	PermissionGuardiansRead Permission = "guardians:read"

	// PermissionGuardiansWrite allows creating guardians and managing student links.
	PermissionGuardiansWrite Permission = "guardians:write"

	// PermissionSectionsRead allows viewing sections and enrollments.
	PermissionSectionsRead Permission = "sections:read"

	// PermissionSectionsWrite allows creating and updating sections and enrollments.
	PermissionSectionsWrite Permission = "sections:write"

	// PermissionGradebookRead allows viewing assignments and grades.
	PermissionGradebookRead Permission = "gradebook:read"

	// PermissionGradebookWrite allows entering and updating grades.
	PermissionGradebookWrite Permission = "gradebook:write"

	// PermissionAttendanceRead allows viewing attendance records and summaries.
	PermissionAttendanceRead Permission = "attendance:read"

	// PermissionAttendanceWrite allows recording attendance.
	PermissionAttendanceWrite Permission = "attendance:write"

	// PermissionMessagesSend allows starting conversations and sending messages.
	PermissionMessagesSend Permission = "messages:send"

	// PermissionAnnouncementsWrite allows creating and publishing announcements.
	PermissionAnnouncementsWrite Permission = "announcements:write"

	// PermissionInterventionsRead allows viewing MTSS intervention plans.
	PermissionInterventionsRead Permission = "interventions:read"

	// PermissionInterventionsWrite allows opening, updating, and resolving plans.
	PermissionInterventionsWrite Permission = "interventions:write"

	// PermissionNotificationsRead allows viewing the school's notification log.
	PermissionNotificationsRead Permission = "notifications:read"

	// PermissionNotificationsRetry allows re-enqueueing dead notifications.
	PermissionNotificationsRetry Permission = "notifications:retry"

	// PermissionStaffRead allows viewing staff accounts.
	PermissionStaffRead Permission = "staff:read"

	// PermissionStaffWrite allows creating, updating, and deleting staff accounts.
	PermissionStaffWrite Permission = "staff:write"

	// PermissionRolesRead allows viewing roles and permissions.
	PermissionRolesRead Permission = "roles:read"

	// PermissionRolesWrite allows creating, updating, and deleting roles.
	PermissionRolesWrite Permission = "roles:write"

	// PermissionSettingsRead allows viewing application settings.
	PermissionSettingsRead Permission = "settings:read"

	// PermissionSettingsWrite allows editing application settings.
	PermissionSettingsWrite Permission = "settings:write"

	// PermissionMediaUpload allows uploading attachment files.
	PermissionMediaUpload Permission = "media:upload"

	// PermissionEventsMonitor allows attaching to the live domain-event feed.
	PermissionEventsMonitor Permission = "events:monitor"

	// PermissionAuditRead allows viewing the school's audit trail.
	PermissionAuditRead Permission = "audit:read"

	// PermissionSchoolsManage allows managing schools and district details.
	PermissionSchoolsManage Permission = "schools:manage"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionStudentsRead,
	PermissionStudentsWrite,
	PermissionStudentsImport,
	PermissionGuardiansRead,
	PermissionGuardiansWrite,
	PermissionSectionsRead,
	PermissionSectionsWrite,
	PermissionGradebookRead,
	PermissionGradebookWrite,
	PermissionAttendanceRead,
	PermissionAttendanceWrite,
	PermissionMessagesSend,
	PermissionAnnouncementsWrite,
	PermissionInterventionsRead,
	PermissionInterventionsWrite,
	PermissionNotificationsRead,
	PermissionNotificationsRetry,
	PermissionStaffRead,
	PermissionStaffWrite,
	PermissionRolesRead,
	PermissionRolesWrite,
	PermissionSettingsRead,
	PermissionSettingsWrite,
	PermissionMediaUpload,
	PermissionEventsMonitor,
	PermissionAuditRead,
	PermissionSchoolsManage,
}
