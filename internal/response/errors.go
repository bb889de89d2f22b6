package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials  ErrCode = "INVALID_CREDENTIALS"
	ErrAccountNotActivated ErrCode = "ACCOUNT_NOT_ACTIVATED"
	ErrAccountDeactivated  ErrCode = "ACCOUNT_DEACTIVATED"
	ErrInvalidInviteToken  ErrCode = "INVALID_INVITE_TOKEN"
	ErrTokenRequired       ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid        ErrCode = "TOKEN_INVALID"
	ErrTokenExpired        ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrPermissionDenied   ErrCode = "PERMISSION_DENIED"
	ErrStaffAccessOnly    ErrCode = "STAFF_ACCESS_ONLY"
	ErrGuardianAccessOnly ErrCode = "GUARDIAN_ACCESS_ONLY"
	ErrTenantMismatch     ErrCode = "TENANT_MISMATCH"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"
	ErrActionForbidden  ErrCode = "ACTION_FORBIDDEN"

	// ─── Roster ────────────────────────────────────────────────────────
	ErrDuplicateStudentNumber ErrCode = "DUPLICATE_STUDENT_NUMBER"
	ErrStudentNotEnrolled     ErrCode = "STUDENT_NOT_ENROLLED"
	ErrImportFailed           ErrCode = "IMPORT_FAILED"

	// ─── Gradebook ─────────────────────────────────────────────────────
	ErrAssignmentNotPublished ErrCode = "ASSIGNMENT_NOT_PUBLISHED"
	ErrScoreOutOfRange        ErrCode = "SCORE_OUT_OF_RANGE"
	ErrCategoryInUse          ErrCode = "CATEGORY_IN_USE"

	// ─── Attendance ────────────────────────────────────────────────────
	ErrAttendanceDateInvalid ErrCode = "ATTENDANCE_DATE_INVALID"

	// ─── Messaging ─────────────────────────────────────────────────────
	ErrNotParticipant        ErrCode = "NOT_A_PARTICIPANT"
	ErrGuardianNotLinked     ErrCode = "GUARDIAN_NOT_LINKED"
	ErrAnnouncementPublished ErrCode = "ANNOUNCEMENT_ALREADY_PUBLISHED"

	// ─── Interventions ─────────────────────────────────────────────────
	ErrPlanResolved ErrCode = "PLAN_ALREADY_RESOLVED"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrAccountNotActivated:
		return "This account has not been activated yet. Check your invitation email."
	case ErrAccountDeactivated:
		return "This account has been deactivated. Contact your administrator."
	case ErrInvalidInviteToken:
		return "The activation link is invalid or has expired."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrStaffAccessOnly:
		return "This resource is restricted to staff accounts."
	case ErrGuardianAccessOnly:
		return "This resource is restricted to guardian accounts."
	case ErrTenantMismatch:
		return "The requested resource belongs to another school."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please review your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The resource already exists."
	case ErrDependencyExists:
		return "This record cannot be deleted because other records depend on it."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Roster ────────────────────────────────────────────────────────
	case ErrDuplicateStudentNumber:
		return "A student with this student number already exists at this school."
	case ErrStudentNotEnrolled:
		return "The student is not enrolled in this section."
	case ErrImportFailed:
		return "The roster file could not be imported."

	// ─── Gradebook ─────────────────────────────────────────────────────
	case ErrAssignmentNotPublished:
		return "Grades can only be entered for published assignments."
	case ErrScoreOutOfRange:
		return "The score must be between zero and the assignment's maximum points."
	case ErrCategoryInUse:
		return "This category still has assignments attached."

	// ─── Attendance ────────────────────────────────────────────────────
	case ErrAttendanceDateInvalid:
		return "Attendance cannot be recorded for a future date."

	// ─── Messaging ─────────────────────────────────────────────────────
	case ErrNotParticipant:
		return "You are not a participant in this conversation."
	case ErrGuardianNotLinked:
		return "You are not linked to this student."
	case ErrAnnouncementPublished:
		return "This announcement has already been published."

	// ─── Interventions ─────────────────────────────────────────────────
	case ErrPlanResolved:
		return "This intervention plan has already been resolved."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "The file type is not supported."
	case ErrFileTooLarge:
		return "The file exceeds the size limit."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
