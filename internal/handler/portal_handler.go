package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/validator"
)

// PortalHandler serves the guardian portal: linked children and their
// grades, attendance, and support plans. Every child-scoped read
// verifies the guardian-student link before touching student data.
type PortalHandler struct {
	guardianService     *service.GuardianService
	gradebookService    *service.GradebookService
	attendanceService   *service.AttendanceService
	interventionService *service.InterventionService
	announcementService *service.AnnouncementService
	notificationService *service.NotificationService
	publisher           *event.Publisher
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(
	guardianService *service.GuardianService,
	gradebookService *service.GradebookService,
	attendanceService *service.AttendanceService,
	interventionService *service.InterventionService,
	announcementService *service.AnnouncementService,
	notificationService *service.NotificationService,
	publisher *event.Publisher,
) *PortalHandler {
	return &PortalHandler{
		guardianService:     guardianService,
		gradebookService:    gradebookService,
		attendanceService:   attendanceService,
		interventionService: interventionService,
		announcementService: announcementService,
		notificationService: notificationService,
		publisher:           publisher,
	}
}

// authorizeChild validates the :id param names a student linked to the
// caller. Returns the student ID, or 0 after writing the error response.
func (h *PortalHandler) authorizeChild(c *gin.Context) int {
	claims := middleware.GetClaims(c)

	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0
	}

	if err := h.guardianService.AuthorizeChild(c.Request.Context(), claims.UserID, studentID); err != nil {
		if errors.Is(err, service.ErrGuardianNotLinked) {
			response.Fail(c, http.StatusForbidden, response.ErrGuardianNotLinked)
		} else {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return 0
	}
	return studentID
}

// ListChildren godoc
// GET /api/v1/guardian/children
func (h *PortalHandler) ListChildren(c *gin.Context) {
	claims := middleware.GetClaims(c)

	children, err := h.guardianService.ListChildren(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"children": children})
}

// ChildGrades godoc
// GET /api/v1/guardian/children/:id/grades
// Returns the child's standing in every active section.
func (h *PortalHandler) ChildGrades(c *gin.Context) {
	studentID := h.authorizeChild(c)
	if studentID == 0 {
		return
	}

	summaries, err := h.gradebookService.StudentSummaries(c.Request.Context(), studentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "portal.grades.view", "student", strconv.Itoa(studentID), nil)

	response.Success(c, http.StatusOK, gin.H{"sections": summaries})
}

// ChildWork godoc
// GET /api/v1/guardian/children/:id/sections/:section_id/work
// Returns the child's scores on each published assignment in one section.
func (h *PortalHandler) ChildWork(c *gin.Context) {
	studentID := h.authorizeChild(c)
	if studentID == 0 {
		return
	}

	sectionID, err := strconv.Atoi(c.Param("section_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	work, err := h.gradebookService.StudentWork(c.Request.Context(), sectionID, studentID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignments": work})
}

// ChildAttendance godoc
// GET /api/v1/guardian/children/:id/attendance?from=&to=
func (h *PortalHandler) ChildAttendance(c *gin.Context) {
	studentID := h.authorizeChild(c)
	if studentID == 0 {
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrAttendanceDateInvalid)
		return
	}

	records, err := h.attendanceService.ListForStudent(c.Request.Context(), studentID, from, to)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	summary, err := h.attendanceService.StudentSummary(c.Request.Context(), studentID, from, to)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"records": records,
		"summary": summary,
	})
}

// ChildInterventions godoc
// GET /api/v1/guardian/children/:id/interventions
func (h *PortalHandler) ChildInterventions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	studentID := h.authorizeChild(c)
	if studentID == 0 {
		return
	}

	plans, err := h.interventionService.ListForChild(c.Request.Context(), claims.DistrictID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"plans": plans})
}

// ListAnnouncements godoc
// GET /api/v1/guardian/announcements
// Returns published announcements addressed to the guardian's children:
// school-wide posts for their schools plus section posts on their
// schedules.
func (h *PortalHandler) ListAnnouncements(c *gin.Context) {
	claims := middleware.GetClaims(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))

	announcements, total, err := h.announcementService.ListForGuardian(c.Request.Context(), claims.UserID, perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"announcements": announcements}, pagination)
}

// ListNotifications godoc
// GET /api/v1/guardian/notifications
func (h *PortalHandler) ListNotifications(c *gin.Context) {
	claims := middleware.GetClaims(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))

	notifications, total, err := h.notificationService.ListForGuardian(c.Request.Context(), claims.UserID, perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"notifications": notifications}, pagination)
}

// UpdatePreferences godoc
// PUT /api/v1/guardian/preferences
// Channel opt-ins, phone number, and push token.
func (h *PortalHandler) UpdatePreferences(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.UpdateGuardianPrefsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	guardian, err := h.guardianService.UpdatePrefs(c.Request.Context(), claims.DistrictID, claims.UserID, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "guardian.preferences.update", "guardian", strconv.Itoa(guardian.ID), gin.H{
		"notify_email": guardian.NotifyEmail,
		"notify_sms":   guardian.NotifySMS,
		"notify_push":  guardian.NotifyPush,
		"updated_at":   guardian.UpdatedAt.Format(time.RFC3339),
	})

	response.Success(c, http.StatusOK, gin.H{"guardian": guardian})
}
