package handler

import (
	"errors"
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

// AttendanceHandler handles daily attendance endpoints.
type AttendanceHandler struct {
	attendanceService *service.AttendanceService
	studentService    *service.StudentService
	publisher         *event.Publisher
}

// NewAttendanceHandler creates a new AttendanceHandler.
func NewAttendanceHandler(
	attendanceService *service.AttendanceService,
	studentService *service.StudentService,
	publisher *event.Publisher,
) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService: attendanceService,
		studentService:    studentService,
		publisher:         publisher,
	}
}

// RecordAttendance godoc
// POST /api/v1/staff/sections/:id/attendance
// Records attendance marks for a section and date. Re-submitting the
// same date overwrites the earlier marks.
func (h *AttendanceHandler) RecordAttendance(c *gin.Context) {
	claims := middleware.GetClaims(c)
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RecordAttendanceRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	records, err := h.attendanceService.RecordAttendance(c.Request.Context(), scope, sectionID, claims.UserID, &req)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrAttendanceInFuture), errors.Is(err, service.ErrAttendanceTooOld):
			response.Fail(c, http.StatusBadRequest, response.ErrAttendanceDateInvalid)
		case errors.Is(err, service.ErrStudentNotEnrolled):
			response.Fail(c, http.StatusBadRequest, response.ErrStudentNotEnrolled)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "attendance.record", "section", strconv.Itoa(sectionID), gin.H{
		"date":    req.Date,
		"entries": len(req.Entries),
	})

	response.Success(c, http.StatusOK, gin.H{"records": records})
}

// ListSectionAttendance godoc
// GET /api/v1/staff/sections/:id/attendance?date=YYYY-MM-DD
// Lists the section's marks for one date. Defaults to today.
func (h *AttendanceHandler) ListSectionAttendance(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	dateStr := c.DefaultQuery("date", time.Now().UTC().Format("2006-01-02"))
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrAttendanceDateInvalid)
		return
	}

	records, err := h.attendanceService.ListForSectionDate(c.Request.Context(), scope, sectionID, date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"records": records, "date": dateStr})
}

// StudentAttendance godoc
// GET /api/v1/staff/students/:id/attendance?from=&to=
// Returns a student's marks and summary over a date range. The range
// defaults to the last 30 days.
func (h *AttendanceHandler) StudentAttendance(c *gin.Context) {
	scope := middleware.GetScope(c)

	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Verify the student exists in scope before exposing records.
	if _, err := h.studentService.GetStudent(c.Request.Context(), scope, studentID); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
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

	auditAction(c, h.publisher, "student.attendance.view", "student", strconv.Itoa(studentID), nil)

	response.Success(c, http.StatusOK, gin.H{
		"records": records,
		"summary": summary,
	})
}

// SchoolDailySummary godoc
// GET /api/v1/staff/attendance/summary?date=YYYY-MM-DD
// Returns the school-wide attendance picture for one date, absentee
// list included. Defaults to today.
func (h *AttendanceHandler) SchoolDailySummary(c *gin.Context) {
	scope := middleware.GetScope(c)

	dateStr := c.DefaultQuery("date", time.Now().UTC().Format("2006-01-02"))
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrAttendanceDateInvalid)
		return
	}

	summary, err := h.attendanceService.SchoolDailySummary(c.Request.Context(), scope, date)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"summary": summary})
}

// parseDateRange reads from/to query params, defaulting to the last 30
// days ending today.
func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	from := now.AddDate(0, 0, -30)
	to := now

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if toStr := c.Query("to"); toStr != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	return from, to, nil
}
