package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StudentHandler handles staff-facing roster endpoints.
type StudentHandler struct {
	studentService  *service.StudentService
	guardianService *service.GuardianService
	gradeService    *service.GradebookService
	publisher       *event.Publisher
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(
	studentService *service.StudentService,
	guardianService *service.GuardianService,
	gradeService *service.GradebookService,
	publisher *event.Publisher,
) *StudentHandler {
	return &StudentHandler{
		studentService:  studentService,
		guardianService: guardianService,
		gradeService:    gradeService,
		publisher:       publisher,
	}
}

// ListStudents godoc
// GET /api/v1/staff/students
// Lists active students at the caller's school with pagination.
func (h *StudentHandler) ListStudents(c *gin.Context) {
	scope := middleware.GetScope(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	search := c.Query("search")

	var gradeLevel *int
	if glStr := c.Query("grade_level"); glStr != "" {
		gl, err := strconv.Atoi(glStr)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		gradeLevel = &gl
	}

	students, total, err := h.studentService.ListStudents(c.Request.Context(), scope, gradeLevel, search, perPage, (page-1)*perPage)
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

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": students}, pagination)
}

// GetStudent godoc
// GET /api/v1/staff/students/:id
// Returns one student record. The view is audited.
func (h *StudentHandler) GetStudent(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	student, err := h.studentService.GetStudent(c.Request.Context(), scope, id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	auditAction(c, h.publisher, "student.view", "student", strconv.Itoa(student.ID), nil)

	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// CreateStudent godoc
// POST /api/v1/staff/students
// Creates a student record at the caller's school.
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	scope := middleware.GetScope(c)

	var req model.CreateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.studentService.CreateStudent(c.Request.Context(), scope, &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateStudentNumber) {
			response.Fail(c, http.StatusConflict, response.ErrDuplicateStudentNumber)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "student.create", "student", strconv.Itoa(student.ID), req)

	response.Success(c, http.StatusCreated, gin.H{"student": student})
}

// UpdateStudent godoc
// PUT /api/v1/staff/students/:id
// Updates a student record.
func (h *StudentHandler) UpdateStudent(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.studentService.UpdateStudent(c.Request.Context(), scope, id, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "student.update", "student", strconv.Itoa(id), req)

	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// DeleteStudent godoc
// DELETE /api/v1/staff/students/:id
// Soft-deletes a student. History stays queryable for the audit trail.
func (h *StudentHandler) DeleteStudent(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.studentService.DeleteStudent(c.Request.Context(), scope, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "student.delete", "student", strconv.Itoa(id), nil)

	response.Success(c, http.StatusOK, gin.H{"message": "student deleted successfully"})
}

// RestoreStudent godoc
// POST /api/v1/staff/students/:id/restore
// Undoes a soft delete. 404 when no deleted student matches.
func (h *StudentHandler) RestoreStudent(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	student, err := h.studentService.RestoreStudent(c.Request.Context(), scope, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "student.restore", "student", strconv.Itoa(id), nil)

	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// ImportRoster godoc
// POST /api/v1/staff/students/import
// Bulk-imports students from an uploaded .xlsx roster. Rows that fail
// validation are reported back; the rest are upserted by student number.
func (h *StudentHandler) ImportRoster(c *gin.Context) {
	scope := middleware.GetScope(c)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	result, err := h.studentService.ImportRoster(c.Request.Context(), scope, file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptySpreadsheet), errors.Is(err, service.ErrTooManyRows):
			response.Fail(c, http.StatusBadRequest, response.ErrImportFailed)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "roster.import", "roster", "", gin.H{
		"created": result.Created,
		"updated": result.Updated,
		"skipped": result.Skipped,
	})

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ExportRoster godoc
// GET /api/v1/staff/students/export
// Streams the school's active roster as an .xlsx download.
func (h *StudentHandler) ExportRoster(c *gin.Context) {
	scope := middleware.GetScope(c)

	auditAction(c, h.publisher, "roster.export", "roster", "", nil)

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", `attachment; filename="roster.xlsx"`)

	if err := h.studentService.ExportRoster(c.Request.Context(), scope, c.Writer); err != nil {
		// Headers are already out; nothing more useful to send.
		c.Status(http.StatusInternalServerError)
		return
	}
}

// ListStudentGuardians godoc
// GET /api/v1/staff/students/:id/guardians
// Lists the guardians linked to a student.
func (h *StudentHandler) ListStudentGuardians(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	guardians, err := h.guardianService.ListByStudent(c.Request.Context(), scope, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"guardians": guardians})
}

// GetStudentGrades godoc
// GET /api/v1/staff/students/:id/grades
// Returns the student's per-section standings across their schedule.
func (h *StudentHandler) GetStudentGrades(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Verify the student exists in scope before exposing summaries.
	if _, err := h.studentService.GetStudent(c.Request.Context(), scope, id); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	summaries, err := h.gradeService.StudentSummaries(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "student.grades.view", "student", strconv.Itoa(id), nil)

	response.Success(c, http.StatusOK, gin.H{"summaries": summaries})
}
