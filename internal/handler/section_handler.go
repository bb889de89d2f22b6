package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/validator"
)

// SectionHandler handles course section and roster endpoints.
type SectionHandler struct {
	sectionService *service.SectionService
	publisher      *event.Publisher
}

// NewSectionHandler creates a new SectionHandler.
func NewSectionHandler(sectionService *service.SectionService, publisher *event.Publisher) *SectionHandler {
	return &SectionHandler{sectionService: sectionService, publisher: publisher}
}

// ListSections godoc
// GET /api/v1/staff/sections
// Lists active sections at the school, optionally filtered by teacher or term.
func (h *SectionHandler) ListSections(c *gin.Context) {
	scope := middleware.GetScope(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	term := c.Query("term")

	var teacherID *int
	if tidStr := c.Query("teacher_id"); tidStr != "" {
		tid, err := strconv.Atoi(tidStr)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		teacherID = &tid
	}

	sections, total, err := h.sectionService.ListSections(c.Request.Context(), scope, teacherID, term, perPage, (page-1)*perPage)
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

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sections": sections}, pagination)
}

// GetSection godoc
// GET /api/v1/staff/sections/:id
// Returns one section.
func (h *SectionHandler) GetSection(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	section, err := h.sectionService.GetSection(c.Request.Context(), scope, id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"section": section})
}

// CreateSection godoc
// POST /api/v1/staff/sections
// Creates a section taught by a staff member at the caller's school.
func (h *SectionHandler) CreateSection(c *gin.Context) {
	scope := middleware.GetScope(c)

	var req model.CreateSectionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	section, err := h.sectionService.CreateSection(c.Request.Context(), scope, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Teacher lookup failed inside the tenant.
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "section.create", "section", strconv.Itoa(section.ID), req)

	response.Success(c, http.StatusCreated, gin.H{"section": section})
}

// UpdateSection godoc
// PUT /api/v1/staff/sections/:id
// Updates a section, including reassigning its teacher.
func (h *SectionHandler) UpdateSection(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateSectionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	section, err := h.sectionService.UpdateSection(c.Request.Context(), scope, id, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "section.update", "section", strconv.Itoa(id), req)

	response.Success(c, http.StatusOK, gin.H{"section": section})
}

// DeleteSection godoc
// DELETE /api/v1/staff/sections/:id
// Soft-deletes a section. Grades and attendance stay queryable.
func (h *SectionHandler) DeleteSection(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sectionService.DeleteSection(c.Request.Context(), scope, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "section.delete", "section", strconv.Itoa(id), nil)

	response.Success(c, http.StatusOK, gin.H{"message": "section deleted successfully"})
}

// ListRoster godoc
// GET /api/v1/staff/sections/:id/roster
// Lists the section's enrollments with student names and averages.
func (h *SectionHandler) ListRoster(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	roster, err := h.sectionService.ListRoster(c.Request.Context(), scope, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"roster": roster})
}

// ExportRoster godoc
// GET /api/v1/staff/sections/:id/roster/export
// Streams the section roster as an .xlsx download.
func (h *SectionHandler) ExportRoster(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.sectionService.GetSection(c.Request.Context(), scope, id); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	auditAction(c, h.publisher, "section.roster.export", "section", strconv.Itoa(id), nil)

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", `attachment; filename="roster.xlsx"`)

	if err := h.sectionService.ExportRoster(c.Request.Context(), scope, id, c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
}

// EnrollStudent godoc
// POST /api/v1/staff/sections/:id/roster
// Enrolls a student in the section.
func (h *SectionHandler) EnrollStudent(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.EnrollStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	enrollment, err := h.sectionService.EnrollStudent(c.Request.Context(), scope, id, &req)
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, repository.ErrAlreadyEnrolled):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.As(err, &pgErr) && pgErr.Code == "23505":
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "section.enroll", "section", strconv.Itoa(id), gin.H{
		"student_id": req.StudentID,
	})

	response.Success(c, http.StatusCreated, gin.H{"enrollment": enrollment})
}

// UnenrollStudent godoc
// DELETE /api/v1/staff/sections/:id/roster/:student_id
// Removes a student from the section.
func (h *SectionHandler) UnenrollStudent(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sectionService.UnenrollStudent(c.Request.Context(), scope, id, studentID); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, repository.ErrNotEnrolled):
			response.Fail(c, http.StatusNotFound, response.ErrStudentNotEnrolled)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "section.unenroll", "section", strconv.Itoa(id), gin.H{
		"student_id": studentID,
	})

	response.Success(c, http.StatusOK, gin.H{"message": "student unenrolled successfully"})
}
