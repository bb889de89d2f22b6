package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/validator"
)

// GradebookHandler handles grade categories, assignments, and scores
// for a section.
type GradebookHandler struct {
	gradebookService *service.GradebookService
	sectionService   *service.SectionService
	publisher        *event.Publisher
}

// NewGradebookHandler creates a new GradebookHandler.
func NewGradebookHandler(
	gradebookService *service.GradebookService,
	sectionService *service.SectionService,
	publisher *event.Publisher,
) *GradebookHandler {
	return &GradebookHandler{
		gradebookService: gradebookService,
		sectionService:   sectionService,
		publisher:        publisher,
	}
}

// canEditSection reports whether the caller may mutate this section's
// gradebook: its teacher always can, and staff holding sections:write
// (registrars, admins) can fix any gradebook.
func (h *GradebookHandler) canEditSection(c *gin.Context, sectionID int) (bool, error) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return false, nil
	}
	for _, p := range claims.Permissions {
		if p == string(model.PermissionSectionsWrite) {
			return true, nil
		}
	}
	return h.sectionService.IsTaughtBy(c.Request.Context(), sectionID, claims.UserID)
}

// requireEditSection enforces canEditSection, writing the error response
// itself. Returns false when the caller must stop.
func (h *GradebookHandler) requireEditSection(c *gin.Context, sectionID int) bool {
	ok, err := h.canEditSection(c, sectionID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return false
	}
	if !ok {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return false
	}
	return true
}

// ─────────────────────────── Categories ───────────────────────────

// ListCategories godoc
// GET /api/v1/staff/sections/:id/categories
// Lists the section's grade categories and weights.
func (h *GradebookHandler) ListCategories(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	categories, err := h.gradebookService.ListCategories(c.Request.Context(), scope, sectionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"categories": categories})
}

// CreateCategory godoc
// POST /api/v1/staff/sections/:id/categories
// Adds a weighted grade category to the section.
func (h *GradebookHandler) CreateCategory(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if !h.requireEditSection(c, sectionID) {
		return
	}

	var req model.CreateGradeCategoryRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	category, err := h.gradebookService.CreateCategory(c.Request.Context(), scope, sectionID, &req)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrWeightBudgetExceeded):
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		case errors.Is(err, repository.ErrDuplicateCategoryName):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "gradebook.category.create", "section", strconv.Itoa(sectionID), req)

	response.Success(c, http.StatusCreated, gin.H{"category": category})
}

// UpdateCategory godoc
// PUT /api/v1/staff/sections/:id/categories/:category_id
// Renames or reweights a category.
func (h *GradebookHandler) UpdateCategory(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	categoryID, err := strconv.Atoi(c.Param("category_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if !h.requireEditSection(c, sectionID) {
		return
	}

	var req model.UpdateGradeCategoryRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	category, err := h.gradebookService.UpdateCategory(c.Request.Context(), scope, sectionID, categoryID, &req)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows), errors.Is(err, service.ErrCategoryNotInSection):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrWeightBudgetExceeded):
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		case errors.Is(err, repository.ErrDuplicateCategoryName):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "gradebook.category.update", "section", strconv.Itoa(sectionID), req)

	response.Success(c, http.StatusOK, gin.H{"category": category})
}

// DeleteCategory godoc
// DELETE /api/v1/staff/sections/:id/categories/:category_id
// Deletes an empty category. Categories with assignments are refused.
func (h *GradebookHandler) DeleteCategory(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	categoryID, err := strconv.Atoi(c.Param("category_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if !h.requireEditSection(c, sectionID) {
		return
	}

	if err := h.gradebookService.DeleteCategory(c.Request.Context(), scope, sectionID, categoryID); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows), errors.Is(err, service.ErrCategoryNotInSection):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, repository.ErrCategoryInUse):
			response.Fail(c, http.StatusConflict, response.ErrCategoryInUse)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "gradebook.category.delete", "section", strconv.Itoa(sectionID), gin.H{
		"category_id": categoryID,
	})

	response.Success(c, http.StatusOK, gin.H{"message": "category deleted successfully"})
}

// ─────────────────────────── Assignments ───────────────────────────

// ListAssignments godoc
// GET /api/v1/staff/sections/:id/assignments
// Lists the section's assignments, drafts included.
func (h *GradebookHandler) ListAssignments(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	assignments, err := h.gradebookService.ListAssignments(c.Request.Context(), scope, sectionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignments": assignments})
}

// GetAssignment godoc
// GET /api/v1/staff/sections/:id/assignments/:assignment_id
// Returns one assignment.
func (h *GradebookHandler) GetAssignment(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	assignment, err := h.gradebookService.GetAssignment(c.Request.Context(), scope, sectionID, assignmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, service.ErrAssignmentNotInSection) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignment": assignment})
}

// CreateAssignment godoc
// POST /api/v1/staff/sections/:id/assignments
// Creates an assignment in one of the section's categories.
func (h *GradebookHandler) CreateAssignment(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if !h.requireEditSection(c, sectionID) {
		return
	}

	var req model.CreateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignment, err := h.gradebookService.CreateAssignment(c.Request.Context(), scope, sectionID, &req)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrCategoryNotInSection):
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "gradebook.assignment.create", "assignment", assignment.ID.String(), req)

	response.Success(c, http.StatusCreated, gin.H{"assignment": assignment})
}

// UpdateAssignment godoc
// PUT /api/v1/staff/sections/:id/assignments/:assignment_id
// Updates an assignment. Changing points or publish state triggers a
// recalculation of the section's averages.
func (h *GradebookHandler) UpdateAssignment(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if !h.requireEditSection(c, sectionID) {
		return
	}

	var req model.UpdateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignment, err := h.gradebookService.UpdateAssignment(c.Request.Context(), scope, sectionID, assignmentID, &req)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows), errors.Is(err, service.ErrAssignmentNotInSection):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrCategoryNotInSection):
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "gradebook.assignment.update", "assignment", assignmentID.String(), req)

	response.Success(c, http.StatusOK, gin.H{"assignment": assignment})
}

// DeleteAssignment godoc
// DELETE /api/v1/staff/sections/:id/assignments/:assignment_id
// Deletes an assignment and its grades, then recalculates averages.
func (h *GradebookHandler) DeleteAssignment(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if !h.requireEditSection(c, sectionID) {
		return
	}

	if err := h.gradebookService.DeleteAssignment(c.Request.Context(), scope, sectionID, assignmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, service.ErrAssignmentNotInSection) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "gradebook.assignment.delete", "assignment", assignmentID.String(), nil)

	response.Success(c, http.StatusOK, gin.H{"message": "assignment deleted successfully"})
}

// ─────────────────────────── Grades ───────────────────────────

// ListGrades godoc
// GET /api/v1/staff/sections/:id/assignments/:assignment_id/grades
// Lists every enrolled student's grade row for the assignment.
func (h *GradebookHandler) ListGrades(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	grades, err := h.gradebookService.ListGrades(c.Request.Context(), scope, sectionID, assignmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, service.ErrAssignmentNotInSection) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"grades": grades})
}

// UpsertGrade godoc
// PUT /api/v1/staff/sections/:id/assignments/:assignment_id/grades
// Enters or updates one student's score. Saving enqueues an average
// recalculation for that student.
func (h *GradebookHandler) UpsertGrade(c *gin.Context) {
	claims := middleware.GetClaims(c)
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if !h.requireEditSection(c, sectionID) {
		return
	}

	var req model.UpsertGradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	grade, err := h.gradebookService.UpsertGrade(c.Request.Context(), scope, sectionID, assignmentID, claims.UserID, &req)
	if err != nil {
		h.failGradeError(c, err)
		return
	}

	auditAction(c, h.publisher, "gradebook.grade.upsert", "assignment", assignmentID.String(), gin.H{
		"student_id": req.StudentID,
		"score":      req.Score,
		"excused":    req.Excused,
	})

	response.Success(c, http.StatusOK, gin.H{"grade": grade})
}

// BulkUpsertGrades godoc
// POST /api/v1/staff/sections/:id/assignments/:assignment_id/grades/bulk
// Enters a column of scores at once. All rows validate before any row
// is written.
func (h *GradebookHandler) BulkUpsertGrades(c *gin.Context) {
	claims := middleware.GetClaims(c)
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	if !h.requireEditSection(c, sectionID) {
		return
	}

	var req model.BulkGradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	grades, err := h.gradebookService.BulkUpsertGrades(c.Request.Context(), scope, sectionID, assignmentID, claims.UserID, &req)
	if err != nil {
		h.failGradeError(c, err)
		return
	}

	auditAction(c, h.publisher, "gradebook.grade.bulk_upsert", "assignment", assignmentID.String(), gin.H{
		"count": len(req.Grades),
	})

	response.Success(c, http.StatusOK, gin.H{"grades": grades})
}

// failGradeError maps grade entry failures onto API error codes.
func (h *GradebookHandler) failGradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, service.ErrAssignmentNotInSection):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrStudentNotEnrolled):
		response.Fail(c, http.StatusBadRequest, response.ErrStudentNotEnrolled)
	case errors.Is(err, service.ErrScoreExceedsMax):
		response.Fail(c, http.StatusBadRequest, response.ErrScoreOutOfRange)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// ListStandings godoc
// GET /api/v1/staff/sections/:id/standings
// Returns each enrolled student's current average, letter grade, and
// missing-assignment count.
func (h *GradebookHandler) ListStandings(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	standings, err := h.gradebookService.ListStandings(c.Request.Context(), scope, sectionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"standings": standings})
}

// ─────────────────────────── Grid ───────────────────────────

// GetGrid godoc
// GET /api/v1/staff/sections/:id/gradebook
// Returns the full gradebook grid for the section, served from the
// Redis cache when fresh.
func (h *GradebookHandler) GetGrid(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	grid, err := h.gradebookService.Grid(c.Request.Context(), scope, sectionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"gradebook": grid})
}

// ExportGrid godoc
// GET /api/v1/staff/sections/:id/gradebook/export
// Streams the gradebook grid as an .xlsx download.
func (h *GradebookHandler) ExportGrid(c *gin.Context) {
	scope := middleware.GetScope(c)

	sectionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Resolve before the headers go out so a missing section still
	// gets a proper 404 body.
	if _, err := h.sectionService.GetSection(c.Request.Context(), scope, sectionID); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	auditAction(c, h.publisher, "gradebook.export", "section", strconv.Itoa(sectionID), nil)

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", `attachment; filename="gradebook.xlsx"`)

	if err := h.gradebookService.ExportGrid(c.Request.Context(), scope, sectionID, c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
}
