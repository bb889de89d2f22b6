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

// GuardianHandler handles staff-facing guardian account management.
type GuardianHandler struct {
	guardianService *service.GuardianService
	publisher       *event.Publisher
}

// NewGuardianHandler creates a new GuardianHandler.
func NewGuardianHandler(guardianService *service.GuardianService, publisher *event.Publisher) *GuardianHandler {
	return &GuardianHandler{guardianService: guardianService, publisher: publisher}
}

// ListGuardians godoc
// GET /api/v1/staff/guardians
// Lists guardian accounts in the district with optional name/email search.
func (h *GuardianHandler) ListGuardians(c *gin.Context) {
	scope := middleware.GetScope(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	search := c.Query("search")

	guardians, total, err := h.guardianService.List(c.Request.Context(), scope, search, perPage, (page-1)*perPage)
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

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"guardians": guardians}, pagination)
}

// GetGuardian godoc
// GET /api/v1/staff/guardians/:id
// Returns one guardian account.
func (h *GuardianHandler) GetGuardian(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	guardian, err := h.guardianService.Get(c.Request.Context(), scope, id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"guardian": guardian})
}

// CreateGuardian godoc
// POST /api/v1/staff/guardians
// Registers an unactivated guardian and issues an invite token. The
// token is mailed when an email provider is configured and also
// returned here so front-desk staff can hand it over directly.
func (h *GuardianHandler) CreateGuardian(c *gin.Context) {
	scope := middleware.GetScope(c)

	var req model.CreateGuardianRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	guardian, inviteToken, err := h.guardianService.Create(c.Request.Context(), scope, &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateGuardianEmail) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "guardian.create", "guardian", strconv.Itoa(guardian.ID), nil)

	response.Success(c, http.StatusCreated, gin.H{
		"guardian":     guardian,
		"invite_token": inviteToken,
	})
}

// ReinviteGuardian godoc
// POST /api/v1/staff/guardians/:id/reinvite
// Issues a fresh invite token for an unactivated guardian.
func (h *GuardianHandler) ReinviteGuardian(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	inviteToken, err := h.guardianService.Reinvite(c.Request.Context(), scope, id)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrGuardianAlreadyActivated):
			response.Fail(c, http.StatusConflict, response.ErrActionForbidden)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "guardian.reinvite", "guardian", strconv.Itoa(id), nil)

	response.Success(c, http.StatusOK, gin.H{"invite_token": inviteToken})
}

// LinkStudent godoc
// POST /api/v1/staff/guardians/:id/links
// Links a guardian to a student with a relationship label.
func (h *GuardianHandler) LinkStudent(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.LinkGuardianRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.guardianService.Link(c.Request.Context(), scope, id, &req); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, repository.ErrDuplicateGuardianLink):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "guardian.link", "guardian", strconv.Itoa(id), gin.H{
		"student_id":   req.StudentID,
		"relationship": req.Relationship,
	})

	response.Success(c, http.StatusCreated, gin.H{"message": "guardian linked successfully"})
}

// UnlinkStudent godoc
// DELETE /api/v1/staff/guardians/:id/links/:student_id
// Removes a guardian-student link.
func (h *GuardianHandler) UnlinkStudent(c *gin.Context) {
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

	if err := h.guardianService.Unlink(c.Request.Context(), scope, id, studentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "guardian.unlink", "guardian", strconv.Itoa(id), gin.H{
		"student_id": studentID,
	})

	response.Success(c, http.StatusOK, gin.H{"message": "guardian unlinked successfully"})
}
