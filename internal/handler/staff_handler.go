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

// StaffHandler handles staff account administration.
type StaffHandler struct {
	staffService *service.StaffService
	publisher    *event.Publisher
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(staffService *service.StaffService, publisher *event.Publisher) *StaffHandler {
	return &StaffHandler{
		staffService: staffService,
		publisher:    publisher,
	}
}

// ListStaff godoc
// GET /api/v1/staff/staff
// Lists the school's staff accounts, filterable by role.
func (h *StaffHandler) ListStaff(c *gin.Context) {
	scope := middleware.GetScope(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))

	var roleID *int
	if ridStr := c.Query("role_id"); ridStr != "" {
		rid, err := strconv.Atoi(ridStr)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		roleID = &rid
	}

	staff, total, err := h.staffService.List(c.Request.Context(), scope, roleID, perPage, (page-1)*perPage)
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

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"staff": staff}, pagination)
}

// GetStaff godoc
// GET /api/v1/staff/staff/:id
func (h *StaffHandler) GetStaff(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	staff, err := h.staffService.GetByID(c.Request.Context(), claims.DistrictID, id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"staff": staff})
}

// CreateStaff godoc
// POST /api/v1/staff/staff
// Creates a staff account at any school in the caller's district.
func (h *StaffHandler) CreateStaff(c *gin.Context) {
	scope := middleware.GetScope(c)

	var req model.CreateStaffRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	staff, err := h.staffService.Create(c.Request.Context(), scope, &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateStaffEmail):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, pgx.ErrNoRows):
			// The role or target school does not exist in this district.
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "staff.create", "staff", strconv.Itoa(staff.ID), gin.H{"email": staff.Email, "role_id": staff.RoleID})

	response.Success(c, http.StatusCreated, gin.H{"staff": staff})
}

// UpdateStaff godoc
// PUT /api/v1/staff/staff/:id
// Updates the name, role, title, or active flag. Deactivation locks
// the account out on their next request, not just their next login.
func (h *StaffHandler) UpdateStaff(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateStaffRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	staff, err := h.staffService.Update(c.Request.Context(), scope, id, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "staff.update", "staff", strconv.Itoa(staff.ID), gin.H{"is_active": staff.IsActive, "role_id": staff.RoleID})

	response.Success(c, http.StatusOK, gin.H{"staff": staff})
}

// ResetStaffPassword godoc
// POST /api/v1/staff/staff/:id/reset-password
// Sets a new password on behalf of the account holder.
func (h *StaffHandler) ResetStaffPassword(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ResetStaffPasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.staffService.ResetPassword(c.Request.Context(), scope, id, req.Password); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "staff.password.reset", "staff", strconv.Itoa(id), nil)

	response.Success(c, http.StatusOK, gin.H{"message": "password reset successfully"})
}

// DeleteStaff godoc
// DELETE /api/v1/staff/staff/:id
// Soft-deletes an account. Staff still teaching sections must be
// unassigned first.
func (h *StaffHandler) DeleteStaff(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.staffService.Delete(c.Request.Context(), claims.DistrictID, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaffHasSections):
			response.Fail(c, http.StatusConflict, response.ErrDependencyExists)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "staff.delete", "staff", strconv.Itoa(id), nil)

	response.Success(c, http.StatusOK, gin.H{"message": "staff member deleted successfully"})
}
