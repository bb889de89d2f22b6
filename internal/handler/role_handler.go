package handler

import (
	"errors"
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

// RoleHandler handles district RBAC role administration.
type RoleHandler struct {
	roleService *service.RoleService
	publisher   *event.Publisher
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(roleService *service.RoleService, publisher *event.Publisher) *RoleHandler {
	return &RoleHandler{
		roleService: roleService,
		publisher:   publisher,
	}
}

// ListRoles godoc
// GET /api/v1/staff/roles
func (h *RoleHandler) ListRoles(c *gin.Context) {
	claims := middleware.GetClaims(c)

	roles, err := h.roleService.ListRoles(c.Request.Context(), claims.DistrictID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"roles": roles})
}

// GetRole godoc
// GET /api/v1/staff/roles/:id
func (h *RoleHandler) GetRole(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	role, err := h.roleService.GetRole(c.Request.Context(), claims.DistrictID, id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"role": role})
}

// CreateRole godoc
// POST /api/v1/staff/roles
func (h *RoleHandler) CreateRole(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateRoleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	role, err := h.roleService.CreateRole(c.Request.Context(), claims.DistrictID, &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRoleName) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "role.create", "role", strconv.Itoa(role.ID), gin.H{"name": role.Name})

	response.Success(c, http.StatusCreated, gin.H{"role": role})
}

// UpdateRole godoc
// PUT /api/v1/staff/roles/:id
// Replaces the role's name and permission set. Takes effect as staff
// tokens refresh, not instantly.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateRoleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	role, err := h.roleService.UpdateRole(c.Request.Context(), claims.DistrictID, id, &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateRoleName):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "role.update", "role", strconv.Itoa(role.ID), gin.H{"name": role.Name})

	response.Success(c, http.StatusOK, gin.H{"role": role})
}

// DeleteRole godoc
// DELETE /api/v1/staff/roles/:id
// Removes a role nobody holds anymore.
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.roleService.DeleteRole(c.Request.Context(), claims.DistrictID, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrRoleInUse):
			response.Fail(c, http.StatusConflict, response.ErrDependencyExists)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "role.delete", "role", strconv.Itoa(id), nil)

	response.Success(c, http.StatusOK, gin.H{"message": "role deleted successfully"})
}

// ListPermissions godoc
// GET /api/v1/staff/permissions
// Returns the catalog of assignable permission codes.
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"permissions": model.AllPermissions})
}
