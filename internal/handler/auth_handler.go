package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/validator"
)

// AuthHandler handles staff and guardian authentication endpoints.
type AuthHandler struct {
	authService     *service.AuthService
	staffService    *service.StaffService
	guardianService *service.GuardianService
	publisher       *event.Publisher
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	authService *service.AuthService,
	staffService *service.StaffService,
	guardianService *service.GuardianService,
	publisher *event.Publisher,
) *AuthHandler {
	return &AuthHandler{
		authService:     authService,
		staffService:    staffService,
		guardianService: guardianService,
		publisher:       publisher,
	}
}

// StaffLogin godoc
// POST /api/v1/auth/staff/login
// Validates email + password, returns JWT with the role's permissions.
func (h *AuthHandler) StaffLogin(c *gin.Context) {
	var req model.StaffLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	staff, err := h.staffService.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if !staff.IsActive {
		response.Fail(c, http.StatusUnauthorized, response.ErrAccountDeactivated)
		return
	}

	if err := h.authService.CheckPassword(staff.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	permissions, err := h.staffService.GetPermissions(c.Request.Context(), staff.RoleID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	token, expiresAt, err := h.authService.GenerateStaffToken(staff, permissions)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.staffService.TouchLastLogin(c.Request.Context(), staff.ID)
	h.publisher.Audit(c.Request.Context(), model.TenantScope{DistrictID: staff.DistrictID, SchoolID: staff.SchoolID},
		"staff", staff.ID, "auth.login", "staff", strconv.Itoa(staff.ID), nil)

	response.Success(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"staff": gin.H{
			"id":         staff.ID,
			"email":      staff.Email,
			"first_name": staff.FirstName,
			"last_name":  staff.LastName,
			"school_id":  staff.SchoolID,
			"role_id":    staff.RoleID,
			"role_name":  staff.RoleName,
		},
		"permissions": permissions,
	})
}

// GuardianLogin godoc
// POST /api/v1/auth/guardian/login
// Validates email + password for an activated guardian, returns JWT.
func (h *AuthHandler) GuardianLogin(c *gin.Context) {
	var req model.GuardianLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	guardian, err := h.guardianService.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if !guardian.IsActivated {
		response.Fail(c, http.StatusUnauthorized, response.ErrAccountNotActivated)
		return
	}

	if err := h.authService.CheckPassword(guardian.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, expiresAt, err := h.authService.GenerateGuardianToken(guardian)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.guardianService.TouchLastLogin(c.Request.Context(), guardian.ID)
	h.publisher.Audit(c.Request.Context(), model.TenantScope{DistrictID: guardian.DistrictID},
		"guardian", guardian.ID, "auth.login", "guardian", strconv.Itoa(guardian.ID), nil)

	response.Success(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"guardian":   guardian,
	})
}

// GuardianActivate godoc
// POST /api/v1/auth/guardian/activate
// Consumes an invite token, sets the password, and logs the guardian in.
func (h *AuthHandler) GuardianActivate(c *gin.Context) {
	var req model.GuardianActivateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	guardian, err := h.guardianService.Activate(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInvite) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidInviteToken)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	token, expiresAt, err := h.authService.GenerateGuardianToken(guardian)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.guardianService.TouchLastLogin(c.Request.Context(), guardian.ID)
	h.publisher.Audit(c.Request.Context(), model.TenantScope{DistrictID: guardian.DistrictID},
		"guardian", guardian.ID, "guardian.activate", "guardian", strconv.Itoa(guardian.ID), nil)

	response.Success(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"guardian":   guardian,
	})
}

// StaffProfile godoc
// GET /api/v1/auth/staff/me
// Returns the profile of the currently authenticated staff member.
func (h *AuthHandler) StaffProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	staff, err := h.staffService.GetByID(c.Request.Context(), claims.DistrictID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	permissions, err := h.staffService.GetPermissions(c.Request.Context(), staff.RoleID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"staff":       staff,
		"permissions": permissions,
	})
}

// GuardianProfile godoc
// GET /api/v1/auth/guardian/me
// Returns the authenticated guardian's profile and linked children.
func (h *AuthHandler) GuardianProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	guardian, err := h.guardianService.Get(c.Request.Context(), claims.Scope(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	children, err := h.guardianService.ListChildren(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"guardian": guardian,
		"children": children,
	})
}
