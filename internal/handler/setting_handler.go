package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/validator"
)

// SettingHandler exposes the district tuning knobs: grading scale
// cutoffs and intervention thresholds.
type SettingHandler struct {
	settingService *service.SettingService
	publisher      *event.Publisher
}

// NewSettingHandler creates a new SettingHandler.
func NewSettingHandler(settingService *service.SettingService, publisher *event.Publisher) *SettingHandler {
	return &SettingHandler{
		settingService: settingService,
		publisher:      publisher,
	}
}

// GetAllSettings godoc
// GET /api/v1/staff/settings
func (h *SettingHandler) GetAllSettings(c *gin.Context) {
	claims := middleware.GetClaims(c)

	settings, err := h.settingService.GetAllSettings(c.Request.Context(), claims.DistrictID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"settings": settings})
}

// UpdateSettings godoc
// PUT /api/v1/staff/settings
// Upserts the submitted keys. Workers pick the new thresholds up on
// their next evaluation; nothing is recalculated retroactively.
func (h *SettingHandler) UpdateSettings(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.UpdateSettingsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.settingService.UpdateSettings(c.Request.Context(), claims.DistrictID, req.Settings); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "setting.update", "setting", "district", req.Settings)

	response.Success(c, http.StatusOK, gin.H{"message": "settings updated successfully"})
}
