package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
)

// DashboardHandler serves the staff landing-page metrics.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboard godoc
// GET /api/v1/staff/dashboard
// Returns the school's headline counters and the MTSS tier breakdown.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	scope := middleware.GetScope(c)

	data, err := h.dashboardService.GetDashboardData(c.Request.Context(), scope)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"dashboard": data})
}
