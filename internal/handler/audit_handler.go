package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
)

// AuditHandler serves the school's audit trail for compliance reviews.
type AuditHandler struct {
	auditService *service.AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// ListAuditEvents godoc
// GET /api/v1/staff/audit
// Filters the trail by entity type, action, and time window. Dates are
// RFC 3339 timestamps.
func (h *AuditHandler) ListAuditEvents(c *gin.Context) {
	scope := middleware.GetScope(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	entityType := c.Query("entity_type")
	action := c.Query("action")

	var from, to *time.Time
	if fromStr := c.Query("from"); fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		from = &t
	}
	if toStr := c.Query("to"); toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		to = &t
	}

	events, total, err := h.auditService.List(c.Request.Context(), scope, entityType, action, from, to, perPage, (page-1)*perPage)
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

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"events": events}, pagination)
}
