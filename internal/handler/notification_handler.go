package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillcore/skillcore-backend/internal/event"
	"github.com/skillcore/skillcore-backend/internal/middleware"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
)

// NotificationHandler exposes the school's outbound notification log
// so admins can see what guardians actually received.
type NotificationHandler struct {
	notificationService *service.NotificationService
	publisher           *event.Publisher
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService *service.NotificationService, publisher *event.Publisher) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		publisher:           publisher,
	}
}

// ListNotifications godoc
// GET /api/v1/staff/notifications
// Lists the school's notification log, filterable by status and channel.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	scope := middleware.GetScope(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	status := c.Query("status")
	channel := c.Query("channel")

	notifications, total, err := h.notificationService.List(c.Request.Context(), scope, status, channel, perPage, (page-1)*perPage)
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

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"notifications": notifications}, pagination)
}

// GetNotification godoc
// GET /api/v1/staff/notifications/:id
func (h *NotificationHandler) GetNotification(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	notification, err := h.notificationService.Get(c.Request.Context(), scope, id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"notification": notification})
}

// RetryNotification godoc
// POST /api/v1/staff/notifications/:id/retry
// Re-enqueues a dead notification with a fresh attempt budget.
func (h *NotificationHandler) RetryNotification(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	notification, err := h.notificationService.Retry(c.Request.Context(), scope, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotificationNotDead):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "notification.retry", "notification", notification.ID.String(), nil)

	response.Success(c, http.StatusOK, gin.H{"notification": notification})
}
