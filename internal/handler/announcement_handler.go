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
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/validator"
)

// AnnouncementHandler handles staff-side announcement endpoints. The
// guardian-facing feed lives on the portal handler.
type AnnouncementHandler struct {
	announcementService *service.AnnouncementService
	publisher           *event.Publisher
}

// NewAnnouncementHandler creates a new AnnouncementHandler.
func NewAnnouncementHandler(announcementService *service.AnnouncementService, publisher *event.Publisher) *AnnouncementHandler {
	return &AnnouncementHandler{
		announcementService: announcementService,
		publisher:           publisher,
	}
}

// ListAnnouncements godoc
// GET /api/v1/staff/announcements
// Lists the school's announcements, drafts included on request.
func (h *AnnouncementHandler) ListAnnouncements(c *gin.Context) {
	scope := middleware.GetScope(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	includeDrafts := c.Query("include_drafts") == "true"

	announcements, total, err := h.announcementService.List(c.Request.Context(), scope, includeDrafts, perPage, (page-1)*perPage)
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

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"announcements": announcements}, pagination)
}

// GetAnnouncement godoc
// GET /api/v1/staff/announcements/:id
func (h *AnnouncementHandler) GetAnnouncement(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	announcement, err := h.announcementService.Get(c.Request.Context(), scope, id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"announcement": announcement})
}

// CreateAnnouncement godoc
// POST /api/v1/staff/announcements
// Creates a draft, school-wide or scoped to one section.
func (h *AnnouncementHandler) CreateAnnouncement(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateAnnouncementRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	announcement, err := h.announcementService.Create(c.Request.Context(), claims.Scope(), claims.UserID, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The target section does not exist at this school.
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "announcement.create", "announcement", announcement.ID.String(), gin.H{"title": announcement.Title})

	response.Success(c, http.StatusCreated, gin.H{"announcement": announcement})
}

// UpdateAnnouncement godoc
// PUT /api/v1/staff/announcements/:id
// Edits a draft. Published announcements are immutable.
func (h *AnnouncementHandler) UpdateAnnouncement(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateAnnouncementRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	announcement, err := h.announcementService.Update(c.Request.Context(), scope, id, &req)
	if err != nil {
		h.failAnnouncementError(c, err)
		return
	}

	auditAction(c, h.publisher, "announcement.update", "announcement", announcement.ID.String(), nil)

	response.Success(c, http.StatusOK, gin.H{"announcement": announcement})
}

// PublishAnnouncement godoc
// POST /api/v1/staff/announcements/:id/publish
// Flips a draft live and queues the guardian notification fan-out.
func (h *AnnouncementHandler) PublishAnnouncement(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	announcement, err := h.announcementService.Publish(c.Request.Context(), scope, id)
	if err != nil {
		h.failAnnouncementError(c, err)
		return
	}

	auditAction(c, h.publisher, "announcement.publish", "announcement", announcement.ID.String(), gin.H{"title": announcement.Title})

	response.Success(c, http.StatusOK, gin.H{"announcement": announcement})
}

// DeleteAnnouncement godoc
// DELETE /api/v1/staff/announcements/:id
// Removes a draft. Published announcements stay on the record.
func (h *AnnouncementHandler) DeleteAnnouncement(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.announcementService.Delete(c.Request.Context(), scope, id); err != nil {
		h.failAnnouncementError(c, err)
		return
	}

	auditAction(c, h.publisher, "announcement.delete", "announcement", id.String(), nil)

	response.Success(c, http.StatusOK, gin.H{"message": "announcement deleted successfully"})
}

// failAnnouncementError maps announcement write failures onto API
// error codes.
func (h *AnnouncementHandler) failAnnouncementError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrAlreadyPublished):
		response.Fail(c, http.StatusConflict, response.ErrAnnouncementPublished)
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
