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
	"github.com/skillcore/skillcore-backend/internal/response"
	"github.com/skillcore/skillcore-backend/internal/service"
	"github.com/skillcore/skillcore-backend/internal/validator"
)

// InterventionHandler handles MTSS plan endpoints for counselors and
// teachers.
type InterventionHandler struct {
	interventionService *service.InterventionService
	publisher           *event.Publisher
}

// NewInterventionHandler creates a new InterventionHandler.
func NewInterventionHandler(interventionService *service.InterventionService, publisher *event.Publisher) *InterventionHandler {
	return &InterventionHandler{
		interventionService: interventionService,
		publisher:           publisher,
	}
}

// ListInterventions godoc
// GET /api/v1/staff/interventions
// Lists the school's plans, filterable by status, tier, and student.
func (h *InterventionHandler) ListInterventions(c *gin.Context) {
	scope := middleware.GetScope(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	status := c.Query("status")

	var tier *int
	if tierStr := c.Query("tier"); tierStr != "" {
		t, err := strconv.Atoi(tierStr)
		if err != nil || t < 1 || t > 3 {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		tier = &t
	}

	var studentID *int
	if sidStr := c.Query("student_id"); sidStr != "" {
		sid, err := strconv.Atoi(sidStr)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		studentID = &sid
	}

	plans, total, err := h.interventionService.List(c.Request.Context(), scope, status, tier, studentID, perPage, (page-1)*perPage)
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

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"interventions": plans}, pagination)
}

// GetIntervention godoc
// GET /api/v1/staff/interventions/:id
// Returns one plan. The view is audited: plans are FERPA records.
func (h *InterventionHandler) GetIntervention(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	plan, err := h.interventionService.Get(c.Request.Context(), scope, id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	auditAction(c, h.publisher, "intervention.view", "intervention_plan", plan.ID.String(), nil)

	response.Success(c, http.StatusOK, gin.H{"intervention": plan})
}

// CreateIntervention godoc
// POST /api/v1/staff/interventions
// Opens a manual plan owned by the caller.
func (h *InterventionHandler) CreateIntervention(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateInterventionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	plan, err := h.interventionService.Create(c.Request.Context(), claims.Scope(), claims.UserID, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The student does not exist at this school.
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "intervention.create", "intervention_plan", plan.ID.String(), gin.H{"student_id": plan.StudentID, "tier": plan.Tier})

	response.Success(c, http.StatusCreated, gin.H{"intervention": plan})
}

// UpdateIntervention godoc
// PUT /api/v1/staff/interventions/:id
// Re-tiers a plan, moves it through its lifecycle, or rewrites the
// summary. Setting status to resolved closes it.
func (h *InterventionHandler) UpdateIntervention(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateInterventionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	plan, err := h.interventionService.Update(c.Request.Context(), scope, id, &req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "intervention.update", "intervention_plan", plan.ID.String(), gin.H{"status": plan.Status, "tier": plan.Tier})

	response.Success(c, http.StatusOK, gin.H{"intervention": plan})
}

// AddInterventionNote godoc
// POST /api/v1/staff/interventions/:id/notes
// Appends a progress-monitoring note to an open plan.
func (h *InterventionHandler) AddInterventionNote(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AddInterventionNoteRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	note, err := h.interventionService.AddNote(c.Request.Context(), claims.Scope(), id, claims.UserID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanResolved):
			response.Fail(c, http.StatusConflict, response.ErrPlanResolved)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "intervention.note.add", "intervention_plan", id.String(), nil)

	response.Success(c, http.StatusCreated, gin.H{"note": note})
}

// ListInterventionNotes godoc
// GET /api/v1/staff/interventions/:id/notes
func (h *InterventionHandler) ListInterventionNotes(c *gin.Context) {
	scope := middleware.GetScope(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	notes, err := h.interventionService.ListNotes(c.Request.Context(), scope, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"notes": notes})
}

// ListStudentInterventions godoc
// GET /api/v1/staff/students/:id/interventions
// Returns a student's full plan history, open and resolved.
func (h *InterventionHandler) ListStudentInterventions(c *gin.Context) {
	scope := middleware.GetScope(c)

	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	plans, err := h.interventionService.ListByStudent(c.Request.Context(), scope, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "student.interventions.view", "student", strconv.Itoa(studentID), nil)

	response.Success(c, http.StatusOK, gin.H{"interventions": plans})
}
