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

// SchoolHandler handles district and campus administration.
type SchoolHandler struct {
	schoolService *service.SchoolService
	publisher     *event.Publisher
}

// NewSchoolHandler creates a new SchoolHandler.
func NewSchoolHandler(schoolService *service.SchoolService, publisher *event.Publisher) *SchoolHandler {
	return &SchoolHandler{
		schoolService: schoolService,
		publisher:     publisher,
	}
}

// GetDistrict godoc
// GET /api/v1/staff/district
func (h *SchoolHandler) GetDistrict(c *gin.Context) {
	claims := middleware.GetClaims(c)

	district, err := h.schoolService.GetDistrict(c.Request.Context(), claims.DistrictID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"district": district})
}

// ListSchools godoc
// GET /api/v1/staff/schools
func (h *SchoolHandler) ListSchools(c *gin.Context) {
	claims := middleware.GetClaims(c)

	schools, err := h.schoolService.List(c.Request.Context(), claims.DistrictID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"schools": schools})
}

// GetSchool godoc
// GET /api/v1/staff/schools/:id
func (h *SchoolHandler) GetSchool(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	school, err := h.schoolService.Get(c.Request.Context(), claims.DistrictID, id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"school": school})
}

// CreateSchool godoc
// POST /api/v1/staff/schools
func (h *SchoolHandler) CreateSchool(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateSchoolRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	school, err := h.schoolService.Create(c.Request.Context(), claims.DistrictID, &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSchoolCode) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	auditAction(c, h.publisher, "school.create", "school", strconv.Itoa(school.ID), gin.H{"code": school.Code})

	response.Success(c, http.StatusCreated, gin.H{"school": school})
}

// UpdateSchool godoc
// PUT /api/v1/staff/schools/:id
func (h *SchoolHandler) UpdateSchool(c *gin.Context) {
	claims := middleware.GetClaims(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CreateSchoolRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	school, err := h.schoolService.Update(c.Request.Context(), claims.DistrictID, id, &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateSchoolCode):
			response.Fail(c, http.StatusConflict, response.ErrConflict)
		case errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	auditAction(c, h.publisher, "school.update", "school", strconv.Itoa(school.ID), gin.H{"code": school.Code})

	response.Success(c, http.StatusOK, gin.H{"school": school})
}
