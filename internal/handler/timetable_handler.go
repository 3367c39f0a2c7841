package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ttms-api/internal/dto"
	"github.com/noah-isme/ttms-api/internal/service"
	appErrors "github.com/noah-isme/ttms-api/pkg/errors"
	"github.com/noah-isme/ttms-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Enqueue(ctx context.Context) (*dto.BatchStatusResponse, error)
	BatchStatus(ctx context.Context, id string) (*dto.BatchStatusResponse, error)
}

type timetableViewer interface {
	Grid(ctx context.Context, query dto.CohortQuery) (*dto.GridResponse, error)
	Master(ctx context.Context, year string) (*dto.MasterTimetableResponse, error)
	StaffSchedule(ctx context.Context, staffID string) (*dto.StaffScheduleResponse, error)
	Periods(ctx context.Context) ([]dto.PeriodView, error)
}

// TimetableHandler exposes generation and timetable read endpoints.
type TimetableHandler struct {
	generator timetableGenerator
	viewer    timetableViewer
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generator *service.TimetableGeneratorService, viewer *service.TimetableViewService) *TimetableHandler {
	return &TimetableHandler{generator: generator, viewer: viewer}
}

// Generate godoc
// @Summary Regenerate one cohort timetable
// @Description Replaces every stored entry of the cohort. Subjects that cannot be fully placed are reported as shortfalls.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Cohort to regenerate"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// GenerateAll godoc
// @Summary Queue regeneration of every cohort
// @Tags Timetable
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetable/generate-all [post]
func (h *TimetableHandler) GenerateAll(c *gin.Context) {
	batch, err := h.generator.Enqueue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, batch)
}

// Batch godoc
// @Summary Get generate-all batch status
// @Tags Timetable
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/batches/{id} [get]
func (h *TimetableHandler) Batch(c *gin.Context) {
	batch, err := h.generator.BatchStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch)
}

// Grid godoc
// @Summary Weekly grid of one cohort
// @Tags Timetable
// @Produce json
// @Param year query string true "Year (I-IV)"
// @Param courseId query string true "Course ID"
// @Param semester query string true "Semester"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/grid [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	var query dto.CohortQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grid query"))
		return
	}
	grid, err := h.viewer.Grid(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid)
}

// Master godoc
// @Summary Master timetable with subject codes for every cohort
// @Tags Timetable
// @Produce json
// @Param year query string false "Year (I-IV) or all"
// @Success 200 {object} response.Envelope
// @Router /timetable/master [get]
func (h *TimetableHandler) Master(c *gin.Context) {
	master, err := h.viewer.Master(c.Request.Context(), c.DefaultQuery("year", "all"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, master, map[string]interface{}{"cohorts": len(master.Cohorts)})
}

// StaffSchedule godoc
// @Summary Weekly schedule of one staff member
// @Tags Timetable
// @Produce json
// @Param staffId path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/staff/{staffId} [get]
func (h *TimetableHandler) StaffSchedule(c *gin.Context) {
	schedule, err := h.viewer.StaffSchedule(c.Request.Context(), c.Param("staffId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule)
}

// Periods godoc
// @Summary List teaching periods
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *TimetableHandler) Periods(c *gin.Context) {
	periods, err := h.viewer.Periods(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods)
}
