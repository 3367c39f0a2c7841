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

type timetableAuditor interface {
	Conflicts(ctx context.Context) (*dto.ConflictReport, error)
	Workload(ctx context.Context) ([]dto.WorkloadView, error)
}

type timetableExporter interface {
	Export(ctx context.Context, query dto.ExportQuery) (*dto.ExportFile, error)
	StaffCalendar(ctx context.Context, staffID string, query dto.CalendarQuery) (*dto.ExportFile, error)
}

// TimetableReportHandler exposes audits and file exports of stored timetables.
type TimetableReportHandler struct {
	auditor  timetableAuditor
	exporter timetableExporter
}

// NewTimetableReportHandler constructs the handler.
func NewTimetableReportHandler(auditor *service.TimetableAuditService, exporter *service.TimetableExportService) *TimetableReportHandler {
	return &TimetableReportHandler{auditor: auditor, exporter: exporter}
}

// Conflicts godoc
// @Summary Audit stored timetables for double bookings
// @Tags Audit
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/audit/conflicts [get]
func (h *TimetableReportHandler) Conflicts(c *gin.Context) {
	report, err := h.auditor.Conflicts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, map[string]interface{}{"conflicts": len(report.Conflicts)})
}

// Workload godoc
// @Summary Staff workload against maximum hours
// @Tags Audit
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/audit/workload [get]
func (h *TimetableReportHandler) Workload(c *gin.Context) {
	rows, err := h.auditor.Workload(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	overloaded := 0
	for _, row := range rows {
		if row.Overloaded {
			overloaded++
		}
	}
	response.JSON(c, http.StatusOK, rows, map[string]interface{}{"overloaded": overloaded})
}

// Export godoc
// @Summary Download timetables as csv, pdf or xlsx
// @Tags Export
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string true "csv, pdf or xlsx"
// @Param year query string false "Year (I-IV)"
// @Param courseId query string false "Course ID"
// @Param semester query string false "Semester"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/export [get]
func (h *TimetableReportHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

// StaffCalendar godoc
// @Summary Download a staff member's weekly classes as an iCalendar feed
// @Tags Export
// @Produce text/calendar
// @Param staffId path string true "Staff ID"
// @Param from query string false "First week anchor (YYYY-MM-DD)"
// @Param weeks query int false "Number of weeks the events repeat (1-52)"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /timetable/staff/{staffId}/calendar.ics [get]
func (h *TimetableReportHandler) StaffCalendar(c *gin.Context) {
	var query dto.CalendarQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar query"))
		return
	}
	file, err := h.exporter.StaffCalendar(c.Request.Context(), c.Param("staffId"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
