package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ttms-api/internal/dto"
	"github.com/noah-isme/ttms-api/internal/models"
	"github.com/noah-isme/ttms-api/internal/timetable"
	appErrors "github.com/noah-isme/ttms-api/pkg/errors"
	"github.com/noah-isme/ttms-api/pkg/export"
)

const defaultCalendarWeeks = 16

var csvHeaders = []string{"year", "course", "semester", "day", "period", "start", "end", "subject_code", "subject_name", "staff", "room"}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type gridRenderer interface {
	Render(sheets []export.GridSheet) ([]byte, error)
}

type calendarRenderer interface {
	Render(name string, events []export.CalendarEvent) ([]byte, error)
}

// TimetableExportRenderers groups the output encoders. Nil members get defaults.
type TimetableExportRenderers struct {
	CSV      csvRenderer
	PDF      gridRenderer
	XLSX     gridRenderer
	Calendar calendarRenderer
}

// TimetableExportService renders stored timetables as downloadable files.
type TimetableExportService struct {
	rows      timetableRowReader
	periods   periodReader
	staff     staffReader
	renderers TimetableExportRenderers
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewTimetableExportService constructs the export service.
func NewTimetableExportService(rows timetableRowReader, periods periodReader, staff staffReader, renderers TimetableExportRenderers, validate *validator.Validate, logger *zap.Logger) *TimetableExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderers.CSV == nil {
		renderers.CSV = export.NewCSVExporter()
	}
	if renderers.PDF == nil {
		renderers.PDF = export.NewPDFExporter()
	}
	if renderers.XLSX == nil {
		renderers.XLSX = export.NewXLSXExporter()
	}
	if renderers.Calendar == nil {
		renderers.Calendar = export.NewICSExporter()
	}
	return &TimetableExportService{
		rows:      rows,
		periods:   periods,
		staff:     staff,
		renderers: renderers,
		validator: validate,
		logger:    logger,
		location:  time.Local,
		now:       time.Now,
	}
}

// Export renders the timetables matching query in the requested format.
func (s *TimetableExportService) Export(ctx context.Context, query dto.ExportQuery) (*dto.ExportFile, error) {
	query.Format = strings.ToLower(strings.TrimSpace(query.Format))
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}

	rows, err := s.rows.ListGridRows(ctx, models.TimetableFilter{Year: query.Year, CourseID: query.CourseID, Semester: query.Semester})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no timetable entries match the export filter")
	}

	base := exportBaseName(query)
	file := &dto.ExportFile{}
	switch query.Format {
	case "csv":
		file.Body, err = s.renderers.CSV.Render(csvDataset(rows))
		file.Filename, file.ContentType = base+".csv", "text/csv"
	case "pdf", "xlsx":
		periods, perr := s.periods.ListPeriods(ctx)
		if perr != nil {
			return nil, appErrors.Wrap(perr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
		}
		sheets := gridSheets(rows, periods)
		if query.Format == "pdf" {
			file.Body, err = s.renderers.PDF.Render(sheets)
			file.Filename, file.ContentType = base+".pdf", "application/pdf"
		} else {
			file.Body, err = s.renderers.XLSX.Render(sheets)
			file.Filename, file.ContentType = base+".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("timetable exported", zap.String("format", query.Format), zap.Int("entries", len(rows)), zap.Int("bytes", len(file.Body)))
	return file, nil
}

// StaffCalendar renders a staff member's week as recurring iCalendar events,
// starting on the Monday of the week containing query.From.
func (s *TimetableExportService) StaffCalendar(ctx context.Context, staffID string, query dto.CalendarQuery) (*dto.ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar query")
	}

	staff, err := s.staff.FindByID(ctx, staffID)
	if err != nil {
		return nil, notFoundOrInternal(err, "staff not found", "failed to load staff")
	}

	anchor := s.now().In(s.location)
	if query.From != "" {
		anchor, _ = time.ParseInLocation("2006-01-02", query.From, s.location)
	}
	monday := weekStart(anchor)
	weeks := query.Weeks
	if weeks <= 0 {
		weeks = defaultCalendarWeeks
	}
	until := monday.AddDate(0, 0, 7*weeks)

	rows, err := s.rows.ListGridRows(ctx, models.TimetableFilter{StaffID: staffID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	events := make([]export.CalendarEvent, 0, len(rows))
	for _, row := range rows {
		idx := timetable.DayIndex(timetable.Day(row.Day))
		if idx < 0 {
			continue
		}
		day := monday.AddDate(0, 0, idx)
		start, serr := clockOn(day, row.StartTime)
		end, eerr := clockOn(day, row.EndTime)
		if serr != nil || eerr != nil {
			s.logger.Warn("skipping entry with unreadable period times", zap.String("entry_id", row.EntryID))
			continue
		}
		course := row.CourseName
		if course == "" {
			course = row.CourseID
		}
		events = append(events, export.CalendarEvent{
			UID:         row.EntryID + "@ttms",
			Summary:     fmt.Sprintf("%s %s", row.SubjectCode, row.SubjectName),
			Location:    row.RoomNo,
			Description: fmt.Sprintf("Year %s %s, semester %s", row.Year, course, row.Semester),
			Start:       start,
			End:         end,
			Weekly:      true,
			Until:       until,
		})
	}

	body, err := s.renderers.Calendar.Render(staff.Name+" timetable", events)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("timetable-%s.ics", staff.ID),
		ContentType: "text/calendar",
		Body:        body,
	}, nil
}

func exportBaseName(query dto.ExportQuery) string {
	parts := []string{"timetable"}
	for _, p := range []string{query.Year, query.CourseID, query.Semester} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

func csvDataset(rows []models.TimetableGridRow) export.Dataset {
	data := export.Dataset{Headers: csvHeaders}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"year":         row.Year,
			"course":       row.CourseName,
			"semester":     row.Semester,
			"day":          row.Day,
			"period":       fmt.Sprintf("%d", row.PeriodNo),
			"start":        row.StartTime,
			"end":          row.EndTime,
			"subject_code": row.SubjectCode,
			"subject_name": row.SubjectName,
			"staff":        row.StaffName,
			"room":         row.RoomNo,
		})
	}
	return data
}

func gridSheets(rows []models.TimetableGridRow, periods []models.Period) []export.GridSheet {
	core := make([]timetable.Period, 0, len(periods))
	for _, p := range periods {
		core = append(core, timetable.Period{ID: p.ID, No: p.PeriodNo})
	}
	timetable.SortPeriods(core)
	times := make(map[int]models.Period, len(periods))
	for _, p := range periods {
		times[p.PeriodNo] = p
	}
	columns := make([]string, 0, len(core))
	for _, p := range core {
		col := fmt.Sprintf("P%d", p.No)
		if t, ok := times[p.No]; ok && t.StartTime != "" {
			col = fmt.Sprintf("P%d %s-%s", p.No, shortClock(t.StartTime), shortClock(t.EndTime))
		}
		columns = append(columns, col)
	}

	var sheets []export.GridSheet
	for _, group := range groupByCohort(rows) {
		first := group[0]
		course := first.CourseName
		if course == "" {
			course = first.CourseID
		}
		grid := timetable.Project(toCoreRows(group, staffLabel), core)
		sheet := export.GridSheet{
			Title:   fmt.Sprintf("Year %s %s Semester %s", first.Year, course, first.Semester),
			Columns: columns,
		}
		for _, day := range timetable.Weekdays {
			sheet.Rows = append(sheet.Rows, export.GridRow{Label: string(day), Cells: grid[day]})
		}
		sheets = append(sheets, sheet)
	}
	return sheets
}

// weekStart returns midnight of the Monday on or before t.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func clockOn(day time.Time, clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	var parsed time.Time
	var err error
	for _, layout := range []string{"15:04:05", "15:04"} {
		parsed, err = time.Parse(layout, clock)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), parsed.Second(), 0, day.Location()), nil
}

func shortClock(clock string) string {
	if len(clock) >= 5 {
		return clock[:5]
	}
	return clock
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if isNoRows(err) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
