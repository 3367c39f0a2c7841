package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ttms-api/internal/dto"
	"github.com/noah-isme/ttms-api/internal/models"
	"github.com/noah-isme/ttms-api/internal/timetable"
	appErrors "github.com/noah-isme/ttms-api/pkg/errors"
)

type timetableRowReader interface {
	ListGridRows(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableGridRow, error)
}

type periodReader interface {
	ListPeriods(ctx context.Context) ([]models.Period, error)
}

type staffReader interface {
	FindByID(ctx context.Context, id string) (*models.Staff, error)
}

type gridCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// TimetableViewService serves the read side: cohort grids, the master view and staff schedules.
type TimetableViewService struct {
	rows      timetableRowReader
	periods   periodReader
	staff     staffReader
	cache     gridCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableViewService constructs the read service. cache may be nil.
func NewTimetableViewService(rows timetableRowReader, periods periodReader, staff staffReader, cache gridCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *TimetableViewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableViewService{
		rows:      rows,
		periods:   periods,
		staff:     staff,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// Periods returns the periods ordered by number.
func (s *TimetableViewService) Periods(ctx context.Context) ([]dto.PeriodView, error) {
	periods, err := s.periods.ListPeriods(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}
	views := make([]dto.PeriodView, 0, len(periods))
	for _, p := range periods {
		views = append(views, dto.PeriodView{ID: p.ID, PeriodNo: p.PeriodNo, StartTime: p.StartTime, EndTime: p.EndTime})
	}
	return views, nil
}

// Grid projects the stored timetable of one cohort onto the weekly grid.
func (s *TimetableViewService) Grid(ctx context.Context, query dto.CohortQuery) (*dto.GridResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cohort query")
	}

	key := cohortGridKey(models.Cohort{Year: query.Year, CourseID: query.CourseID, Semester: query.Semester})
	var cached dto.GridResponse
	if hit, _ := s.cacheGet(ctx, key, &cached); hit {
		return &cached, nil
	}

	periods, err := s.Periods(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows.ListGridRows(ctx, models.TimetableFilter{Year: query.Year, CourseID: query.CourseID, Semester: query.Semester})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	resp := &dto.GridResponse{
		Year:     query.Year,
		CourseID: query.CourseID,
		Semester: query.Semester,
		Periods:  periods,
		Days:     dayNames(),
		Grid:     toGridMap(timetable.Project(toCoreRows(rows, staffLabel), toCorePeriods(periods))),
	}
	if len(rows) > 0 {
		resp.CourseName = rows[0].CourseName
	}

	s.cacheSet(ctx, key, resp)
	return resp, nil
}

// Master returns code-only grids for every cohort of year. An empty year or
// "all" covers every year.
func (s *TimetableViewService) Master(ctx context.Context, year string) (*dto.MasterTimetableResponse, error) {
	year = strings.TrimSpace(year)
	if strings.EqualFold(year, "all") {
		year = ""
	}
	if year != "" && !validYear(year) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("year must be one of %s or all", strings.Join(timetable.Years, ", ")))
	}

	label := year
	if label == "" {
		label = "all"
	}
	key := masterGridKey(label)
	var cached dto.MasterTimetableResponse
	if hit, _ := s.cacheGet(ctx, key, &cached); hit {
		return &cached, nil
	}

	periods, err := s.Periods(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows.ListGridRows(ctx, models.TimetableFilter{Year: year})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	corePeriods := toCorePeriods(periods)
	resp := &dto.MasterTimetableResponse{Year: label, Periods: periods, Cohorts: []dto.GridResponse{}}
	for _, group := range groupByCohort(rows) {
		first := group[0]
		resp.Cohorts = append(resp.Cohorts, dto.GridResponse{
			Year:       first.Year,
			CourseID:   first.CourseID,
			CourseName: first.CourseName,
			Semester:   first.Semester,
			Days:       dayNames(),
			Grid:       toGridMap(timetable.ProjectCodes(toCoreRows(group, staffLabel), corePeriods)),
		})
	}

	s.cacheSet(ctx, key, resp)
	return resp, nil
}

// StaffSchedule lists one staff member's classes in day and period order.
func (s *TimetableViewService) StaffSchedule(ctx context.Context, staffID string) (*dto.StaffScheduleResponse, error) {
	staff, err := s.staff.FindByID(ctx, staffID)
	if err != nil {
		return nil, notFoundOrInternal(err, "staff not found", "failed to load staff")
	}

	periods, err := s.Periods(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.rows.ListGridRows(ctx, models.TimetableFilter{StaffID: staffID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	sortRowsByWeek(rows)

	resp := &dto.StaffScheduleResponse{
		StaffID:   staff.ID,
		StaffName: staff.Name,
		Entries:   make([]dto.StaffScheduleEntry, 0, len(rows)),
		Grid:      toGridMap(timetable.Project(toCoreRows(rows, cohortLabel), toCorePeriods(periods))),
	}
	for _, row := range rows {
		resp.Entries = append(resp.Entries, dto.StaffScheduleEntry{
			EntryID:     row.EntryID,
			Day:         row.Day,
			PeriodNo:    row.PeriodNo,
			StartTime:   row.StartTime,
			EndTime:     row.EndTime,
			SubjectCode: row.SubjectCode,
			SubjectName: row.SubjectName,
			RoomNo:      row.RoomNo,
			Year:        row.Year,
			CourseID:    row.CourseID,
			CourseName:  row.CourseName,
			Semester:    row.Semester,
		})
	}
	return resp, nil
}

func (s *TimetableViewService) cacheGet(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return s.cache.Get(ctx, key, dest)
}

func (s *TimetableViewService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Debug("grid cache write skipped", zap.String("key", key), zap.Error(err))
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func validYear(year string) bool {
	for _, y := range timetable.Years {
		if y == year {
			return true
		}
	}
	return false
}

func dayNames() []string {
	names := make([]string, 0, len(timetable.Weekdays))
	for _, d := range timetable.Weekdays {
		names = append(names, string(d))
	}
	return names
}

func staffLabel(row models.TimetableGridRow) string {
	return row.StaffName
}

func cohortLabel(row models.TimetableGridRow) string {
	course := row.CourseName
	if course == "" {
		course = row.CourseID
	}
	return fmt.Sprintf("%s %s, %s", row.Year, course, row.RoomNo)
}

func toCoreRows(rows []models.TimetableGridRow, who func(models.TimetableGridRow) string) []timetable.GridRow {
	out := make([]timetable.GridRow, 0, len(rows))
	for _, row := range rows {
		day, ok := timetable.ParseDay(row.Day)
		if !ok {
			continue
		}
		out = append(out, timetable.GridRow{
			Day:         day,
			PeriodNo:    row.PeriodNo,
			SubjectCode: row.SubjectCode,
			SubjectName: row.SubjectName,
			StaffName:   who(row),
		})
	}
	return out
}

func toCorePeriods(periods []dto.PeriodView) []timetable.Period {
	out := make([]timetable.Period, 0, len(periods))
	for _, p := range periods {
		out = append(out, timetable.Period{ID: p.ID, No: p.PeriodNo})
	}
	return out
}

func toGridMap(grid timetable.DisplayGrid) map[string][]string {
	out := make(map[string][]string, len(grid))
	for day, cells := range grid {
		out[string(day)] = cells
	}
	return out
}

// groupByCohort splits rows into consecutive cohort runs, keeping query order.
func groupByCohort(rows []models.TimetableGridRow) [][]models.TimetableGridRow {
	var groups [][]models.TimetableGridRow
	index := make(map[models.Cohort]int)
	for _, row := range rows {
		key := models.Cohort{Year: row.Year, CourseID: row.CourseID, Semester: row.Semester}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], row)
	}
	return groups
}

func sortRowsByWeek(rows []models.TimetableGridRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := timetable.DayIndex(timetable.Day(rows[i].Day)), timetable.DayIndex(timetable.Day(rows[j].Day))
		if di != dj {
			return di < dj
		}
		return rows[i].PeriodNo < rows[j].PeriodNo
	})
}
