package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/ttms-api/internal/dto"
	"github.com/noah-isme/ttms-api/internal/models"
	"github.com/noah-isme/ttms-api/internal/timetable"
	appErrors "github.com/noah-isme/ttms-api/pkg/errors"
)

type occupancyReader interface {
	ListOccupancy(ctx context.Context, exec sqlx.ExtContext) ([]models.TimetableEntry, error)
}

type workloadReader interface {
	Workload(ctx context.Context) ([]models.StaffWorkload, error)
}

// TimetableAuditService re-checks persisted timetables for double bookings and staff overload.
type TimetableAuditService struct {
	entries          occupancyReader
	workload         workloadReader
	metrics          *MetricsService
	logger           *zap.Logger
	maxPerSubjectDay int
	timeout          time.Duration
	now              func() time.Time
}

// NewTimetableAuditService constructs the audit service.
func NewTimetableAuditService(entries occupancyReader, workload workloadReader, metrics *MetricsService, logger *zap.Logger, maxPerSubjectDay int) *TimetableAuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPerSubjectDay <= 0 {
		maxPerSubjectDay = timetable.DefaultMaxPerSubjectDay
	}
	return &TimetableAuditService{
		entries:          entries,
		workload:         workload,
		metrics:          metrics,
		logger:           logger,
		maxPerSubjectDay: maxPerSubjectDay,
		timeout:          2 * time.Minute,
		now:              time.Now,
	}
}

// Conflicts scans every stored entry for staff, room and cohort double bookings
// and for subjects placed more often per day than the cap allows.
func (s *TimetableAuditService) Conflicts(ctx context.Context) (*dto.ConflictReport, error) {
	rows, err := s.entries.ListOccupancy(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	entries := make([]timetable.Entry, 0, len(rows))
	for _, row := range rows {
		day, ok := timetable.ParseDay(row.Day)
		if !ok {
			continue
		}
		entries = append(entries, timetable.Entry{
			ID:        row.ID,
			Day:       day,
			PeriodNo:  row.PeriodNo,
			PeriodID:  row.PeriodID,
			SubjectID: row.SubjectID,
			StaffID:   row.StaffID,
			RoomID:    row.ClassroomID,
			Year:      row.Year,
			CourseID:  row.CourseID,
			Semester:  row.Semester,
		})
	}

	report := &dto.ConflictReport{
		CheckedEntries: len(entries),
		Conflicts:      []dto.ConflictView{},
		CheckedAt:      s.now().UTC(),
	}
	for _, v := range timetable.Verify(entries, s.maxPerSubjectDay) {
		report.Conflicts = append(report.Conflicts, dto.ConflictView{
			Dimension: v.Dimension,
			Key:       v.Key,
			Day:       string(v.Day),
			PeriodNo:  v.PeriodNo,
			EntryIDs:  v.EntryIDs,
		})
	}
	return report, nil
}

// Workload reports assigned and scheduled hours per staff member.
func (s *TimetableAuditService) Workload(ctx context.Context) ([]dto.WorkloadView, error) {
	rows, err := s.workload.Workload(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workload")
	}
	views := make([]dto.WorkloadView, 0, len(rows))
	for _, row := range rows {
		views = append(views, dto.WorkloadView{
			StaffID:        row.StaffID,
			StaffCode:      row.StaffCode,
			Name:           row.Name,
			Department:     row.Department,
			MaxHours:       row.MaxHours,
			AssignedHours:  row.AssignedHours,
			ScheduledHours: row.ScheduledHours,
			Overloaded:     row.MaxHours > 0 && (row.AssignedHours > row.MaxHours || row.ScheduledHours > row.MaxHours),
		})
	}
	return views, nil
}

// RunAudit performs one full audit and publishes the result as metrics.
func (s *TimetableAuditService) RunAudit(ctx context.Context) error {
	report, err := s.Conflicts(ctx)
	if err != nil {
		return err
	}
	workload, err := s.Workload(ctx)
	if err != nil {
		return err
	}

	byDimension := map[string]int{
		timetable.DimensionStaff:      0,
		timetable.DimensionRoom:       0,
		timetable.DimensionCohort:     0,
		timetable.DimensionSubjectDay: 0,
	}
	for _, c := range report.Conflicts {
		byDimension[c.Dimension]++
		s.logger.Warn("timetable conflict",
			zap.String("dimension", c.Dimension),
			zap.String("key", c.Key),
			zap.String("day", c.Day),
			zap.Int("period_no", c.PeriodNo),
			zap.Strings("entry_ids", c.EntryIDs),
		)
	}
	overloaded := 0
	for _, w := range workload {
		if w.Overloaded {
			overloaded++
			s.logger.Warn("staff overloaded",
				zap.String("staff_id", w.StaffID),
				zap.Int("max_hours", w.MaxHours),
				zap.Int("assigned_hours", w.AssignedHours),
				zap.Int("scheduled_hours", w.ScheduledHours),
			)
		}
	}

	s.metrics.SetAuditResult(byDimension, overloaded, report.CheckedAt)
	s.logger.Info("timetable audit finished",
		zap.Int("entries", report.CheckedEntries),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Int("overloaded_staff", overloaded),
	)
	return nil
}

// StartAudit schedules RunAudit on spec. An empty spec disables the schedule
// and returns a nil scheduler. Callers stop the returned scheduler on shutdown.
func (s *TimetableAuditService) StartAudit(spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(s.logger.Named("audit_cron")))
	c := cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.RunAudit(ctx); err != nil {
			s.logger.Error("timetable audit failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule audit %q: %w", spec, err)
	}
	c.Start()
	s.logger.Info("timetable audit scheduled", zap.String("schedule", spec))
	return c, nil
}
