package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/ttms-api/internal/models"
	"github.com/noah-isme/ttms-api/internal/timetable"
	appErrors "github.com/noah-isme/ttms-api/pkg/errors"
)

type occupancyReaderStub struct {
	entries []models.TimetableEntry
	err     error
}

func (s *occupancyReaderStub) ListOccupancy(ctx context.Context, exec sqlx.ExtContext) ([]models.TimetableEntry, error) {
	return s.entries, s.err
}

type workloadReaderStub struct {
	rows []models.StaffWorkload
}

func (s *workloadReaderStub) Workload(ctx context.Context) ([]models.StaffWorkload, error) {
	return s.rows, nil
}

func conflictingEntries() []models.TimetableEntry {
	return []models.TimetableEntry{
		{ID: "e1", Day: "Tuesday", PeriodNo: 3, SubjectID: "a", StaffID: "staff-1", ClassroomID: "room-1", Year: "I", CourseID: "cse", Semester: "1"},
		{ID: "e2", Day: "Tuesday", PeriodNo: 3, SubjectID: "b", StaffID: "staff-1", ClassroomID: "room-2", Year: "II", CourseID: "cse", Semester: "3"},
		{ID: "e3", Day: "Tuesday", PeriodNo: 4, SubjectID: "c", StaffID: "staff-2", ClassroomID: "room-1", Year: "I", CourseID: "cse", Semester: "1"},
	}
}

func TestTimetableAuditConflicts(t *testing.T) {
	svc := NewTimetableAuditService(&occupancyReaderStub{entries: conflictingEntries()}, &workloadReaderStub{}, nil, nil, 2)
	fixed := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	report, err := svc.Conflicts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.CheckedEntries)
	assert.Equal(t, fixed, report.CheckedAt)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, timetable.DimensionStaff, report.Conflicts[0].Dimension)
	assert.Equal(t, "staff-1", report.Conflicts[0].Key)
	assert.Equal(t, "Tuesday", report.Conflicts[0].Day)
	assert.ElementsMatch(t, []string{"e1", "e2"}, report.Conflicts[0].EntryIDs)
}

func TestTimetableAuditConflictsCleanTimetable(t *testing.T) {
	svc := NewTimetableAuditService(&occupancyReaderStub{entries: conflictingEntries()[2:]}, &workloadReaderStub{}, nil, nil, 0)
	report, err := svc.Conflicts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, report.Conflicts)
	assert.Empty(t, report.Conflicts)
}

func TestTimetableAuditConflictsLoadError(t *testing.T) {
	svc := NewTimetableAuditService(&occupancyReaderStub{err: errors.New("db down")}, &workloadReaderStub{}, nil, nil, 0)
	_, err := svc.Conflicts(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestTimetableAuditWorkloadFlagsOverload(t *testing.T) {
	workload := &workloadReaderStub{rows: []models.StaffWorkload{
		{StaffID: "staff-1", MaxHours: 18, AssignedHours: 20, ScheduledHours: 16},
		{StaffID: "staff-2", MaxHours: 18, AssignedHours: 10, ScheduledHours: 10},
		{StaffID: "staff-3", MaxHours: 0, AssignedHours: 40, ScheduledHours: 40},
	}}
	svc := NewTimetableAuditService(&occupancyReaderStub{}, workload, nil, nil, 0)

	views, err := svc.Workload(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.True(t, views[0].Overloaded)
	assert.False(t, views[1].Overloaded)
	assert.False(t, views[2].Overloaded, "no cap configured")
}

func TestTimetableAuditRunPublishesMetrics(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	metrics := NewMetricsService()
	workload := &workloadReaderStub{rows: []models.StaffWorkload{{StaffID: "staff-1", MaxHours: 1, ScheduledHours: 2}}}
	svc := NewTimetableAuditService(&occupancyReaderStub{entries: conflictingEntries()}, workload, metrics, zap.New(core), 2)

	require.NoError(t, svc.RunAudit(context.Background()))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.auditConflicts.WithLabelValues(timetable.DimensionStaff)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.auditConflicts.WithLabelValues(timetable.DimensionRoom)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.overloadedStaff))
	assert.Equal(t, 1, logs.FilterMessage("timetable conflict").Len())
	assert.Equal(t, 1, logs.FilterMessage("staff overloaded").Len())
	assert.Equal(t, 1, logs.FilterMessage("timetable audit finished").Len())
}

func TestTimetableAuditStartAudit(t *testing.T) {
	svc := NewTimetableAuditService(&occupancyReaderStub{}, &workloadReaderStub{}, nil, nil, 0)

	c, err := svc.StartAudit("")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = svc.StartAudit("not a schedule")
	assert.Error(t, err)

	c, err = svc.StartAudit("@every 1h")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Entries(), 1)
	<-c.Stop().Done()
}
