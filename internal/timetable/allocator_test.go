package timetable

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sevenPeriods() []Period {
	periods := make([]Period, 0, 7)
	for i := 1; i <= 7; i++ {
		periods = append(periods, Period{ID: fmt.Sprintf("p%d", i), No: i})
	}
	return periods
}

func cohortI() Cohort {
	return Cohort{Year: "I", CourseID: "course-1", Semester: "1"}
}

func fixedRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func assertHardConstraints(t *testing.T, entries []Entry, maxPerDay int) {
	t.Helper()
	withIDs := make([]Entry, len(entries))
	for i, e := range entries {
		e.ID = fmt.Sprintf("e%d", i)
		withIDs[i] = e
	}
	assert.Empty(t, Verify(withIDs, maxPerDay))
}

func TestRunPlacesAllHoursForSingleSubject(t *testing.T) {
	alloc, err := Run(RunInput{
		Cohort:      cohortI(),
		Subjects:    []Subject{{ID: "math", Code: "M1", WeeklyHours: 4}},
		Assignments: []Assignment{{StaffID: "staff-1", SubjectID: "math"}},
		Grid:        Grid{Periods: sevenPeriods(), Rooms: []string{"room-1"}},
	}, RoundRobin{}, fixedRand())
	require.NoError(t, err)

	assert.Equal(t, 4, alloc.PlacedCount())
	assert.Empty(t, alloc.Shortfalls)
	assert.True(t, alloc.Complete())
	assert.Equal(t, "round_robin", alloc.Strategy)

	slots := make(map[string]bool)
	perDay := make(map[Day]int)
	for _, e := range alloc.Entries {
		key := fmt.Sprintf("%s/%d", e.Day, e.PeriodNo)
		assert.False(t, slots[key], "slot %s used twice", key)
		slots[key] = true
		perDay[e.Day]++
		assert.Equal(t, "room-1", e.RoomID)
		assert.Equal(t, "staff-1", e.StaffID)
		assert.Equal(t, "I", e.Year)
		assert.Equal(t, "course-1", e.CourseID)
		assert.Equal(t, fmt.Sprintf("p%d", e.PeriodNo), e.PeriodID)
	}
	for day, count := range perDay {
		assert.LessOrEqual(t, count, 2, "day %s", day)
	}
}

func TestRunWithoutRoomsReportsShortfall(t *testing.T) {
	alloc, err := Run(RunInput{
		Cohort:      cohortI(),
		Subjects:    []Subject{{ID: "math", WeeklyHours: 3}},
		Assignments: []Assignment{{StaffID: "staff-1", SubjectID: "math"}},
		Grid:        Grid{Periods: sevenPeriods()},
	}, RoundRobin{}, fixedRand())
	require.NoError(t, err)

	assert.Equal(t, 0, alloc.PlacedCount())
	assert.Equal(t, []Shortfall{{SubjectID: "math", UnmetHours: 3}}, alloc.Shortfalls)
	assert.False(t, alloc.Complete())
}

func TestRunSharedStaffIsNotDoubleBooked(t *testing.T) {
	alloc, err := Run(RunInput{
		Cohort: cohortI(),
		Subjects: []Subject{
			{ID: "math", WeeklyHours: 1},
			{ID: "physics", WeeklyHours: 1},
		},
		Assignments: []Assignment{
			{StaffID: "staff-1", SubjectID: "math"},
			{StaffID: "staff-1", SubjectID: "physics"},
		},
		Grid: Grid{Periods: sevenPeriods(), Rooms: []string{"room-1"}},
	}, RoundRobin{}, fixedRand())
	require.NoError(t, err)

	require.Equal(t, 2, alloc.PlacedCount())
	assert.Empty(t, alloc.Shortfalls)
	first, second := alloc.Entries[0], alloc.Entries[1]
	assert.False(t, first.Day == second.Day && first.PeriodNo == second.PeriodNo)
}

func TestRunFailsWithoutAssignments(t *testing.T) {
	alloc, err := Run(RunInput{
		Cohort:   cohortI(),
		Subjects: []Subject{{ID: "math", WeeklyHours: 3}},
		Grid:     Grid{Periods: sevenPeriods(), Rooms: []string{"room-1"}},
	}, RoundRobin{}, fixedRand())
	require.ErrorIs(t, err, ErrNoAssignments)
	assert.Nil(t, alloc)
}

func TestRunFailsWithoutPeriods(t *testing.T) {
	_, err := Run(RunInput{
		Cohort:      cohortI(),
		Subjects:    []Subject{{ID: "math", WeeklyHours: 3}},
		Assignments: []Assignment{{StaffID: "staff-1", SubjectID: "math"}},
		Grid:        Grid{Rooms: []string{"room-1"}},
	}, RoundRobin{}, fixedRand())
	require.ErrorIs(t, err, ErrNoPeriods)
}

func TestRunIgnoresOwnCohortOccupancy(t *testing.T) {
	var own []Entry
	for i, day := range Weekdays {
		for p := 1; p <= 7; p++ {
			own = append(own, Entry{ID: fmt.Sprintf("old-%d-%d", i, p), Day: day, PeriodNo: p, SubjectID: "old", StaffID: "staff-1", RoomID: "room-1", Year: "I", CourseID: "course-1", Semester: "1"})
		}
	}

	alloc, err := Run(RunInput{
		Cohort:      cohortI(),
		Subjects:    []Subject{{ID: "math", WeeklyHours: 5}},
		Assignments: []Assignment{{StaffID: "staff-1", SubjectID: "math"}},
		Grid:        Grid{Periods: sevenPeriods(), Rooms: []string{"room-1"}},
		Occupied:    own,
	}, RoundRobin{}, fixedRand())
	require.NoError(t, err)
	assert.Equal(t, 5, alloc.PlacedCount())
}

func TestRunRespectsOtherCohortOccupancy(t *testing.T) {
	// Another cohort holds the only room for every slot except Friday period 7.
	var other []Entry
	for _, day := range Weekdays {
		for p := 1; p <= 7; p++ {
			if day == Friday && p == 7 {
				continue
			}
			other = append(other, Entry{Day: day, PeriodNo: p, SubjectID: "bio", StaffID: "staff-9", RoomID: "room-1", Year: "II", CourseID: "course-1", Semester: "1"})
		}
	}

	alloc, err := Run(RunInput{
		Cohort:      cohortI(),
		Subjects:    []Subject{{ID: "math", WeeklyHours: 3}},
		Assignments: []Assignment{{StaffID: "staff-1", SubjectID: "math"}},
		Grid:        Grid{Periods: sevenPeriods(), Rooms: []string{"room-1"}},
		Occupied:    other,
	}, RoundRobin{}, fixedRand())
	require.NoError(t, err)

	require.Equal(t, 1, alloc.PlacedCount())
	assert.Equal(t, Friday, alloc.Entries[0].Day)
	assert.Equal(t, 7, alloc.Entries[0].PeriodNo)
	assert.Equal(t, []Shortfall{{SubjectID: "math", UnmetHours: 2}}, alloc.Shortfalls)
}

func TestRunConservesHoursAndRespectsConstraints(t *testing.T) {
	subjects := []Subject{
		{ID: "a", WeeklyHours: 6},
		{ID: "b", WeeklyHours: 5},
		{ID: "c", WeeklyHours: 4},
		{ID: "d", WeeklyHours: 4},
		{ID: "e", WeeklyHours: 3},
		{ID: "f", WeeklyHours: 12},
		{ID: "g", WeeklyHours: 2},
	}
	assignments := []Assignment{
		{StaffID: "s1", SubjectID: "a"},
		{StaffID: "s1", SubjectID: "b"},
		{StaffID: "s2", SubjectID: "c"},
		{StaffID: "s2", SubjectID: "d"},
		{StaffID: "s3", SubjectID: "e"},
		{StaffID: "s3", SubjectID: "f"},
		{StaffID: "s4", SubjectID: "f"},
	}

	alloc, err := Run(RunInput{
		Cohort:      cohortI(),
		Subjects:    subjects,
		Assignments: assignments,
		Grid:        Grid{Periods: sevenPeriods(), Rooms: []string{"r1", "r2"}},
	}, RoundRobin{}, fixedRand())
	require.NoError(t, err)

	requested := 0
	for _, s := range subjects {
		if s.ID != "g" {
			requested += s.WeeklyHours
		}
	}
	unmet := 0
	for _, s := range alloc.Shortfalls {
		unmet += s.UnmetHours
	}
	assert.Equal(t, requested, alloc.PlacedCount()+unmet)
	assert.Equal(t, []string{"g"}, alloc.Unassignable)

	// f wants 12 hours but the daily cap allows at most 10 in a week.
	fUnmet := 0
	for _, s := range alloc.Shortfalls {
		if s.SubjectID == "f" {
			fUnmet = s.UnmetHours
		}
	}
	assert.GreaterOrEqual(t, fUnmet, 2)
	assertHardConstraints(t, alloc.Entries, DefaultMaxPerSubjectDay)
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	in := RunInput{
		Cohort: cohortI(),
		Subjects: []Subject{
			{ID: "a", WeeklyHours: 4},
			{ID: "b", WeeklyHours: 3},
			{ID: "c", WeeklyHours: 5},
		},
		Assignments: []Assignment{
			{StaffID: "s2", SubjectID: "a"},
			{StaffID: "s1", SubjectID: "a"},
			{StaffID: "s1", SubjectID: "b"},
			{StaffID: "s3", SubjectID: "c"},
		},
		Grid: Grid{Periods: sevenPeriods(), Rooms: []string{"r1", "r2", "r3"}},
	}

	first, err := Run(in, RoundRobin{}, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	second, err := Run(in, RoundRobin{}, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, first.Iterations, second.Iterations)
}

func TestRoundRobinRelaxedPassFillsShortfall(t *testing.T) {
	in := RunInput{
		Cohort:      cohortI(),
		Subjects:    []Subject{{ID: "f", WeeklyHours: 12}},
		Assignments: []Assignment{{StaffID: "s1", SubjectID: "f"}},
		Grid:        Grid{Periods: sevenPeriods(), Rooms: []string{"r1"}},
	}

	strict, err := Run(in, RoundRobin{}, fixedRand())
	require.NoError(t, err)
	assert.Equal(t, 10, strict.PlacedCount())
	assert.Equal(t, 0, strict.Relaxed)

	relaxed, err := Run(in, RoundRobin{RelaxedDailyCap: 3}, fixedRand())
	require.NoError(t, err)
	assert.Equal(t, 12, relaxed.PlacedCount())
	assert.Equal(t, 2, relaxed.Relaxed)
	assert.Empty(t, relaxed.Shortfalls)
	assertHardConstraints(t, relaxed.Entries, 3)
}

func TestRoundRobinPlacesOneHourPerRound(t *testing.T) {
	q, err := BuildDemands(
		[]Subject{{ID: "a", WeeklyHours: 4}},
		[]Assignment{{StaffID: "s1", SubjectID: "a"}},
	)
	require.NoError(t, err)

	alloc := RoundRobin{SafetyMargin: 1}.Allocate(cohortI(), q, NewConstraintStore(0), Grid{Periods: sevenPeriods(), Rooms: []string{"r1"}}, fixedRand())
	// A single demand gets one hour per round.
	assert.Equal(t, 4, alloc.PlacedCount())
	assert.Equal(t, 4, alloc.Iterations)
}

func TestRoundRobinRotatesStartDay(t *testing.T) {
	q, err := BuildDemands(
		[]Subject{{ID: "a", WeeklyHours: 5}},
		[]Assignment{{StaffID: "s1", SubjectID: "a"}},
	)
	require.NoError(t, err)

	alloc := RoundRobin{}.Allocate(cohortI(), q, NewConstraintStore(0), Grid{Periods: sevenPeriods(), Rooms: []string{"r1"}}, fixedRand())
	require.Equal(t, 5, alloc.PlacedCount())
	for i, e := range alloc.Entries {
		assert.Equal(t, Weekdays[i], e.Day)
	}
}

type recordingStrategy struct {
	cohort  Cohort
	pending int
	staffOK bool
}

func (s *recordingStrategy) Name() string { return "recording" }

func (s *recordingStrategy) Allocate(cohort Cohort, q *DemandQueue, store *ConstraintStore, grid Grid, rng *rand.Rand) *Allocation {
	s.cohort = cohort
	s.pending = len(q.Pending())
	s.staffOK = store.StaffFree("staff-1", Monday, 1)
	return &Allocation{Strategy: s.Name(), Unassignable: q.Unassignable(), Shortfalls: q.Shortfalls()}
}

func TestRunDelegatesToStrategy(t *testing.T) {
	strategy := &recordingStrategy{}
	alloc, err := Run(RunInput{
		Cohort:      cohortI(),
		Subjects:    []Subject{{ID: "math", WeeklyHours: 2}, {ID: "art", WeeklyHours: 1}},
		Assignments: []Assignment{{StaffID: "staff-1", SubjectID: "math"}},
		Grid:        Grid{Periods: sevenPeriods(), Rooms: []string{"room-1"}},
		Occupied: []Entry{
			{Day: Monday, PeriodNo: 1, SubjectID: "bio", StaffID: "staff-1", RoomID: "room-2", Year: "II", CourseID: "course-1", Semester: "1"},
		},
	}, strategy, fixedRand())
	require.NoError(t, err)

	assert.Equal(t, cohortI(), strategy.cohort)
	assert.Equal(t, 1, strategy.pending)
	assert.False(t, strategy.staffOK, "store is seeded before the strategy runs")
	assert.Equal(t, "recording", alloc.Strategy)
	assert.Equal(t, []string{"art"}, alloc.Unassignable)
	assert.False(t, alloc.Complete())
}
