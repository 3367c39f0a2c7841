package timetable

import (
	"math/rand"
	"time"
)

// DefaultSafetyMargin is added to the outstanding hours to bound the number of rounds.
const DefaultSafetyMargin = 100

// Strategy turns a demand queue into committed entries. Implementations must
// never commit an entry the store reports as conflicting.
type Strategy interface {
	Name() string
	Allocate(cohort Cohort, q *DemandQueue, store *ConstraintStore, grid Grid, rng *rand.Rand) *Allocation
}

// Allocation is the outcome of one strategy run.
type Allocation struct {
	Strategy     string
	Entries      []Entry
	Shortfalls   []Shortfall
	Unassignable []string
	Iterations   int
	// Relaxed counts entries placed above the regular per-day cap.
	Relaxed int
}

// PlacedCount is the number of committed entries.
func (a *Allocation) PlacedCount() int {
	if a == nil {
		return 0
	}
	return len(a.Entries)
}

// Complete reports whether every placeable demand got its weekly hours.
func (a *Allocation) Complete() bool {
	return a != nil && len(a.Shortfalls) == 0
}

// RoundRobin is the greedy randomized round-robin allocator. Each round visits
// every unsatisfied demand once in shuffled order and places at most one hour
// for it, starting the day search from a rotating index.
type RoundRobin struct {
	SafetyMargin int
	// RelaxedDailyCap, when above the store cap, grants short demands a second
	// budgeted pass with the per-subject daily cap raised to this value.
	RelaxedDailyCap int
}

// Name identifies the strategy in results and metrics.
func (RoundRobin) Name() string {
	return "round_robin"
}

// Allocate implements Strategy.
func (r RoundRobin) Allocate(cohort Cohort, q *DemandQueue, store *ConstraintStore, grid Grid, rng *rand.Rand) *Allocation {
	alloc := &Allocation{Strategy: r.Name(), Unassignable: q.Unassignable()}

	days := grid.Days
	if len(days) == 0 {
		days = Weekdays
	}
	periods := SortPeriods(append([]Period(nil), grid.Periods...))

	baseCap := store.MaxPerSubjectDay()
	alloc.Iterations = r.rounds(cohort, q, store, days, periods, grid.Rooms, rng, baseCap, alloc)

	if r.RelaxedDailyCap > baseCap && q.TotalRemaining() > 0 {
		before := len(alloc.Entries)
		alloc.Iterations += r.rounds(cohort, q, store, days, periods, grid.Rooms, rng, r.RelaxedDailyCap, alloc)
		alloc.Relaxed = len(alloc.Entries) - before
	}

	alloc.Shortfalls = q.Shortfalls()
	return alloc
}

func (r RoundRobin) rounds(cohort Cohort, q *DemandQueue, store *ConstraintStore, days []Day, periods []Period, rooms []string, rng *rand.Rand, dailyCap int, alloc *Allocation) int {
	if len(days) == 0 || len(periods) == 0 {
		return 0
	}
	margin := r.SafetyMargin
	if margin <= 0 {
		margin = DefaultSafetyMargin
	}
	// maxIterations is a backstop. Every round either places an hour or ends the
	// pass, so the early stop below is reached first.
	maxIterations := q.TotalRemaining() + margin

	iteration := 0
	dayIndex := 0
	for q.TotalRemaining() > 0 && iteration < maxIterations {
		iteration++
		pending := q.Pending()
		rng.Shuffle(len(pending), func(i, j int) { pending[i], pending[j] = pending[j], pending[i] })

		placed := 0
		for _, demand := range pending {
			if demand.Remaining <= 0 {
				continue
			}
			entry, ok := placeOne(cohort, demand, store, days, periods, rooms, rng, dailyCap, dayIndex)
			if !ok {
				continue
			}
			store.Commit(entry)
			alloc.Entries = append(alloc.Entries, entry)
			demand.Remaining--
			placed++
			dayIndex = (dayIndex + 1) % len(days)
		}

		// The slot search is exhaustive, so a round that placed nothing left the
		// store unchanged and no later round can place anything either.
		if placed == 0 {
			break
		}
	}
	return iteration
}

func placeOne(cohort Cohort, demand *Demand, store *ConstraintStore, days []Day, periods []Period, rooms []string, rng *rand.Rand, dailyCap, dayIndex int) (Entry, bool) {
	subjectID := demand.Subject.ID
	for offset := 0; offset < len(days); offset++ {
		day := days[(dayIndex+offset)%len(days)]
		if !store.SubjectDayOpen(subjectID, day, dailyCap) {
			continue
		}
		for _, pi := range rng.Perm(len(periods)) {
			period := periods[pi]
			if !store.CohortFree(cohort.Year, cohort.CourseID, day, period.No) {
				continue
			}
			staff, ok := pickStaff(demand.Staff, store, day, period.No, rng)
			if !ok {
				continue
			}
			room, ok := pickRoom(rooms, store, day, period.No, rng)
			if !ok {
				continue
			}
			return Entry{
				Day:       day,
				PeriodNo:  period.No,
				PeriodID:  period.ID,
				SubjectID: subjectID,
				StaffID:   staff,
				RoomID:    room,
				Year:      cohort.Year,
				CourseID:  cohort.CourseID,
				Semester:  cohort.Semester,
			}, true
		}
	}
	return Entry{}, false
}

func pickStaff(staff []string, store *ConstraintStore, day Day, period int, rng *rand.Rand) (string, bool) {
	for _, i := range rng.Perm(len(staff)) {
		if store.StaffFree(staff[i], day, period) {
			return staff[i], true
		}
	}
	return "", false
}

func pickRoom(rooms []string, store *ConstraintStore, day Day, period int, rng *rand.Rand) (string, bool) {
	for _, i := range rng.Perm(len(rooms)) {
		if store.RoomFree(rooms[i], day, period) {
			return rooms[i], true
		}
	}
	return "", false
}

// NewRand returns a generator seeded with seed, or with the clock when seed is nil.
// The returned seed is the one actually used.
func NewRand(seed *int64) (*rand.Rand, int64) {
	value := time.Now().UnixNano()
	if seed != nil {
		value = *seed
	}
	return rand.New(rand.NewSource(value)), value
}

// RunInput bundles everything one generation run reads.
type RunInput struct {
	Cohort           Cohort
	Subjects         []Subject
	Assignments      []Assignment
	Grid             Grid
	Occupied         []Entry
	MaxPerSubjectDay int
}

// Run seeds a fresh store from the occupied slots of every other cohort, derives
// the demands and hands them to strategy. Rows of the cohort itself are skipped
// since they are about to be replaced.
func Run(in RunInput, strategy Strategy, rng *rand.Rand) (*Allocation, error) {
	if len(in.Grid.Periods) == 0 {
		return nil, ErrNoPeriods
	}
	queue, err := BuildDemands(in.Subjects, in.Assignments)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		strategy = RoundRobin{}
	}
	if rng == nil {
		rng, _ = NewRand(nil)
	}

	store := NewConstraintStore(in.MaxPerSubjectDay)
	for _, e := range in.Occupied {
		if e.Cohort() == in.Cohort {
			continue
		}
		store.Commit(e)
	}

	return strategy.Allocate(in.Cohort, queue, store, in.Grid, rng), nil
}
