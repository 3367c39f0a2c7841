package timetable

// DefaultMaxPerSubjectDay caps placements of one subject on a single day.
const DefaultMaxPerSubjectDay = 2

type staffSlot struct {
	staff  string
	day    Day
	period int
}

type roomSlot struct {
	room   string
	day    Day
	period int
}

type cohortSlot struct {
	year   string
	course string
	day    Day
	period int
}

type subjectDay struct {
	subject string
	day     Day
}

// ConstraintStore tracks slot occupancy for one generation run. It is not safe
// for concurrent mutation; a run owns its store exclusively.
type ConstraintStore struct {
	maxPerSubjectDay int

	staffBusy       map[staffSlot]struct{}
	roomBusy        map[roomSlot]struct{}
	cohortBusy      map[cohortSlot]struct{}
	subjectDayCount map[subjectDay]int
}

// NewConstraintStore builds an empty store. A non-positive cap falls back to
// DefaultMaxPerSubjectDay.
func NewConstraintStore(maxPerSubjectDay int) *ConstraintStore {
	if maxPerSubjectDay <= 0 {
		maxPerSubjectDay = DefaultMaxPerSubjectDay
	}
	return &ConstraintStore{
		maxPerSubjectDay: maxPerSubjectDay,
		staffBusy:        make(map[staffSlot]struct{}),
		roomBusy:         make(map[roomSlot]struct{}),
		cohortBusy:       make(map[cohortSlot]struct{}),
		subjectDayCount:  make(map[subjectDay]int),
	}
}

// MaxPerSubjectDay returns the configured daily cap.
func (s *ConstraintStore) MaxPerSubjectDay() int {
	return s.maxPerSubjectDay
}

// Seed bulk-loads persisted occupancy before a run.
func (s *ConstraintStore) Seed(entries []Entry) {
	for _, e := range entries {
		s.Commit(e)
	}
}

// StaffFree reports whether staff has nothing at (day, period).
func (s *ConstraintStore) StaffFree(staff string, day Day, period int) bool {
	_, busy := s.staffBusy[staffSlot{staff, day, period}]
	return !busy
}

// RoomFree reports whether room is unused at (day, period).
func (s *ConstraintStore) RoomFree(room string, day Day, period int) bool {
	_, busy := s.roomBusy[roomSlot{room, day, period}]
	return !busy
}

// CohortFree reports whether the year/course already has a class at (day, period).
func (s *ConstraintStore) CohortFree(year, course string, day Day, period int) bool {
	_, busy := s.cohortBusy[cohortSlot{year, course, day, period}]
	return !busy
}

// SubjectDayCount returns how many entries subject already has on day.
func (s *ConstraintStore) SubjectDayCount(subject string, day Day) int {
	return s.subjectDayCount[subjectDay{subject, day}]
}

// SubjectDayOpen reports whether subject may take another slot on day under
// limit. A non-positive limit uses the store's cap.
func (s *ConstraintStore) SubjectDayOpen(subject string, day Day, limit int) bool {
	if limit <= 0 {
		limit = s.maxPerSubjectDay
	}
	return s.SubjectDayCount(subject, day) < limit
}

// IsFree checks the staff, room and cohort dimensions together.
func (s *ConstraintStore) IsFree(staff, room, year, course string, day Day, period int) bool {
	return s.CohortFree(year, course, day, period) &&
		s.StaffFree(staff, day, period) &&
		s.RoomFree(room, day, period)
}

// Commit marks every occupancy set touched by e and bumps its subject-day counter.
func (s *ConstraintStore) Commit(e Entry) {
	if e.StaffID != "" {
		s.staffBusy[staffSlot{e.StaffID, e.Day, e.PeriodNo}] = struct{}{}
	}
	if e.RoomID != "" {
		s.roomBusy[roomSlot{e.RoomID, e.Day, e.PeriodNo}] = struct{}{}
	}
	s.cohortBusy[cohortSlot{e.Year, e.CourseID, e.Day, e.PeriodNo}] = struct{}{}
	s.subjectDayCount[subjectDay{e.SubjectID, e.Day}]++
}
