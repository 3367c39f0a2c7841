// Package timetable holds the slot allocation core: occupancy tracking, demand
// derivation, the allocation strategy and the display grid projection. It does
// no I/O; callers load inputs and persist the resulting entries.
package timetable

import (
	"errors"
	"sort"
	"strings"
)

// Day is one of the fixed teaching weekdays.
type Day string

const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
)

// Weekdays is the ordered day set of the weekly grid.
var Weekdays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

// ParseDay resolves a day name case-insensitively.
func ParseDay(raw string) (Day, bool) {
	raw = strings.TrimSpace(raw)
	for _, d := range Weekdays {
		if strings.EqualFold(string(d), raw) {
			return d, true
		}
	}
	return "", false
}

// DayIndex returns the position of day within Weekdays or -1.
func DayIndex(day Day) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

// Years enumerates the supported study years.
var Years = []string{"I", "II", "III", "IV"}

// Period maps a stored period identity to its ordinal number.
type Period struct {
	ID string
	No int
}

// SortPeriods orders periods by number in place and returns them.
func SortPeriods(periods []Period) []Period {
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].No < periods[j].No })
	return periods
}

// Cohort identifies one timetable: a year/course/semester triple.
type Cohort struct {
	Year     string
	CourseID string
	Semester string
}

// Subject is the allocation view of a subject row.
type Subject struct {
	ID          string
	Code        string
	Name        string
	Year        string
	CourseID    string
	Semester    string
	WeeklyHours int
}

// Assignment pairs a staff member with a subject they can teach.
type Assignment struct {
	StaffID   string
	SubjectID string
}

// Entry is a single committed (day, period, subject, staff, room) placement.
type Entry struct {
	ID        string
	Day       Day
	PeriodNo  int
	PeriodID  string
	SubjectID string
	StaffID   string
	RoomID    string
	Year      string
	CourseID  string
	Semester  string
}

// Cohort returns the cohort key of the entry.
func (e Entry) Cohort() Cohort {
	return Cohort{Year: e.Year, CourseID: e.CourseID, Semester: e.Semester}
}

// Shortfall reports unmet weekly hours for a subject.
type Shortfall struct {
	SubjectID  string
	UnmetHours int
}

// Grid is the fixed day x period lattice the allocator searches.
type Grid struct {
	Days    []Day
	Periods []Period
	Rooms   []string
}

// Sentinel errors surfaced by the core.
var (
	ErrNoAssignments = errors.New("no staff assigned to any subject in cohort")
	ErrNoPeriods     = errors.New("no periods configured")
)
