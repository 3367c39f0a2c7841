package timetable

import "sort"

// Violation dimensions reported by Verify.
const (
	DimensionStaff      = "STAFF"
	DimensionRoom       = "ROOM"
	DimensionCohort     = "COHORT"
	DimensionSubjectDay = "SUBJECT_DAY"
)

// Violation is a broken hard constraint found in a set of entries.
type Violation struct {
	Dimension string
	Key       string
	Day       Day
	PeriodNo  int
	EntryIDs  []string
}

// Verify scans entries for double bookings and subject-day overflow.
// Output is sorted so it can be compared across calls.
func Verify(entries []Entry, maxPerSubjectDay int) []Violation {
	if maxPerSubjectDay <= 0 {
		maxPerSubjectDay = DefaultMaxPerSubjectDay
	}

	type slotGroup struct {
		dimension string
		key       string
		day       Day
		period    int
	}
	groups := make(map[slotGroup][]string)
	perDay := make(map[subjectDay][]string)

	for _, e := range entries {
		if e.StaffID != "" {
			g := slotGroup{DimensionStaff, e.StaffID, e.Day, e.PeriodNo}
			groups[g] = append(groups[g], e.ID)
		}
		if e.RoomID != "" {
			g := slotGroup{DimensionRoom, e.RoomID, e.Day, e.PeriodNo}
			groups[g] = append(groups[g], e.ID)
		}
		g := slotGroup{DimensionCohort, e.Year + "/" + e.CourseID, e.Day, e.PeriodNo}
		groups[g] = append(groups[g], e.ID)

		sd := subjectDay{e.SubjectID, e.Day}
		perDay[sd] = append(perDay[sd], e.ID)
	}

	var out []Violation
	for g, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		out = append(out, Violation{Dimension: g.dimension, Key: g.key, Day: g.day, PeriodNo: g.period, EntryIDs: ids})
	}
	for sd, ids := range perDay {
		if len(ids) <= maxPerSubjectDay {
			continue
		}
		out = append(out, Violation{Dimension: DimensionSubjectDay, Key: sd.subject, Day: sd.day, EntryIDs: ids})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Dimension != b.Dimension {
			return a.Dimension < b.Dimension
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.Day != b.Day {
			return DayIndex(a.Day) < DayIndex(b.Day)
		}
		return a.PeriodNo < b.PeriodNo
	})
	return out
}
