package timetable

import "fmt"

// GridRow is a persisted entry joined with its display fields.
type GridRow struct {
	Day         Day
	PeriodNo    int
	SubjectCode string
	SubjectName string
	StaffName   string
}

// Label renders the cell text shown for an occupied period.
func (r GridRow) Label() string {
	return fmt.Sprintf("%s - %s (%s)", r.SubjectCode, r.SubjectName, r.StaffName)
}

// DisplayGrid maps each weekday to its per-period labels, indexed by period position.
type DisplayGrid map[Day][]string

// Project lays rows out on the fixed weekday grid. Every weekday is present and
// unoccupied periods hold the empty string. Rows on unknown days or periods are dropped.
func Project(rows []GridRow, periods []Period) DisplayGrid {
	return project(rows, periods, GridRow.Label)
}

// ProjectCodes is Project with bare subject codes, used by the master timetable.
func ProjectCodes(rows []GridRow, periods []Period) DisplayGrid {
	return project(rows, periods, func(r GridRow) string { return r.SubjectCode })
}

func project(rows []GridRow, periods []Period, label func(GridRow) string) DisplayGrid {
	ordered := SortPeriods(append([]Period(nil), periods...))
	position := make(map[int]int, len(ordered))
	for i, p := range ordered {
		position[p.No] = i
	}

	grid := make(DisplayGrid, len(Weekdays))
	for _, day := range Weekdays {
		grid[day] = make([]string, len(ordered))
	}
	for _, row := range rows {
		cells, ok := grid[row.Day]
		if !ok {
			continue
		}
		idx, ok := position[row.PeriodNo]
		if !ok {
			continue
		}
		cells[idx] = label(row)
	}
	return grid
}
