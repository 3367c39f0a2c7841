package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectFillsLabels(t *testing.T) {
	periods := []Period{{ID: "p2", No: 2}, {ID: "p1", No: 1}, {ID: "p3", No: 3}}
	rows := []GridRow{
		{Day: Monday, PeriodNo: 1, SubjectCode: "MA101", SubjectName: "Calculus", StaffName: "Dr. Rao"},
		{Day: Wednesday, PeriodNo: 3, SubjectCode: "PH101", SubjectName: "Physics", StaffName: "Ms. Iyer"},
		{Day: "Saturday", PeriodNo: 1, SubjectCode: "XX"},
		{Day: Friday, PeriodNo: 9, SubjectCode: "YY"},
	}

	grid := Project(rows, periods)
	require.Len(t, grid, 5)
	for _, day := range Weekdays {
		require.Len(t, grid[day], 3)
	}
	assert.Equal(t, "MA101 - Calculus (Dr. Rao)", grid[Monday][0])
	assert.Equal(t, "PH101 - Physics (Ms. Iyer)", grid[Wednesday][2])
	assert.Equal(t, []string{"", "", ""}, grid[Friday])
	_, ok := grid["Saturday"]
	assert.False(t, ok)
}

func TestProjectCodes(t *testing.T) {
	grid := ProjectCodes([]GridRow{{Day: Tuesday, PeriodNo: 2, SubjectCode: "CS201", SubjectName: "Algorithms"}}, sevenPeriods())
	assert.Equal(t, "CS201", grid[Tuesday][1])
	assert.Equal(t, "", grid[Tuesday][0])
}

func TestProjectWithoutPeriods(t *testing.T) {
	grid := Project([]GridRow{{Day: Monday, PeriodNo: 1, SubjectCode: "A"}}, nil)
	assert.Len(t, grid, 5)
	assert.Empty(t, grid[Monday])
}
