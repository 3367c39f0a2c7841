package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ttms-api/internal/models"
)

func TestStaffRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM staff WHERE id = $1")).
		WithArgs("staff-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "staff_code", "name", "department", "max_hours"}).AddRow("staff-1", "S01", "Dr. Rao", "CSE", 18))
	mock.ExpectQuery(regexp.QuoteMeta("FROM staff WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	staff, err := repo.FindByID(context.Background(), "staff-1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Rao", staff.Name)

	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepositoryListAssignmentsByCohort(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM staff_subjects ss")).
		WithArgs("I", "course-1", "1").
		WillReturnRows(sqlmock.NewRows([]string{"staff_id", "subject_id"}).AddRow("staff-1", "sub-1").AddRow("staff-2", "sub-1"))

	got, err := repo.ListAssignmentsByCohort(context.Background(), models.Cohort{Year: "I", CourseID: "course-1", Semester: "1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepositoryWorkload(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AS scheduled_hours")).
		WillReturnRows(sqlmock.NewRows([]string{"staff_id", "staff_code", "name", "department", "max_hours", "assigned_hours", "scheduled_hours"}).
			AddRow("staff-1", "S01", "Dr. Rao", "CSE", 10, 12, 11))

	got, err := repo.Workload(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 12, got[0].AssignedHours)
	assert.Equal(t, 11, got[0].ScheduledHours)
	assert.NoError(t, mock.ExpectationsWereMet())
}
