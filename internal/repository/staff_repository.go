package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ttms-api/internal/models"
)

// StaffRepository reads staff records, subject assignments and workload.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository builds the repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// FindByID returns one staff member or sql.ErrNoRows.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	const query = `SELECT id, staff_code, name, department, max_hours FROM staff WHERE id = $1`
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		return nil, err
	}
	return &staff, nil
}

// ListAssignmentsByCohort returns staff-subject pairs for the subjects of cohort.
func (r *StaffRepository) ListAssignmentsByCohort(ctx context.Context, cohort models.Cohort) ([]models.StaffAssignment, error) {
	const query = `SELECT ss.staff_id, ss.subject_id
FROM staff_subjects ss
JOIN subjects s ON s.id = ss.subject_id
WHERE s.year = $1 AND s.course_id = $2 AND s.semester = $3
ORDER BY ss.subject_id, ss.staff_id`
	var assignments []models.StaffAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, cohort.Year, cohort.CourseID, cohort.Semester); err != nil {
		return nil, fmt.Errorf("list staff assignments for cohort: %w", err)
	}
	return assignments, nil
}

// Workload aggregates, per staff member, the weekly hours of assigned subjects
// and the number of scheduled timetable slots.
func (r *StaffRepository) Workload(ctx context.Context) ([]models.StaffWorkload, error) {
	const query = `SELECT st.id AS staff_id, st.staff_code, st.name, st.department, st.max_hours,
    COALESCE((SELECT SUM(s.weekly_hours) FROM staff_subjects ss JOIN subjects s ON s.id = ss.subject_id WHERE ss.staff_id = st.id), 0) AS assigned_hours,
    COALESCE((SELECT COUNT(*) FROM timetable t WHERE t.staff_id = st.id), 0) AS scheduled_hours
FROM staff st
ORDER BY st.name`
	var rows []models.StaffWorkload
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("staff workload: %w", err)
	}
	return rows, nil
}
