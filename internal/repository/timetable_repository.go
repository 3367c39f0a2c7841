package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ttms-api/internal/models"
)

const dayOrder = `array_position(ARRAY['Monday','Tuesday','Wednesday','Thursday','Friday'], t.day)`

// TimetableRepository persists timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository builds the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListOccupancy returns every persisted entry with its period number. It is the
// seed for a generation run.
func (r *TimetableRepository) ListOccupancy(ctx context.Context, exec sqlx.ExtContext) ([]models.TimetableEntry, error) {
	const query = `SELECT t.id, t.day, t.period_id, p.period_no, t.subject_id, t.staff_id, t.classroom_id,
    t.year, t.course_id, t.semester, t.created_at
FROM timetable t
JOIN periods p ON p.id = t.period_id`
	var entries []models.TimetableEntry
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query); err != nil {
		return nil, fmt.Errorf("list timetable occupancy: %w", err)
	}
	return entries, nil
}

// ReplaceForCohort deletes every entry of cohort and inserts entries in their
// place. Callers pass a transaction so the swap is all-or-nothing.
func (r *TimetableRepository) ReplaceForCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort, entries []models.TimetableEntry) (int64, error) {
	target := r.exec(exec)

	res, err := target.ExecContext(ctx, `DELETE FROM timetable WHERE year = $1 AND course_id = $2 AND semester = $3`,
		cohort.Year, cohort.CourseID, cohort.Semester)
	if err != nil {
		return 0, fmt.Errorf("delete cohort timetable: %w", err)
	}
	deleted, _ := res.RowsAffected()

	const insert = `
INSERT INTO timetable (id, day, period_id, subject_id, staff_id, classroom_id, year, course_id, semester, created_at)
VALUES (:id, :day, :period_id, :subject_id, :staff_id, :classroom_id, :year, :course_id, :semester, :created_at)`

	now := time.Now().UTC()
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, insert, entry); err != nil {
			return deleted, fmt.Errorf("insert timetable entry: %w", err)
		}
	}
	return deleted, nil
}

// ListGridRows returns joined display rows matching filter, ordered by year,
// course, semester, day and period.
func (r *TimetableRepository) ListGridRows(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableGridRow, error) {
	var conditions []string
	var args []interface{}

	if filter.Year != "" {
		conditions = append(conditions, fmt.Sprintf("t.year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("t.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("t.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.StaffID != "" {
		conditions = append(conditions, fmt.Sprintf("t.staff_id = $%d", len(args)+1))
		args = append(args, filter.StaffID)
	}

	query := `SELECT t.id AS entry_id, t.day, p.period_no, p.start_time, p.end_time,
    s.id AS subject_id, s.code AS subject_code, s.name AS subject_name,
    st.id AS staff_id, st.name AS staff_name, COALESCE(c.room_no, t.classroom_id) AS room_no,
    t.year, t.course_id, co.name AS course_name, t.semester
FROM timetable t
JOIN periods p ON p.id = t.period_id
JOIN subjects s ON s.id = t.subject_id
JOIN staff st ON st.id = t.staff_id
LEFT JOIN classrooms c ON c.id = t.classroom_id
JOIN courses co ON co.id = t.course_id`
	if len(conditions) > 0 {
		query += "\nWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\nORDER BY t.year, t.course_id, t.semester, " + dayOrder + ", p.period_no"

	var rows []models.TimetableGridRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable grid rows: %w", err)
	}
	return rows, nil
}
