package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ttms-api/internal/models"
)

// SubjectRepository reads subjects and the cohorts they define.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository builds the repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListByCohort returns the subjects of one cohort ordered by id.
func (r *SubjectRepository) ListByCohort(ctx context.Context, cohort models.Cohort) ([]models.Subject, error) {
	const query = `SELECT id, code, name, year, course_id, semester, weekly_hours, created_at
FROM subjects WHERE year = $1 AND course_id = $2 AND semester = $3 ORDER BY id`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, cohort.Year, cohort.CourseID, cohort.Semester); err != nil {
		return nil, fmt.Errorf("list subjects for cohort: %w", err)
	}
	return subjects, nil
}

// ListCohorts returns every distinct cohort that has at least one subject.
func (r *SubjectRepository) ListCohorts(ctx context.Context) ([]models.Cohort, error) {
	const query = `SELECT DISTINCT year, course_id, semester FROM subjects ORDER BY year, course_id, semester`
	var cohorts []models.Cohort
	if err := r.db.SelectContext(ctx, &cohorts, query); err != nil {
		return nil, fmt.Errorf("list cohorts: %w", err)
	}
	return cohorts, nil
}
