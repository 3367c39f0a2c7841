package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ttms-api/internal/models"
)

// PeriodRepository reads the fixed period and room pools.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository builds the repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// ListPeriods returns periods ordered by number.
func (r *PeriodRepository) ListPeriods(ctx context.Context) ([]models.Period, error) {
	const query = `SELECT id, period_no, start_time, end_time FROM periods ORDER BY period_no`
	var periods []models.Period
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// ListClassrooms returns every classroom ordered by room number.
func (r *PeriodRepository) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	const query = `SELECT id, room_no, room_type, capacity FROM classrooms ORDER BY room_no`
	var rooms []models.Classroom
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return rooms, nil
}
