package models

import "time"

// Subject is a course subject taught to one cohort.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Year        string    `db:"year" json:"year"`
	CourseID    string    `db:"course_id" json:"courseId"`
	Semester    string    `db:"semester" json:"semester"`
	WeeklyHours int       `db:"weekly_hours" json:"weeklyHours"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Course groups subjects into a degree programme.
type Course struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Cohort identifies the (year, course, semester) triple a timetable belongs to.
type Cohort struct {
	Year     string `db:"year" json:"year"`
	CourseID string `db:"course_id" json:"courseId"`
	Semester string `db:"semester" json:"semester"`
}
