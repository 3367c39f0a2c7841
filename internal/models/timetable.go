package models

import "time"

// TimetableEntry is one persisted placement. PeriodNo is joined from periods on reads.
type TimetableEntry struct {
	ID          string    `db:"id" json:"id"`
	Day         string    `db:"day" json:"day"`
	PeriodID    string    `db:"period_id" json:"periodId"`
	PeriodNo    int       `db:"period_no" json:"periodNo"`
	SubjectID   string    `db:"subject_id" json:"subjectId"`
	StaffID     string    `db:"staff_id" json:"staffId"`
	ClassroomID string    `db:"classroom_id" json:"classroomId"`
	Year        string    `db:"year" json:"year"`
	CourseID    string    `db:"course_id" json:"courseId"`
	Semester    string    `db:"semester" json:"semester"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// TimetableGridRow is an entry joined with display names.
type TimetableGridRow struct {
	EntryID     string `db:"entry_id" json:"entryId"`
	Day         string `db:"day" json:"day"`
	PeriodNo    int    `db:"period_no" json:"periodNo"`
	StartTime   string `db:"start_time" json:"startTime"`
	EndTime     string `db:"end_time" json:"endTime"`
	SubjectID   string `db:"subject_id" json:"subjectId"`
	SubjectCode string `db:"subject_code" json:"subjectCode"`
	SubjectName string `db:"subject_name" json:"subjectName"`
	StaffID     string `db:"staff_id" json:"staffId"`
	StaffName   string `db:"staff_name" json:"staffName"`
	RoomNo      string `db:"room_no" json:"roomNo"`
	Year        string `db:"year" json:"year"`
	CourseID    string `db:"course_id" json:"courseId"`
	CourseName  string `db:"course_name" json:"courseName"`
	Semester    string `db:"semester" json:"semester"`
}

// TimetableFilter narrows grid row queries. Empty fields match everything.
type TimetableFilter struct {
	Year     string
	CourseID string
	Semester string
	StaffID  string
}
