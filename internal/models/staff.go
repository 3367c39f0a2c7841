package models

// Staff is a faculty member who can be assigned to subjects.
type Staff struct {
	ID         string `db:"id" json:"id"`
	StaffCode  string `db:"staff_code" json:"staffCode"`
	Name       string `db:"name" json:"name"`
	Department string `db:"department" json:"department"`
	MaxHours   int    `db:"max_hours" json:"maxHours"`
}

// StaffAssignment records that a staff member can teach a subject.
type StaffAssignment struct {
	StaffID   string `db:"staff_id" json:"staffId"`
	SubjectID string `db:"subject_id" json:"subjectId"`
}

// StaffWorkload aggregates assigned and scheduled hours for one staff member.
type StaffWorkload struct {
	StaffID        string `db:"staff_id" json:"staffId"`
	StaffCode      string `db:"staff_code" json:"staffCode"`
	Name           string `db:"name" json:"name"`
	Department     string `db:"department" json:"department"`
	MaxHours       int    `db:"max_hours" json:"maxHours"`
	AssignedHours  int    `db:"assigned_hours" json:"assignedHours"`
	ScheduledHours int    `db:"scheduled_hours" json:"scheduledHours"`
}
