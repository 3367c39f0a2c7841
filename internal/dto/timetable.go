package dto

import "time"

// Generation status values.
const (
	GenerationStatusComplete = "COMPLETE"
	GenerationStatusPartial  = "PARTIAL"
)

// Batch status values.
const (
	BatchStatusQueued    = "QUEUED"
	BatchStatusRunning   = "RUNNING"
	BatchStatusCompleted = "COMPLETED"
	BatchStatusFailed    = "FAILED"
)

// CohortQuery selects one cohort timetable.
type CohortQuery struct {
	Year     string `form:"year" json:"year" validate:"required,oneof=I II III IV"`
	CourseID string `form:"courseId" json:"courseId" validate:"required"`
	Semester string `form:"semester" json:"semester" validate:"required"`
}

// GenerateTimetableRequest asks for a cohort timetable to be regenerated.
type GenerateTimetableRequest struct {
	Year     string `json:"year" validate:"required,oneof=I II III IV"`
	CourseID string `json:"courseId" validate:"required"`
	Semester string `json:"semester" validate:"required"`
	// Seed makes the run reproducible when set.
	Seed *int64 `json:"seed,omitempty"`
}

// ShortfallView reports unmet weekly hours for a subject.
type ShortfallView struct {
	SubjectID   string `json:"subjectId"`
	SubjectCode string `json:"subjectCode,omitempty"`
	UnmetHours  int    `json:"unmetHours"`
}

// GenerateTimetableResponse summarises one generation run.
type GenerateTimetableResponse struct {
	Year           string          `json:"year"`
	CourseID       string          `json:"courseId"`
	Semester       string          `json:"semester"`
	Status         string          `json:"status"`
	PlacedCount    int             `json:"placedCount"`
	ReplacedCount  int64           `json:"replacedCount"`
	Shortfalls     []ShortfallView `json:"shortfalls"`
	Unassignable   []string        `json:"unassignable"`
	Iterations     int             `json:"iterations"`
	RelaxedPlaced  int             `json:"relaxedPlaced,omitempty"`
	Strategy       string          `json:"strategy"`
	Seed           int64           `json:"seed"`
	DurationMillis int64           `json:"durationMs"`
}

// CohortOutcome is one cohort's result inside a batch run.
type CohortOutcome struct {
	Year      string                     `json:"year"`
	CourseID  string                     `json:"courseId"`
	Semester  string                     `json:"semester"`
	Result    *GenerateTimetableResponse `json:"result,omitempty"`
	ErrorCode string                     `json:"errorCode,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// BatchStatusResponse tracks a generate-all job.
type BatchStatusResponse struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Outcomes   []CohortOutcome `json:"outcomes"`
	CreatedAt  time.Time       `json:"createdAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// GridResponse is the projected weekly grid of one cohort.
type GridResponse struct {
	Year       string              `json:"year"`
	CourseID   string              `json:"courseId"`
	CourseName string              `json:"courseName,omitempty"`
	Semester   string              `json:"semester"`
	Periods    []PeriodView        `json:"periods"`
	Days       []string            `json:"days"`
	Grid       map[string][]string `json:"grid"`
}

// MasterTimetableResponse lists code-only grids for every cohort of the requested years.
type MasterTimetableResponse struct {
	Year    string         `json:"year"`
	Periods []PeriodView   `json:"periods"`
	Cohorts []GridResponse `json:"cohorts"`
}

// PeriodView is a period with its clock times.
type PeriodView struct {
	ID        string `json:"id"`
	PeriodNo  int    `json:"periodNo"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// StaffScheduleEntry is one class on a staff member's week.
type StaffScheduleEntry struct {
	EntryID     string `json:"entryId"`
	Day         string `json:"day"`
	PeriodNo    int    `json:"periodNo"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	SubjectCode string `json:"subjectCode"`
	SubjectName string `json:"subjectName"`
	RoomNo      string `json:"roomNo"`
	Year        string `json:"year"`
	CourseID    string `json:"courseId"`
	CourseName  string `json:"courseName"`
	Semester    string `json:"semester"`
}

// StaffScheduleResponse is a staff member's weekly timetable.
type StaffScheduleResponse struct {
	StaffID   string               `json:"staffId"`
	StaffName string               `json:"staffName"`
	Entries   []StaffScheduleEntry `json:"entries"`
	Grid      map[string][]string  `json:"grid"`
}

// ConflictView is one persisted double booking or cap overflow.
type ConflictView struct {
	Dimension string   `json:"dimension"`
	Key       string   `json:"key"`
	Day       string   `json:"day"`
	PeriodNo  int      `json:"periodNo,omitempty"`
	EntryIDs  []string `json:"entryIds"`
}

// ConflictReport is the output of an occupancy audit.
type ConflictReport struct {
	CheckedEntries int            `json:"checkedEntries"`
	Conflicts      []ConflictView `json:"conflicts"`
	CheckedAt      time.Time      `json:"checkedAt"`
}

// WorkloadView reports one staff member's load against their cap.
type WorkloadView struct {
	StaffID        string `json:"staffId"`
	StaffCode      string `json:"staffCode"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	MaxHours       int    `json:"maxHours"`
	AssignedHours  int    `json:"assignedHours"`
	ScheduledHours int    `json:"scheduledHours"`
	Overloaded     bool   `json:"overloaded"`
}

// ExportQuery selects the export format and scope.
type ExportQuery struct {
	Format   string `form:"format" validate:"required,oneof=csv pdf xlsx"`
	Year     string `form:"year" validate:"omitempty,oneof=I II III IV"`
	CourseID string `form:"courseId"`
	Semester string `form:"semester"`
}

// CalendarQuery anchors a staff calendar export.
type CalendarQuery struct {
	From  string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	Weeks int    `form:"weeks" validate:"omitempty,min=1,max=52"`
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
