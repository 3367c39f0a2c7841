package models

// Classroom is a bookable room. Type and capacity are informational only.
type Classroom struct {
	ID       string `db:"id" json:"id"`
	RoomNo   string `db:"room_no" json:"roomNo"`
	RoomType string `db:"room_type" json:"roomType"`
	Capacity int    `db:"capacity" json:"capacity"`
}

// Period is one teaching period of the day.
type Period struct {
	ID        string `db:"id" json:"id"`
	PeriodNo  int    `db:"period_no" json:"periodNo"`
	StartTime string `db:"start_time" json:"startTime"`
	EndTime   string `db:"end_time" json:"endTime"`
}
