package models

import "time"

// Calendar entry kinds.
const (
	CalendarEntrySession = "session"
	CalendarEntryBooking = "booking"
)

// CalendarEntry is one session or booking projected onto the calendar.
type CalendarEntry struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

// CalendarHour groups entries starting within the same hour.
type CalendarHour struct {
	Hour    int             `json:"hour"`
	Entries []CalendarEntry `json:"entries"`
}

// CalendarDay groups a date's entries by hour.
type CalendarDay struct {
	Date  string         `json:"date"`
	Hours []CalendarHour `json:"hours"`
}

// CalendarQuery bounds a calendar projection. From and To are inclusive dates.
type CalendarQuery struct {
	TeacherID string
	From      time.Time
	To        time.Time
}
