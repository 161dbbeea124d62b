package models

import "time"

// AvailabilityWindow is a teacher's recurring weekly free period.
type AvailabilityWindow struct {
	ID        string       `db:"id" json:"id"`
	TeacherID string       `db:"teacher_id" json:"teacher_id"`
	Weekday   time.Weekday `db:"weekday" json:"weekday"`
	StartTime TimeOfDay    `db:"start_time" json:"start_time"`
	EndTime   TimeOfDay    `db:"end_time" json:"end_time"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// Slot returns the window as a day-relative slot.
func (w AvailabilityWindow) Slot() Slot {
	return Slot{Start: w.StartTime, End: w.EndTime}
}

// BlockedDate removes all availability for a teacher on one date.
type BlockedDate struct {
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Date      time.Time `db:"blocked_date" json:"date"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// WeeklyAvailability is the full availability picture for one teacher.
type WeeklyAvailability struct {
	TeacherID    string               `json:"teacher_id"`
	Windows      []AvailabilityWindow `json:"windows"`
	BlockedDates []BlockedDate        `json:"blocked_dates"`
}
