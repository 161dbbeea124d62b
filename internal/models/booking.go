package models

import "time"

// BookingStatus is the lifecycle state of a trial booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// Valid returns true when the status is a supported value.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether the booking still holds its slot.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

// CanTransitionTo reports whether next is an allowed edge from s.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking is a free-trial request from a prospective student.
type Booking struct {
	ID           string        `db:"id" json:"id"`
	StudentName  string        `db:"student_name" json:"student_name"`
	StudentPhone string        `db:"student_phone" json:"student_phone"`
	StudentEmail *string       `db:"student_email" json:"student_email,omitempty"`
	Level        *string       `db:"level" json:"level,omitempty"`
	TeacherID    string        `db:"teacher_id" json:"teacher_id"`
	CourseID     *string       `db:"course_id" json:"course_id,omitempty"`
	Date         time.Time     `db:"booking_date" json:"date"`
	Time         TimeOfDay     `db:"booking_time" json:"time"`
	Status       BookingStatus `db:"status" json:"status"`
	Notes        *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// Slot is the window the booking occupies: slotMinutes from its start time,
// cut off at midnight.
func (b Booking) Slot(slotMinutes int) Slot {
	end := b.Time.Add(slotMinutes)
	if !end.Valid() {
		end = TimeOfDay(MinutesPerDay)
	}
	return Slot{Start: b.Time, End: end}
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	TeacherID string
	Status    []BookingStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// Advisory kinds attached to bookings. None of them block the booking.
const (
	AdvisoryOverlapsSession     = "overlaps_session"
	AdvisoryOutsideAvailability = "outside_availability"
	AdvisorySharedSlot          = "shared_slot"
)

// BookingAdvisory flags a non-fatal scheduling concern.
type BookingAdvisory struct {
	Kind      string  `json:"kind"`
	Message   string  `json:"message"`
	SessionID *string `json:"session_id,omitempty"`
	BookingID *string `json:"booking_id,omitempty"`
}

// BookingResult pairs the authoritative booking with its advisories.
type BookingResult struct {
	Booking    *Booking          `json:"booking"`
	Advisories []BookingAdvisory `json:"advisories"`
}

// SlotSuggestion is a free slot annotated with existing trial demand.
type SlotSuggestion struct {
	Slot
	ActiveBookings int `json:"active_bookings"`
}
