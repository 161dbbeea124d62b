package models

import (
	"time"

	"github.com/lib/pq"
)

// SessionStatus is the lifecycle state of a live session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionLive      SessionStatus = "live"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// live → cancelled is deliberately absent: an in-progress session keeps its attendance.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionScheduled: {SessionLive, SessionCancelled},
	SessionLive:      {SessionCompleted},
}

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionLive, SessionCompleted, SessionCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further mutation is permitted.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// Active reports whether the session occupies its teacher's calendar.
func (s SessionStatus) Active() bool {
	return s == SessionScheduled || s == SessionLive
}

// CanTransitionTo reports whether next is an allowed edge from s.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// LiveSession is a scheduled online class for one batch.
type LiveSession struct {
	ID              string         `db:"id" json:"id"`
	TeacherID       string         `db:"teacher_id" json:"teacher_id"`
	BatchID         string         `db:"batch_id" json:"batch_id"`
	Title           string         `db:"title" json:"title"`
	Date            time.Time      `db:"session_date" json:"date"`
	StartTime       TimeOfDay      `db:"start_time" json:"start_time"`
	EndTime         TimeOfDay      `db:"end_time" json:"end_time"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	Status          SessionStatus  `db:"status" json:"status"`
	MeetLink        *string        `db:"meet_link" json:"meet_link,omitempty"`
	InvitedStudents pq.StringArray `db:"invited_students" json:"invited_students"`
	Version         int            `db:"version" json:"version"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Slot returns the session's occupied window on its date.
func (s LiveSession) Slot() Slot {
	return Slot{Start: s.StartTime, End: s.EndTime}
}

// Collides reports whether s and other occupy overlapping time on the same date.
func (s LiveSession) Collides(other LiveSession) bool {
	return DateOnly(s.Date).Equal(DateOnly(other.Date)) && s.Slot().Overlaps(other.Slot())
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	TeacherID string
	BatchID   string
	Status    []SessionStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// SessionConflict describes the existing session that blocks a slot.
type SessionConflict struct {
	SessionID string    `json:"session_id"`
	TeacherID string    `json:"teacher_id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

// SessionConflictError is returned when a session would double-book its teacher.
type SessionConflictError struct {
	Message  string          `json:"message"`
	Conflict SessionConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *SessionConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Details exposes the colliding session to API clients.
func (e *SessionConflictError) Details() interface{} {
	return e.Conflict
}

// NewSessionConflict builds a conflict error against an existing session.
func NewSessionConflict(message string, existing LiveSession) *SessionConflictError {
	return &SessionConflictError{
		Message: message,
		Conflict: SessionConflict{
			SessionID: existing.ID,
			TeacherID: existing.TeacherID,
			Title:     existing.Title,
			Date:      existing.Date.Format(DateLayout),
			StartTime: existing.StartTime,
			EndTime:   existing.EndTime,
		},
	}
}
