package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceAbsent    AttendanceStatus = "absent"
	AttendancePresent   AttendanceStatus = "present"
	AttendanceLate      AttendanceStatus = "late"
	AttendanceLeftEarly AttendanceStatus = "left_early"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceAbsent, AttendancePresent, AttendanceLate, AttendanceLeftEarly:
		return true
	default:
		return false
	}
}

// Joined reports whether the status implies the student entered the session.
func (s AttendanceStatus) Joined() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// AttendanceRecord is keyed by the (SessionID, StudentID) pair.
type AttendanceRecord struct {
	ID                 string           `db:"id" json:"id"`
	SessionID          string           `db:"session_id" json:"session_id"`
	StudentID          string           `db:"student_id" json:"student_id"`
	Status             AttendanceStatus `db:"status" json:"status"`
	JoinedAt           *time.Time       `db:"joined_at" json:"joined_at,omitempty"`
	LeftAt             *time.Time       `db:"left_at" json:"left_at,omitempty"`
	DurationMinutes    int              `db:"duration_minutes" json:"duration_minutes"`
	ParticipationScore int              `db:"participation_score" json:"participation_score"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// NewBaselineAttendance returns the row created when a student joins a roster.
func NewBaselineAttendance(sessionID, studentID string) AttendanceRecord {
	return AttendanceRecord{SessionID: sessionID, StudentID: studentID, Status: AttendanceAbsent}
}

// SessionStats aggregates a session's attendance rows.
type SessionStats struct {
	SessionID        string `json:"session_id"`
	Total            int    `json:"total"`
	Present          int    `json:"present"`
	Absent           int    `json:"absent"`
	Late             int    `json:"late"`
	LeftEarly        int    `json:"left_early"`
	AvgParticipation int    `json:"avg_participation"`
}

// AttendanceOutcome reports the result of one row in a bulk mark.
type AttendanceOutcome struct {
	StudentID string            `json:"student_id"`
	Record    *AttendanceRecord `json:"record,omitempty"`
	Error     *OutcomeError     `json:"error,omitempty"`
}

// OutcomeError is the serialisable failure of one unit in a partial batch.
type OutcomeError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
