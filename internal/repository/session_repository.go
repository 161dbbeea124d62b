package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/liveclass-api/internal/models"
)

const sessionColumns = `id, teacher_id, batch_id, title, session_date, start_time, end_time, duration_minutes, status, meet_link, invited_students, version, created_at, updated_at`

// SessionRepository provides persistence for live sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns sessions with optional filtering and pagination.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.LiveSession, int, error) {
	base := "FROM live_sessions WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("session_date >= $%d", len(args)+1))
		args = append(args, filter.From.Format(models.DateLayout))
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("session_date <= $%d", len(args)+1))
		args = append(args, filter.To.Format(models.DateLayout))
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY session_date ASC, start_time ASC LIMIT %d OFFSET %d", sessionColumns, base, size, offset)
	var sessions []models.LiveSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	return sessions, total, nil
}

// FindByID loads a session by id. Missing rows surface as sql.ErrNoRows.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.LiveSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM live_sessions WHERE id = $1`
	var session models.LiveSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListActiveByTeacherOnDate returns the scheduled and live sessions occupying a teacher's date.
func (r *SessionRepository) ListActiveByTeacherOnDate(ctx context.Context, teacherID string, date time.Time) ([]models.LiveSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM live_sessions WHERE teacher_id = $1 AND session_date = $2 AND status IN ('scheduled', 'live') ORDER BY start_time ASC`
	var sessions []models.LiveSession
	if err := r.db.SelectContext(ctx, &sessions, query, teacherID, date.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// Create stores a new session record. An overlapping active session for the
// same teacher fails with ErrSlotTaken.
func (r *SessionRepository) Create(ctx context.Context, session *models.LiveSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	session.Version = 1
	if session.InvitedStudents == nil {
		session.InvitedStudents = pq.StringArray{}
	}

	const query = `INSERT INTO live_sessions (id, teacher_id, batch_id, title, session_date, start_time, end_time, duration_minutes, status, meet_link, invited_students, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err := r.db.ExecContext(ctx, query,
		session.ID, session.TeacherID, session.BatchID, session.Title, session.Date.Format(models.DateLayout),
		session.StartTime, session.EndTime, session.DurationMinutes, session.Status, session.MeetLink,
		session.InvitedStudents, session.Version, session.CreatedAt, session.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create session: %w", translate(err))
	}
	return nil
}

// UpdateSchedule moves a session guarded by its version.
func (r *SessionRepository) UpdateSchedule(ctx context.Context, session *models.LiveSession) error {
	const query = `UPDATE live_sessions SET session_date = $1, start_time = $2, end_time = $3, version = version + 1, updated_at = $4
WHERE id = $5 AND version = $6 RETURNING version, updated_at`
	return r.versionedUpdate(ctx, session, "update session schedule", query,
		session.Date.Format(models.DateLayout), session.StartTime, session.EndTime, time.Now().UTC(), session.ID, session.Version)
}

// UpdateStatus changes a session's lifecycle state guarded by its version.
func (r *SessionRepository) UpdateStatus(ctx context.Context, session *models.LiveSession) error {
	const query = `UPDATE live_sessions SET status = $1, version = version + 1, updated_at = $2
WHERE id = $3 AND version = $4 RETURNING version, updated_at`
	return r.versionedUpdate(ctx, session, "update session status", query,
		session.Status, time.Now().UTC(), session.ID, session.Version)
}

// UpdateDetails changes descriptive fields and the invite list guarded by the version.
func (r *SessionRepository) UpdateDetails(ctx context.Context, session *models.LiveSession) error {
	const query = `UPDATE live_sessions SET title = $1, batch_id = $2, meet_link = $3, invited_students = $4, version = version + 1, updated_at = $5
WHERE id = $6 AND version = $7 RETURNING version, updated_at`
	return r.versionedUpdate(ctx, session, "update session details", query,
		session.Title, session.BatchID, session.MeetLink, session.InvitedStudents, time.Now().UTC(), session.ID, session.Version)
}

func (r *SessionRepository) versionedUpdate(ctx context.Context, session *models.LiveSession, op, query string, args ...interface{}) error {
	var bumped struct {
		Version   int       `db:"version"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	if err := r.db.GetContext(ctx, &bumped, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, ErrStaleVersion)
		}
		return fmt.Errorf("%s: %w", op, translate(err))
	}
	session.Version = bumped.Version
	session.UpdatedAt = bumped.UpdatedAt
	return nil
}

// Delete removes a session and its attendance history in one transaction.
func (r *SessionRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM session_attendance WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session attendance: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM live_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	return nil
}
