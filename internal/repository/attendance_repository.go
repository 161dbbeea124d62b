package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/liveclass-api/internal/models"
)

const attendanceColumns = `id, session_id, student_id, status, joined_at, left_at, duration_minutes, participation_score, created_at, updated_at`

// AttendanceRepository persists per-session attendance rows keyed by (session_id, student_id).
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListBySession returns every attendance row of a session.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM session_attendance WHERE session_id = $1 ORDER BY student_id ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}
	return records, nil
}

// Find loads the row for a (session, student) pair. Missing rows surface as sql.ErrNoRows.
func (r *AttendanceRepository) Find(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM session_attendance WHERE session_id = $1 AND student_id = $2`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, sessionID, studentID); err != nil {
		return nil, err
	}
	return &record, nil
}

// InsertBaseline creates absent rows for the given students and leaves existing
// pairs untouched. It returns how many rows were actually inserted.
func (r *AttendanceRepository) InsertBaseline(ctx context.Context, sessionID string, studentIDs []string) (inserted int, err error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin baseline attendance: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO session_attendance (id, session_id, student_id, status, duration_minutes, participation_score, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, 0, $5, $5)
ON CONFLICT (session_id, student_id) DO NOTHING`
	for _, studentID := range studentIDs {
		res, execErr := tx.ExecContext(ctx, query, uuid.NewString(), sessionID, studentID, models.AttendanceAbsent, now)
		if execErr != nil {
			err = fmt.Errorf("insert baseline attendance: %w", execErr)
			return 0, err
		}
		if n, rowsErr := res.RowsAffected(); rowsErr == nil {
			inserted += int(n)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit baseline attendance: %w", err)
	}
	return inserted, nil
}

// Upsert writes a record on its (session, student) key and returns the stored row.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO session_attendance (` + attendanceColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (session_id, student_id)
DO UPDATE SET status = EXCLUDED.status, joined_at = EXCLUDED.joined_at, left_at = EXCLUDED.left_at,
duration_minutes = EXCLUDED.duration_minutes, participation_score = EXCLUDED.participation_score, updated_at = EXCLUDED.updated_at
RETURNING ` + attendanceColumns
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.SessionID, record.StudentID, record.Status, record.JoinedAt, record.LeftAt,
		record.DurationMinutes, record.ParticipationScore, record.CreatedAt, record.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("upsert session attendance: %w", err)
	}
	return &stored, nil
}
