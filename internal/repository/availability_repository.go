package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/liveclass-api/internal/models"
)

const availabilityColumns = `id, teacher_id, weekday, start_time, end_time, created_at`

// AvailabilityRepository persists teacher availability windows and blocked dates.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListWindows returns all weekly windows for a teacher.
func (r *AvailabilityRepository) ListWindows(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error) {
	query := `SELECT ` + availabilityColumns + ` FROM teacher_availability WHERE teacher_id = $1 ORDER BY weekday ASC, start_time ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// ListWindowsForWeekday returns a teacher's windows on one weekday.
func (r *AvailabilityRepository) ListWindowsForWeekday(ctx context.Context, teacherID string, weekday time.Weekday) ([]models.AvailabilityWindow, error) {
	query := `SELECT ` + availabilityColumns + ` FROM teacher_availability WHERE teacher_id = $1 AND weekday = $2 ORDER BY start_time ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, teacherID, int(weekday)); err != nil {
		return nil, fmt.Errorf("list availability windows for weekday: %w", err)
	}
	return windows, nil
}

// ReplaceWindows swaps a teacher's weekly windows atomically.
func (r *AvailabilityRepository) ReplaceWindows(ctx context.Context, teacherID string, windows []models.AvailabilityWindow) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace availability: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM teacher_availability WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("clear availability: %w", err)
	}

	now := time.Now().UTC()
	for i := range windows {
		w := &windows[i]
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		w.TeacherID = teacherID
		w.CreatedAt = now
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO teacher_availability (id, teacher_id, weekday, start_time, end_time, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			w.ID, w.TeacherID, int(w.Weekday), w.StartTime, w.EndTime, w.CreatedAt,
		); err != nil {
			err = translate(err)
			return fmt.Errorf("insert availability window: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace availability: %w", err)
	}
	return nil
}

// IsBlocked reports whether the teacher has blocked the date.
func (r *AvailabilityRepository) IsBlocked(ctx context.Context, teacherID string, date time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM teacher_blocked_dates WHERE teacher_id = $1 AND blocked_date = $2)`
	var blocked bool
	if err := r.db.GetContext(ctx, &blocked, query, teacherID, date.Format(models.DateLayout)); err != nil {
		return false, fmt.Errorf("check blocked date: %w", err)
	}
	return blocked, nil
}

// ListBlockedDates returns a teacher's blocked dates from the given day onward.
func (r *AvailabilityRepository) ListBlockedDates(ctx context.Context, teacherID string, from time.Time) ([]models.BlockedDate, error) {
	const query = `SELECT teacher_id, blocked_date, reason, created_at FROM teacher_blocked_dates WHERE teacher_id = $1 AND blocked_date >= $2 ORDER BY blocked_date ASC`
	var dates []models.BlockedDate
	if err := r.db.SelectContext(ctx, &dates, query, teacherID, from.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("list blocked dates: %w", err)
	}
	return dates, nil
}

// BlockDate marks a date unavailable; re-blocking updates the reason.
func (r *AvailabilityRepository) BlockDate(ctx context.Context, blocked *models.BlockedDate) error {
	if blocked.CreatedAt.IsZero() {
		blocked.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teacher_blocked_dates (teacher_id, blocked_date, reason, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (teacher_id, blocked_date) DO UPDATE SET reason = EXCLUDED.reason`
	if _, err := r.db.ExecContext(ctx, query, blocked.TeacherID, blocked.Date.Format(models.DateLayout), blocked.Reason, blocked.CreatedAt); err != nil {
		return fmt.Errorf("block date: %w", err)
	}
	return nil
}

// UnblockDate removes a blocked date. Removing a date that is not blocked is a no-op.
func (r *AvailabilityRepository) UnblockDate(ctx context.Context, teacherID string, date time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teacher_blocked_dates WHERE teacher_id = $1 AND blocked_date = $2`, teacherID, date.Format(models.DateLayout)); err != nil {
		return fmt.Errorf("unblock date: %w", err)
	}
	return nil
}
