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

const bookingColumns = `id, student_name, student_phone, student_email, level, teacher_id, course_id, booking_date, booking_time, status, notes, created_at, updated_at`

// BookingRepository persists trial bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// List returns bookings with optional filtering and pagination.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM trial_bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
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
		conditions = append(conditions, fmt.Sprintf("booking_date >= $%d", len(args)+1))
		args = append(args, filter.From.Format(models.DateLayout))
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("booking_date <= $%d", len(args)+1))
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY booking_date ASC, booking_time ASC LIMIT %d OFFSET %d", bookingColumns, base, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// ListActiveByTeacherOnDate returns pending and confirmed bookings for a teacher's date.
func (r *BookingRepository) ListActiveByTeacherOnDate(ctx context.Context, teacherID string, date time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM trial_bookings WHERE teacher_id = $1 AND booking_date = $2 AND status IN ('pending', 'confirmed') ORDER BY booking_time ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, teacherID, date.Format(models.DateLayout)); err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	return bookings, nil
}

// FindByID loads a booking by id. Missing rows surface as sql.ErrNoRows.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM trial_bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// Create stores a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	query := `INSERT INTO trial_bookings (` + bookingColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(ctx, query,
		booking.ID, booking.StudentName, booking.StudentPhone, booking.StudentEmail, booking.Level, booking.TeacherID,
		booking.CourseID, booking.Date.Format(models.DateLayout), booking.Time, booking.Status, booking.Notes,
		booking.CreatedAt, booking.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// UpdateStatus moves a booking from one status to another. The update only
// applies while the row still holds the expected previous status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, booking *models.Booking, from models.BookingStatus) error {
	const query = `UPDATE trial_bookings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4 RETURNING updated_at`
	var updatedAt time.Time
	if err := r.db.GetContext(ctx, &updatedAt, query, booking.Status, time.Now().UTC(), booking.ID, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update booking status: %w", ErrStaleVersion)
		}
		return fmt.Errorf("update booking status: %w", err)
	}
	booking.UpdatedAt = updatedAt
	return nil
}
