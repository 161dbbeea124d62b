package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/liveclass-api/internal/models"
	"github.com/noah-isme/liveclass-api/internal/repository"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
)

type bookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	ListActiveByTeacherOnDate(ctx context.Context, teacherID string, date time.Time) ([]models.Booking, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	Create(ctx context.Context, booking *models.Booking) error
	UpdateStatus(ctx context.Context, booking *models.Booking, from models.BookingStatus) error
}

type slotResolver interface {
	FreeSlots(ctx context.Context, teacherID string, date time.Time) ([]models.Slot, error)
	SlotMinutes() int
}

// CreateBookingRequest is the public trial intake payload.
type CreateBookingRequest struct {
	StudentName  string  `json:"student_name" validate:"required,max=120"`
	StudentPhone string  `json:"student_phone" validate:"required,max=32"`
	StudentEmail *string `json:"student_email" validate:"omitempty,email"`
	Level        *string `json:"level" validate:"omitempty,max=64"`
	TeacherID    string  `json:"teacher_id" validate:"required"`
	CourseID     *string `json:"course_id"`
	Date         string  `json:"date" validate:"required"`
	Time         string  `json:"time" validate:"required"`
	Notes        *string `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateBookingStatusRequest requests a booking lifecycle transition.
type UpdateBookingStatusRequest struct {
	Status models.BookingStatus `json:"status" validate:"required"`
}

// BookingService runs the trial booking lifecycle. Booking slots are
// advisory: overlaps are reported alongside the booking, never rejected.
type BookingService struct {
	repo      bookingRepository
	sessions  activeSessionLister
	slots     slotResolver
	teachers  teacherLookup
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(repo bookingRepository, sessions activeSessionLister, slots slotResolver, teachers teacherLookup, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		repo:      repo,
		sessions:  sessions,
		slots:     slots,
		teachers:  teachers,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns bookings with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	for _, status := range filter.Status {
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown booking status %q", status))
		}
	}
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a booking by id.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// Create stores a pending booking and returns the advisories raised by its slot.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*models.BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	at, err := models.ParseTimeOfDay(req.Time)
	if err != nil || int(at) >= models.MinutesPerDay {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid booking time %q", req.Time))
	}
	if s.teachers != nil {
		if _, err := s.teachers.FindByID(ctx, req.TeacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
	}

	booking := &models.Booking{
		StudentName:  req.StudentName,
		StudentPhone: req.StudentPhone,
		StudentEmail: req.StudentEmail,
		Level:        req.Level,
		TeacherID:    req.TeacherID,
		CourseID:     req.CourseID,
		Date:         date,
		Time:         at,
		Status:       models.BookingPending,
		Notes:        req.Notes,
	}

	advisories, err := s.advisories(ctx, booking)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	if len(advisories) > 0 {
		s.logger.Info("booking accepted with advisories",
			zap.String("booking_id", booking.ID),
			zap.String("teacher_id", booking.TeacherID),
			zap.Int("advisories", len(advisories)))
	}
	s.metrics.BookingCreated(len(advisories))
	s.invalidateCalendar(ctx)
	return &models.BookingResult{Booking: booking, Advisories: advisories}, nil
}

func (s *BookingService) slotMinutes() int {
	if s.slots == nil || s.slots.SlotMinutes() <= 0 {
		return 60
	}
	return s.slots.SlotMinutes()
}

// advisories flags active sessions and other active bookings that overlap the
// booking's slot, and slots not fully covered by the teacher's free time.
func (s *BookingService) advisories(ctx context.Context, booking *models.Booking) ([]models.BookingAdvisory, error) {
	advisories := make([]models.BookingAdvisory, 0)
	slot := booking.Slot(s.slotMinutes())

	overlapping := false
	if s.sessions != nil {
		sessions, err := s.sessions.ListActiveByTeacherOnDate(ctx, booking.TeacherID, booking.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher sessions")
		}
		for _, session := range sessions {
			if !session.Status.Active() || !session.Slot().Overlaps(slot) {
				continue
			}
			overlapping = true
			id := session.ID
			advisories = append(advisories, models.BookingAdvisory{
				Kind:      models.AdvisoryOverlapsSession,
				Message:   fmt.Sprintf("teacher has %q from %s to %s", session.Title, session.StartTime, session.EndTime),
				SessionID: &id,
			})
		}
	}

	if s.slots != nil && !overlapping {
		free, err := s.slots.FreeSlots(ctx, booking.TeacherID, booking.Date)
		if err != nil {
			return nil, err
		}
		if !slotsCover(free, slot) {
			advisories = append(advisories, models.BookingAdvisory{
				Kind:    models.AdvisoryOutsideAvailability,
				Message: fmt.Sprintf("%s %s-%s is outside the teacher's free slots", booking.Date.Format(models.DateLayout), slot.Start, slot.End),
			})
		}
	}

	others, err := s.repo.ListActiveByTeacherOnDate(ctx, booking.TeacherID, booking.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher bookings")
	}
	for _, other := range others {
		if other.ID == booking.ID || !other.Slot(s.slotMinutes()).Overlaps(slot) {
			continue
		}
		id := other.ID
		advisories = append(advisories, models.BookingAdvisory{
			Kind:      models.AdvisorySharedSlot,
			Message:   fmt.Sprintf("another trial for %s is booked at %s", other.StudentName, other.Time),
			BookingID: &id,
		})
	}
	return advisories, nil
}

// slotsCover reports whether the ascending free slots leave no gap inside want.
func slotsCover(free []models.Slot, want models.Slot) bool {
	cursor := want.Start
	for _, slot := range free {
		if slot.Start <= cursor && slot.End > cursor {
			cursor = slot.End
		}
		if cursor >= want.End {
			return true
		}
	}
	return false
}

// UpdateStatus applies a booking lifecycle transition.
func (s *BookingService) UpdateStatus(ctx context.Context, id string, req UpdateBookingStatusRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown booking status %q", req.Status))
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot change booking status from %s to %s", current.Status, req.Status))
	}

	updated := *current
	updated.Status = req.Status
	if err := s.repo.UpdateStatus(ctx, &updated, current.Status); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "booking was modified by another request, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking status")
	}
	s.invalidateCalendar(ctx)
	return &updated, nil
}

// Suggest lists the teacher's free slots on date with the number of active
// bookings overlapping each.
func (s *BookingService) Suggest(ctx context.Context, teacherID string, date time.Time) ([]models.SlotSuggestion, error) {
	free, err := s.slots.FreeSlots(ctx, teacherID, date)
	if err != nil {
		return nil, err
	}
	bookings, err := s.repo.ListActiveByTeacherOnDate(ctx, teacherID, models.DateOnly(date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher bookings")
	}
	suggestions := make([]models.SlotSuggestion, 0, len(free))
	for _, slot := range free {
		suggestion := models.SlotSuggestion{Slot: slot}
		for _, booking := range bookings {
			if booking.Slot(s.slotMinutes()).Overlaps(slot) {
				suggestion.ActiveBookings++
			}
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, nil
}

func (s *BookingService) invalidateCalendar(ctx context.Context) {
	s.cache.InvalidateCalendars(ctx)
}
