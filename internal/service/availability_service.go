package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/liveclass-api/internal/models"
	"github.com/noah-isme/liveclass-api/internal/repository"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
)

type availabilityRepository interface {
	ListWindows(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error)
	ListWindowsForWeekday(ctx context.Context, teacherID string, weekday time.Weekday) ([]models.AvailabilityWindow, error)
	ReplaceWindows(ctx context.Context, teacherID string, windows []models.AvailabilityWindow) error
	IsBlocked(ctx context.Context, teacherID string, date time.Time) (bool, error)
	ListBlockedDates(ctx context.Context, teacherID string, from time.Time) ([]models.BlockedDate, error)
	BlockDate(ctx context.Context, blocked *models.BlockedDate) error
	UnblockDate(ctx context.Context, teacherID string, date time.Time) error
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type activeSessionLister interface {
	ListActiveByTeacherOnDate(ctx context.Context, teacherID string, date time.Time) ([]models.LiveSession, error)
}

// AvailabilityWindowInput is one weekly window in a replace request.
type AvailabilityWindowInput struct {
	Weekday   time.Weekday     `json:"weekday" validate:"min=0,max=6"`
	StartTime models.TimeOfDay `json:"start_time"`
	EndTime   models.TimeOfDay `json:"end_time"`
}

// ReplaceAvailabilityRequest swaps a teacher's whole weekly pattern.
type ReplaceAvailabilityRequest struct {
	Windows []AvailabilityWindowInput `json:"windows" validate:"dive"`
}

// BlockDateRequest removes all availability on one date.
type BlockDateRequest struct {
	Date   string  `json:"date" validate:"required"`
	Reason *string `json:"reason"`
}

// AvailabilityService resolves free slots from weekly windows, blocked dates
// and the teacher's active sessions.
type AvailabilityService struct {
	repo        availabilityRepository
	sessions    activeSessionLister
	teachers    teacherLookup
	validator   *validator.Validate
	logger      *zap.Logger
	slotMinutes int
	now         func() time.Time
}

// NewAvailabilityService constructs the service. slotMinutes is the scheduling unit.
func NewAvailabilityService(repo availabilityRepository, sessions activeSessionLister, teachers teacherLookup, slotMinutes int, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if slotMinutes <= 0 {
		slotMinutes = 60
	}
	return &AvailabilityService{
		repo:        repo,
		sessions:    sessions,
		teachers:    teachers,
		validator:   validate,
		logger:      logger,
		slotMinutes: slotMinutes,
		now:         time.Now,
	}
}

// SlotMinutes reports the configured slot length.
func (s *AvailabilityService) SlotMinutes() int {
	return s.slotMinutes
}

// FreeSlots returns the teacher's unoccupied slots on date in ascending order.
// A blocked date or a weekday without windows yields an empty list.
func (s *AvailabilityService) FreeSlots(ctx context.Context, teacherID string, date time.Time) ([]models.Slot, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}
	date = models.DateOnly(date)

	blocked, err := s.repo.IsBlocked(ctx, teacherID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check blocked dates")
	}
	if blocked {
		return []models.Slot{}, nil
	}

	windows, err := s.repo.ListWindowsForWeekday(ctx, teacherID, date.Weekday())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if len(windows) == 0 {
		return []models.Slot{}, nil
	}

	sessions, err := s.sessions.ListActiveByTeacherOnDate(ctx, teacherID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher sessions")
	}

	return freeSlots(windows, sessions, s.slotMinutes), nil
}

// freeSlots cuts every window into whole slots and drops those touched by a session.
func freeSlots(windows []models.AvailabilityWindow, sessions []models.LiveSession, slotMinutes int) []models.Slot {
	slots := make([]models.Slot, 0)
	for _, w := range windows {
		for start := w.StartTime; start.Add(slotMinutes) <= w.EndTime; start = start.Add(slotMinutes) {
			slot := models.Slot{Start: start, End: start.Add(slotMinutes)}
			if occupied(slot, sessions) {
				continue
			}
			slots = append(slots, slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start < slots[j].Start })
	return slots
}

func occupied(slot models.Slot, sessions []models.LiveSession) bool {
	for _, session := range sessions {
		if session.Status.Active() && slot.Overlaps(session.Slot()) {
			return true
		}
	}
	return false
}

// Get returns the teacher's weekly windows and upcoming blocked dates.
func (s *AvailabilityService) Get(ctx context.Context, teacherID string) (*models.WeeklyAvailability, error) {
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	windows, err := s.repo.ListWindows(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	blocked, err := s.repo.ListBlockedDates(ctx, teacherID, models.DateOnly(s.now()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blocked dates")
	}
	if windows == nil {
		windows = []models.AvailabilityWindow{}
	}
	if blocked == nil {
		blocked = []models.BlockedDate{}
	}
	return &models.WeeklyAvailability{TeacherID: teacherID, Windows: windows, BlockedDates: blocked}, nil
}

// Replace validates and stores a new weekly pattern. Windows on the same
// weekday must not overlap.
func (s *AvailabilityService) Replace(ctx context.Context, teacherID string, req ReplaceAvailabilityRequest) (*models.WeeklyAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	windows := make([]models.AvailabilityWindow, 0, len(req.Windows))
	for i, in := range req.Windows {
		if !in.StartTime.Valid() || !in.EndTime.Valid() || in.StartTime >= in.EndTime {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window %d: start_time must be before end_time", i))
		}
		windows = append(windows, models.AvailabilityWindow{
			TeacherID: teacherID,
			Weekday:   in.Weekday,
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
		})
	}
	if err := ensureWindowsDisjoint(windows); err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceWindows(ctx, teacherID, windows); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "availability windows overlap")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace availability")
	}
	s.logger.Info("availability replaced", zap.String("teacher_id", teacherID), zap.Int("windows", len(windows)))
	return s.Get(ctx, teacherID)
}

func ensureWindowsDisjoint(windows []models.AvailabilityWindow) error {
	byDay := make(map[time.Weekday][]models.Slot)
	for _, w := range windows {
		for _, existing := range byDay[w.Weekday] {
			if existing.Overlaps(w.Slot()) {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("overlapping windows on %s: %s-%s and %s-%s",
					w.Weekday, existing.Start, existing.End, w.StartTime, w.EndTime))
			}
		}
		byDay[w.Weekday] = append(byDay[w.Weekday], w.Slot())
	}
	return nil
}

// BlockDate removes all availability for the teacher on the requested date.
func (s *AvailabilityService) BlockDate(ctx context.Context, teacherID string, req BlockDateRequest) (*models.BlockedDate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blocked date payload")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	blocked := &models.BlockedDate{TeacherID: teacherID, Date: date, Reason: req.Reason}
	if err := s.repo.BlockDate(ctx, blocked); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block date")
	}
	return blocked, nil
}

// UnblockDate restores the weekly windows for date.
func (s *AvailabilityService) UnblockDate(ctx context.Context, teacherID, rawDate string) error {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := s.repo.UnblockDate(ctx, teacherID, date); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unblock date")
	}
	return nil
}

func (s *AvailabilityService) ensureTeacher(ctx context.Context, teacherID string) error {
	if teacherID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}
	if s.teachers == nil {
		return nil
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return nil
}
