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

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.LiveSession, int, error)
	FindByID(ctx context.Context, id string) (*models.LiveSession, error)
	ListActiveByTeacherOnDate(ctx context.Context, teacherID string, date time.Time) ([]models.LiveSession, error)
	Create(ctx context.Context, session *models.LiveSession) error
	UpdateSchedule(ctx context.Context, session *models.LiveSession) error
	UpdateStatus(ctx context.Context, session *models.LiveSession) error
	UpdateDetails(ctx context.Context, session *models.LiveSession) error
	Delete(ctx context.Context, id string) error
}

type batchLookup interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	ListStudentIDs(ctx context.Context, batchID string) ([]string, error)
}

type rosterSyncer interface {
	SyncSession(ctx context.Context, session *models.LiveSession, desired []string) (*RosterSyncResult, error)
}

// SessionConfig carries scheduling defaults.
type SessionConfig struct {
	DefaultDurationMinutes int
	HorizonWeeks           int
	MaxHorizonWeeks        int
}

// CreateSessionsRequest creates one session on Date or one per date of Recurrence.
type CreateSessionsRequest struct {
	TeacherID       string             `json:"teacher_id" validate:"required"`
	BatchID         string             `json:"batch_id" validate:"required"`
	Title           string             `json:"title" validate:"required,max=200"`
	Date            string             `json:"date"`
	Recurrence      *RecurrenceRequest `json:"recurrence"`
	StartTime       string             `json:"start_time" validate:"required"`
	DurationMinutes int                `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
	MeetLink        *string            `json:"meet_link" validate:"omitempty,url"`
	InvitedStudents []string           `json:"invited_students" validate:"omitempty,dive,required"`
	InviteBatch     bool               `json:"invite_batch"`
}

// SessionOutcome is the result for one requested date.
type SessionOutcome struct {
	Date        string               `json:"date"`
	Session     *models.LiveSession  `json:"session,omitempty"`
	RosterAdded int                  `json:"roster_added"`
	Error       *models.OutcomeError `json:"error,omitempty"`
	RosterError *models.OutcomeError `json:"roster_error,omitempty"`
}

// CreateSessionsResult lists per-date outcomes in date order.
type CreateSessionsResult struct {
	Outcomes []SessionOutcome `json:"outcomes"`
	Created  int              `json:"created"`
	Failed   int              `json:"failed"`
}

// MoveSessionRequest drags a session to a new date and start time.
type MoveSessionRequest struct {
	Date            string `json:"date" validate:"required"`
	StartTime       string `json:"start_time" validate:"required"`
	ExpectedVersion *int   `json:"expected_version" validate:"omitempty,min=1"`
}

// SetSessionStatusRequest requests a lifecycle transition.
type SetSessionStatusRequest struct {
	Status          models.SessionStatus `json:"status" validate:"required"`
	ExpectedVersion *int                 `json:"expected_version" validate:"omitempty,min=1"`
}

// UpdateSessionRequest edits descriptive fields. Nil fields are left unchanged.
// InviteBatch adds the new batch's students when the batch changes and no
// explicit invite list is given.
type UpdateSessionRequest struct {
	Title           *string   `json:"title" validate:"omitempty,min=1,max=200"`
	BatchID         *string   `json:"batch_id" validate:"omitempty,min=1"`
	MeetLink        *string   `json:"meet_link" validate:"omitempty,url"`
	InvitedStudents *[]string `json:"invited_students"`
	InviteBatch     bool      `json:"invite_batch"`
}

// SyncRosterRequest sets a session's invite list.
type SyncRosterRequest struct {
	StudentIDs []string `json:"student_ids" validate:"dive,required"`
}

// SessionService schedules live sessions and drives their lifecycle. A
// teacher never holds two overlapping scheduled or live sessions.
type SessionService struct {
	repo      sessionRepository
	teachers  teacherLookup
	batches   batchLookup
	roster    rosterSyncer
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SessionConfig
}

// NewSessionService wires the scheduler.
func NewSessionService(repo sessionRepository, teachers teacherLookup, batches batchLookup, roster rosterSyncer, cache *CacheService, metrics *MetricsService, cfg SessionConfig, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = 60
	}
	if cfg.HorizonWeeks <= 0 {
		cfg.HorizonWeeks = 4
	}
	if cfg.MaxHorizonWeeks < cfg.HorizonWeeks {
		cfg.MaxHorizonWeeks = cfg.HorizonWeeks
	}
	return &SessionService{
		repo:      repo,
		teachers:  teachers,
		batches:   batches,
		roster:    roster,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// List returns sessions with pagination metadata.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.LiveSession, *models.Pagination, error) {
	for _, status := range filter.Status {
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown session status %q", status))
		}
	}
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	if sessions == nil {
		sessions = []models.LiveSession{}
	}
	return sessions, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*models.LiveSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// Create persists one session per resolved date. Dates are processed in
// order and independently. A single-date request surfaces its failure as
// the returned error; a recurring request reports failures per date.
func (s *SessionService) Create(ctx context.Context, req CreateSessionsRequest) (*CreateSessionsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	startTime, err := models.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = s.cfg.DefaultDurationMinutes
	}
	endTime := startTime.Add(duration)
	if !endTime.Valid() || startTime >= models.TimeOfDay(models.MinutesPerDay) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session must end on the day it starts")
	}

	dates, err := s.resolveDates(req)
	if err != nil {
		return nil, err
	}

	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}
	invited, err := s.resolveInvites(ctx, req.BatchID, req.InvitedStudents, req.InviteBatch)
	if err != nil {
		return nil, err
	}

	result := &CreateSessionsResult{Outcomes: make([]SessionOutcome, 0, len(dates))}
	for _, date := range dates {
		session := &models.LiveSession{
			TeacherID:       req.TeacherID,
			BatchID:         req.BatchID,
			Title:           req.Title,
			Date:            date,
			StartTime:       startTime,
			EndTime:         endTime,
			DurationMinutes: duration,
			Status:          models.SessionScheduled,
			MeetLink:        req.MeetLink,
			InvitedStudents: invited,
		}
		outcome := SessionOutcome{Date: date.Format(models.DateLayout)}

		if err := s.createOne(ctx, session); err != nil {
			if req.Recurrence == nil {
				return nil, err
			}
			s.logger.Info("recurring session date skipped",
				zap.String("teacher_id", req.TeacherID),
				zap.String("date", outcome.Date),
				zap.Error(err))
			outcome.Error = outcomeError(err)
			result.Failed++
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		outcome.Session = session
		result.Created++
		if s.roster != nil && len(invited) > 0 {
			synced, rosterErr := s.roster.SyncSession(ctx, session, invited)
			if rosterErr != nil {
				s.logger.Warn("roster sync after create failed", zap.String("session_id", session.ID), zap.Error(rosterErr))
				outcome.RosterError = outcomeError(rosterErr)
			} else {
				outcome.RosterAdded = synced.Added
			}
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if result.Created > 0 {
		s.invalidateCalendar(ctx)
	}
	return result, nil
}

func (s *SessionService) resolveDates(req CreateSessionsRequest) ([]time.Time, error) {
	if req.Recurrence == nil {
		if req.Date == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "either date or recurrence is required")
		}
		date, err := models.ParseDate(req.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		return []time.Time{date}, nil
	}
	if req.Date != "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date and recurrence are mutually exclusive")
	}
	start, err := models.ParseDate(req.Recurrence.StartDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	horizon := req.Recurrence.HorizonWeeks
	if horizon == 0 {
		horizon = s.cfg.HorizonWeeks
	}
	if horizon > s.cfg.MaxHorizonWeeks {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("horizon_weeks must not exceed %d", s.cfg.MaxHorizonWeeks))
	}
	dates := ExpandRecurrence(start, req.Recurrence.Weekdays, horizon)
	if len(dates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recurrence produces no dates on or after start_date")
	}
	return dates, nil
}

func (s *SessionService) resolveInvites(ctx context.Context, batchID string, requested []string, inviteBatch bool) ([]string, error) {
	if s.batches != nil {
		if _, err := s.batches.FindByID(ctx, batchID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
		}
	}
	invited := dedupeIDs(requested)
	if len(invited) == 0 && inviteBatch && s.batches != nil {
		students, err := s.batches.ListStudentIDs(ctx, batchID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch students")
		}
		invited = dedupeIDs(students)
	}
	return invited, nil
}

func (s *SessionService) createOne(ctx context.Context, session *models.LiveSession) error {
	if err := s.ensureSlotFree(ctx, session, "create"); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return s.raceConflict(ctx, session, "create", err)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.metrics.SessionCreated()
	return nil
}

// Move reschedules a session keeping its duration. Nothing is written when
// the new slot collides with another active session of the same teacher.
func (s *SessionService) Move(ctx context.Context, id string, req MoveSessionRequest) (*models.LiveSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	startTime, err := models.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s sessions cannot be rescheduled", current.Status))
	}
	if err := checkVersion(current, req.ExpectedVersion); err != nil {
		return nil, err
	}

	endTime := startTime.Add(current.DurationMinutes)
	if !endTime.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session must end on the day it starts")
	}

	moved := *current
	moved.Date = date
	moved.StartTime = startTime
	moved.EndTime = endTime
	if err := s.ensureSlotFree(ctx, &moved, "move"); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSchedule(ctx, &moved); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotTaken):
			return nil, s.raceConflict(ctx, &moved, "move", err)
		case errors.Is(err, repository.ErrStaleVersion):
			return nil, s.staleVersion(id, err)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move session")
	}

	s.logger.Info("session moved",
		zap.String("session_id", id),
		zap.String("from", current.Date.Format(models.DateLayout)+" "+current.StartTime.String()),
		zap.String("to", moved.Date.Format(models.DateLayout)+" "+moved.StartTime.String()))
	s.invalidateCalendar(ctx)
	return &moved, nil
}

// SetStatus applies a lifecycle transition. Completed and cancelled are
// terminal and a live session can never be cancelled.
func (s *SessionService) SetStatus(ctx context.Context, id string, req SetSessionStatusRequest) (*models.LiveSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown session status %q", req.Status))
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot change session status from %s to %s", current.Status, req.Status))
	}
	if err := checkVersion(current, req.ExpectedVersion); err != nil {
		return nil, err
	}

	updated := *current
	updated.Status = req.Status
	if err := s.repo.UpdateStatus(ctx, &updated); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, s.staleVersion(id, err)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
	}

	s.metrics.SessionTransition(current.Status, updated.Status)
	s.invalidateCalendar(ctx)
	return &updated, nil
}

// Delete removes a session with its attendance rows. Live sessions cannot be deleted.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == models.SessionLive {
		return appErrors.Clone(appErrors.ErrNotAllowed, "live sessions cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.invalidateCalendar(ctx)
	return nil
}

// Update edits descriptive fields. Changing the batch or the invite list
// syncs the roster.
func (s *SessionService) Update(ctx context.Context, id string, req UpdateSessionRequest) (*models.LiveSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.SessionCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cancelled sessions cannot be edited")
	}

	updated := *current
	if req.Title != nil {
		updated.Title = *req.Title
	}
	if req.MeetLink != nil {
		updated.MeetLink = req.MeetLink
	}
	if req.InvitedStudents != nil {
		updated.InvitedStudents = dedupeIDs(*req.InvitedStudents)
	}
	batchChanged := req.BatchID != nil && *req.BatchID != current.BatchID
	if batchChanged {
		enrolled, err := s.resolveInvites(ctx, *req.BatchID, nil, req.InviteBatch && req.InvitedStudents == nil)
		if err != nil {
			return nil, err
		}
		updated.BatchID = *req.BatchID
		if len(enrolled) > 0 {
			updated.InvitedStudents = dedupeIDs(append(append([]string{}, updated.InvitedStudents...), enrolled...))
		}
	}

	if err := s.repo.UpdateDetails(ctx, &updated); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, s.staleVersion(id, err)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	if (req.InvitedStudents != nil || batchChanged) && s.roster != nil {
		if _, err := s.roster.SyncSession(ctx, &updated, updated.InvitedStudents); err != nil {
			return nil, err
		}
	}
	s.invalidateCalendar(ctx)
	return &updated, nil
}

// SyncRoster replaces the invite list and adds attendance rows for new invitees.
func (s *SessionService) SyncRoster(ctx context.Context, id string, req SyncRosterRequest) (*RosterSyncResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.SessionCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cancelled sessions do not accept roster changes")
	}

	desired := dedupeIDs(req.StudentIDs)
	if !sameMembers(current.InvitedStudents, desired) {
		updated := *current
		updated.InvitedStudents = desired
		if err := s.repo.UpdateDetails(ctx, &updated); err != nil {
			if errors.Is(err, repository.ErrStaleVersion) {
				return nil, s.staleVersion(id, err)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update invited students")
		}
		current = &updated
	}
	return s.roster.SyncSession(ctx, current, desired)
}

func (s *SessionService) ensureTeacher(ctx context.Context, teacherID string) error {
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

// ensureSlotFree rejects a session colliding with another active session of its teacher.
func (s *SessionService) ensureSlotFree(ctx context.Context, session *models.LiveSession, operation string) error {
	existing, err := s.repo.ListActiveByTeacherOnDate(ctx, session.TeacherID, session.Date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher schedule")
	}
	for _, other := range existing {
		if other.ID == session.ID || !other.Status.Active() {
			continue
		}
		if session.Collides(other) {
			s.metrics.SessionConflict(operation)
			conflict := models.NewSessionConflict(
				fmt.Sprintf("teacher already has %q from %s to %s", other.Title, other.StartTime, other.EndTime), other)
			return appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Message)
		}
	}
	return nil
}

// raceConflict handles an exclusion violation that slipped past ensureSlotFree.
func (s *SessionService) raceConflict(ctx context.Context, session *models.LiveSession, operation string, cause error) error {
	if err := s.ensureSlotFree(ctx, session, operation); err != nil && appErrors.Is(err, appErrors.ErrConflict) {
		return err
	}
	s.metrics.SessionConflict(operation)
	return appErrors.Wrap(cause, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "teacher already has a session in this slot")
}

func (s *SessionService) staleVersion(id string, cause error) error {
	s.logger.Warn("session modified concurrently", zap.String("session_id", id))
	return appErrors.Wrap(cause, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "session was modified by another request, reload and retry")
}

func (s *SessionService) invalidateCalendar(ctx context.Context) {
	s.cache.InvalidateCalendars(ctx)
}

func checkVersion(session *models.LiveSession, expected *int) error {
	if expected != nil && *expected != session.Version {
		return appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("session version is %d, expected %d; reload and retry", session.Version, *expected))
	}
	return nil
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
