package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/liveclass-api/internal/models"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
)

// MarkAttendanceRequest sets one student's status in a session.
type MarkAttendanceRequest struct {
	Status             models.AttendanceStatus `json:"status" validate:"required"`
	ParticipationScore *int                    `json:"participation_score" validate:"omitempty,min=0,max=100"`
}

// BulkMarkItem is one row of a bulk mark.
type BulkMarkItem struct {
	StudentID          string                  `json:"student_id" validate:"required"`
	Status             models.AttendanceStatus `json:"status" validate:"required"`
	ParticipationScore *int                    `json:"participation_score" validate:"omitempty,min=0,max=100"`
}

// BulkMarkRequest marks many students at once.
type BulkMarkRequest struct {
	Items []BulkMarkItem `json:"items" validate:"required,min=1"`
}

// BulkMarkResult reports each row independently.
type BulkMarkResult struct {
	Outcomes  []models.AttendanceOutcome `json:"outcomes"`
	Succeeded int                        `json:"succeeded"`
	Failed    int                        `json:"failed"`
}

// AttendanceService records joins, leaves and participation per (session, student).
type AttendanceService struct {
	repo      attendanceRepository
	sessions  sessionFinder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, sessions sessionFinder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, sessions: sessions, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// List returns the session's attendance rows.
func (s *AttendanceService) List(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return records, nil
}

// Mark upserts the (session, student) row. Present and late stamp the join
// time unless one is already recorded.
func (s *AttendanceService) Mark(ctx context.Context, sessionID, studentID string, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.mark(ctx, session, studentID, req.Status, req.ParticipationScore)
}

// BulkMark applies Mark to every item. A failing item does not stop the others.
func (s *AttendanceService) BulkMark(ctx context.Context, sessionID string, req BulkMarkRequest) (*BulkMarkResult, error) {
	if err := s.validator.Var(req.Items, "required,min=1"); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "at least one item is required")
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &BulkMarkResult{Outcomes: make([]models.AttendanceOutcome, 0, len(req.Items))}
	for _, item := range req.Items {
		outcome := models.AttendanceOutcome{StudentID: item.StudentID}
		var record *models.AttendanceRecord
		if err := s.validator.Struct(item); err != nil {
			outcome.Error = outcomeError(appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance item"))
		} else if record, err = s.mark(ctx, session, item.StudentID, item.Status, item.ParticipationScore); err != nil {
			outcome.Error = outcomeError(err)
		}
		if outcome.Error != nil {
			result.Failed++
		} else {
			outcome.Record = record
			result.Succeeded++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

func (s *AttendanceService) mark(ctx context.Context, session *models.LiveSession, studentID string, status models.AttendanceStatus, score *int) (*models.AttendanceRecord, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", status))
	}
	if err := ensureRecordable(session); err != nil {
		return nil, err
	}

	record, err := s.repo.Find(ctx, session.ID, studentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
		}
		baseline := models.NewBaselineAttendance(session.ID, studentID)
		record = &baseline
	}

	record.Status = status
	if status.Joined() && record.JoinedAt == nil {
		now := s.now().UTC()
		record.JoinedAt = &now
	}
	if score != nil {
		record.ParticipationScore = *score
	}

	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	s.metrics.AttendanceMarked(stored.Status)
	return stored, nil
}

// MarkLeft stamps the leave time, derives the attended minutes from the join
// time and flags the student as having left early.
func (s *AttendanceService) MarkLeft(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := ensureRecordable(session); err != nil {
		return nil, err
	}
	record, err := s.repo.Find(ctx, sessionID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	leftAt := s.now().UTC()
	record.LeftAt = &leftAt
	record.DurationMinutes = 0
	if record.JoinedAt != nil && leftAt.After(*record.JoinedAt) {
		record.DurationMinutes = int(leftAt.Sub(*record.JoinedAt) / time.Minute)
	}
	record.Status = models.AttendanceLeftEarly

	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record leave")
	}
	s.metrics.AttendanceMarked(stored.Status)
	return stored, nil
}

// Stats aggregates the session's attendance rows.
func (s *AttendanceService) Stats(ctx context.Context, sessionID string) (*models.SessionStats, error) {
	records, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	stats := ComputeSessionStats(sessionID, records)
	return &stats, nil
}

// ComputeSessionStats counts rows per status and averages participation,
// rounded to the nearest integer.
func ComputeSessionStats(sessionID string, records []models.AttendanceRecord) models.SessionStats {
	stats := models.SessionStats{SessionID: sessionID, Total: len(records)}
	if len(records) == 0 {
		return stats
	}
	sum := 0
	for _, record := range records {
		switch record.Status {
		case models.AttendancePresent:
			stats.Present++
		case models.AttendanceAbsent:
			stats.Absent++
		case models.AttendanceLate:
			stats.Late++
		case models.AttendanceLeftEarly:
			stats.LeftEarly++
		}
		sum += record.ParticipationScore
	}
	stats.AvgParticipation = int(math.Round(float64(sum) / float64(len(records))))
	return stats
}

func ensureRecordable(session *models.LiveSession) error {
	if session.Status == models.SessionCancelled {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "attendance cannot be recorded for a cancelled session")
	}
	return nil
}

func (s *AttendanceService) loadSession(ctx context.Context, sessionID string) (*models.LiveSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}
