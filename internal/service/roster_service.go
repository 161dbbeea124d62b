package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/liveclass-api/internal/models"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
)

type attendanceRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	Find(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error)
	InsertBaseline(ctx context.Context, sessionID string, studentIDs []string) (int, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
}

type sessionFinder interface {
	FindByID(ctx context.Context, id string) (*models.LiveSession, error)
}

// RosterSyncResult reports what a roster sync changed.
type RosterSyncResult struct {
	SessionID     string   `json:"session_id"`
	Added         int      `json:"added"`
	AddedStudents []string `json:"added_students"`
	Total         int      `json:"total"`
}

// RosterService mirrors a session's invite list into attendance rows.
// Rows are only ever added; removing a student from the invites keeps
// their attendance history.
type RosterService struct {
	sessions   sessionFinder
	attendance attendanceRepository
	logger     *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(sessions sessionFinder, attendance attendanceRepository, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{sessions: sessions, attendance: attendance, logger: logger}
}

// Sync loads the session and inserts baseline rows for desired students
// that have none yet.
func (s *RosterService) Sync(ctx context.Context, sessionID string, desired []string) (*RosterSyncResult, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return s.SyncSession(ctx, session, desired)
}

// SyncSession is Sync for a session the caller already holds.
func (s *RosterService) SyncSession(ctx context.Context, session *models.LiveSession, desired []string) (*RosterSyncResult, error) {
	if session.Status == models.SessionCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cancelled sessions do not accept roster changes")
	}

	existing, err := s.attendance.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	present := make(map[string]struct{}, len(existing))
	for _, record := range existing {
		present[record.StudentID] = struct{}{}
	}

	additions := make([]string, 0)
	for _, studentID := range dedupeIDs(desired) {
		if _, ok := present[studentID]; !ok {
			additions = append(additions, studentID)
		}
	}

	result := &RosterSyncResult{SessionID: session.ID, AddedStudents: additions, Total: len(existing)}
	if len(additions) == 0 {
		return result, nil
	}

	inserted, err := s.attendance.InsertBaseline(ctx, session.ID, additions)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync roster")
	}
	result.Added = inserted
	result.Total = len(existing) + inserted
	s.logger.Debug("roster synced", zap.String("session_id", session.ID), zap.Int("added", inserted))
	return result, nil
}
