package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/liveclass-api/internal/models"
	"github.com/noah-isme/liveclass-api/pkg/export"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

type attendanceLister interface {
	List(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
}

// ExportFile is a rendered attendance sheet ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

var attendanceExportHeaders = []string{"Student", "Status", "Joined At", "Left At", "Minutes", "Participation"}

// ExportService renders a session's attendance roster as CSV or PDF.
type ExportService struct {
	sessions   sessionFinder
	attendance attendanceLister
	renderers  map[string]renderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(sessions sessionFinder, attendance attendanceLister, csv, pdf renderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		sessions:   sessions,
		attendance: attendance,
		renderers:  map[string]renderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:     logger,
	}
}

// ExportAttendance renders the attendance sheet of one session.
func (s *ExportService) ExportAttendance(ctx context.Context, sessionID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	records, err := s.attendance.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	payload, err := r.Render(attendanceDataset(session, records))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance export")
	}
	s.logger.Debug("attendance exported", zap.String("session_id", sessionID), zap.String("format", format), zap.Int("rows", len(records)))

	return &ExportFile{
		Filename:    fmt.Sprintf("attendance_%s_%s.%s", sanitizeFilename(session.Title), session.Date.Format("20060102"), r.Extension()),
		ContentType: r.ContentType(),
		Data:        payload,
	}, nil
}

func attendanceDataset(session *models.LiveSession, records []models.AttendanceRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, map[string]string{
			"Student":       record.StudentID,
			"Status":        string(record.Status),
			"Joined At":     formatClock(record.JoinedAt),
			"Left At":       formatClock(record.LeftAt),
			"Minutes":       strconv.Itoa(record.DurationMinutes),
			"Participation": strconv.Itoa(record.ParticipationScore),
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("%s - %s %s-%s", session.Title, session.Date.Format(models.DateLayout), session.StartTime, session.EndTime),
		Headers: attendanceExportHeaders,
		Rows:    rows,
	}
}

func formatClock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("15:04:05")
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "session"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "session"
	}
	return b.String()
}
