package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/liveclass-api/internal/models"
	"github.com/noah-isme/liveclass-api/internal/service"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
)

type attendanceServiceMock struct {
	sessionID string
	studentID string
	markReq   service.MarkAttendanceRequest
	bulkReq   service.BulkMarkRequest
	err       error
}

func (m *attendanceServiceMock) List(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	m.sessionID = sessionID
	return []models.AttendanceRecord{}, m.err
}

func (m *attendanceServiceMock) Mark(ctx context.Context, sessionID, studentID string, req service.MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	m.sessionID, m.studentID, m.markReq = sessionID, studentID, req
	if m.err != nil {
		return nil, m.err
	}
	return &models.AttendanceRecord{SessionID: sessionID, StudentID: studentID, Status: req.Status}, nil
}

func (m *attendanceServiceMock) BulkMark(ctx context.Context, sessionID string, req service.BulkMarkRequest) (*service.BulkMarkResult, error) {
	m.sessionID, m.bulkReq = sessionID, req
	return &service.BulkMarkResult{Succeeded: len(req.Items)}, m.err
}

func (m *attendanceServiceMock) MarkLeft(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	m.sessionID, m.studentID = sessionID, studentID
	if m.err != nil {
		return nil, m.err
	}
	return &models.AttendanceRecord{SessionID: sessionID, StudentID: studentID, Status: models.AttendanceLeftEarly}, nil
}

func (m *attendanceServiceMock) Stats(ctx context.Context, sessionID string) (*models.SessionStats, error) {
	return &models.SessionStats{SessionID: sessionID}, m.err
}

type exporterMock struct {
	format string
	err    error
}

func (m *exporterMock) ExportAttendance(ctx context.Context, sessionID, format string) (*service.ExportFile, error) {
	m.format = format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: "attendance_algebra_20260105.csv", ContentType: "text/csv", Data: []byte("Student\n")}, nil
}

func attendanceRouter(svc *attendanceServiceMock, exp *exporterMock) *AttendanceHandler {
	return NewAttendanceHandler(svc, exp)
}

func TestAttendanceHandlerMarkBindsPathAndBody(t *testing.T) {
	svc := &attendanceServiceMock{}
	h := attendanceRouter(svc, &exporterMock{})
	r := newTestRouter()
	r.PUT("/sessions/:id/attendance/:studentId", h.Mark)
	r.POST("/sessions/:id/attendance/:studentId/leave", h.MarkLeft)

	w := perform(r, http.MethodPut, "/sessions/s-1/attendance/st-2", map[string]interface{}{"status": "present", "participation_score": 80})
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "s-1", svc.sessionID)
	assert.Equal(t, "st-2", svc.studentID)
	require.NotNil(t, svc.markReq.ParticipationScore)
	assert.Equal(t, 80, *svc.markReq.ParticipationScore)

	svc.err = appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	w = perform(r, http.MethodPost, "/sessions/s-1/attendance/st-9/leave", nil)
	requireStatus(t, w, http.StatusNotFound)
}

func TestAttendanceHandlerBulkMark(t *testing.T) {
	svc := &attendanceServiceMock{}
	r := newTestRouter()
	r.POST("/sessions/:id/attendance/bulk", attendanceRouter(svc, &exporterMock{}).BulkMark)

	w := perform(r, http.MethodPost, "/sessions/s-1/attendance/bulk", map[string]interface{}{
		"items": []map[string]interface{}{{"student_id": "st1", "status": "present"}, {"student_id": "st2", "status": "late"}},
	})
	requireStatus(t, w, http.StatusOK)
	require.Len(t, svc.bulkReq.Items, 2)
	assert.Equal(t, models.AttendanceLate, svc.bulkReq.Items[1].Status)
	assert.JSONEq(t, `{"outcomes":null,"succeeded":2,"failed":0}`, string(decode(t, w).Data))
}

func TestAttendanceHandlerExportStreamsFile(t *testing.T) {
	exp := &exporterMock{}
	r := newTestRouter()
	r.GET("/sessions/:id/attendance/export", attendanceRouter(&attendanceServiceMock{}, exp).Export)

	w := perform(r, http.MethodGet, "/sessions/s-1/attendance/export", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, service.ExportFormatCSV, exp.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="attendance_algebra_20260105.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Student\n", w.Body.String())

	exp.err = appErrors.Clone(appErrors.ErrValidation, `unsupported export format "xlsx"`)
	w = perform(r, http.MethodGet, "/sessions/s-1/attendance/export?format=xlsx", nil)
	requireStatus(t, w, http.StatusBadRequest)
	assert.Equal(t, "xlsx", exp.format)
}
