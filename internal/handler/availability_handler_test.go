package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/liveclass-api/internal/models"
	"github.com/noah-isme/liveclass-api/internal/service"
)

type availabilityServiceMock struct {
	teacherID  string
	date       time.Time
	replaceReq service.ReplaceAvailabilityRequest
	unblocked  string
}

func (m *availabilityServiceMock) FreeSlots(ctx context.Context, teacherID string, date time.Time) ([]models.Slot, error) {
	m.teacherID, m.date = teacherID, date
	return []models.Slot{{Start: models.MustTimeOfDay("09:00"), End: models.MustTimeOfDay("10:00")}}, nil
}

func (m *availabilityServiceMock) Get(ctx context.Context, teacherID string) (*models.WeeklyAvailability, error) {
	return &models.WeeklyAvailability{TeacherID: teacherID}, nil
}

func (m *availabilityServiceMock) Replace(ctx context.Context, teacherID string, req service.ReplaceAvailabilityRequest) (*models.WeeklyAvailability, error) {
	m.teacherID, m.replaceReq = teacherID, req
	return &models.WeeklyAvailability{TeacherID: teacherID}, nil
}

func (m *availabilityServiceMock) BlockDate(ctx context.Context, teacherID string, req service.BlockDateRequest) (*models.BlockedDate, error) {
	return &models.BlockedDate{TeacherID: teacherID}, nil
}

func (m *availabilityServiceMock) UnblockDate(ctx context.Context, teacherID, rawDate string) error {
	m.unblocked = rawDate
	return nil
}

func TestAvailabilityHandlerSlots(t *testing.T) {
	mock := &availabilityServiceMock{}
	r := newTestRouter()
	r.GET("/teachers/:id/available-slots", NewAvailabilityHandler(mock).Slots)

	w := perform(r, http.MethodGet, "/teachers/t1/available-slots?date=2026-01-05", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "t1", mock.teacherID)
	assert.JSONEq(t, `[{"start":"09:00","end":"10:00"}]`, string(decode(t, w).Data))

	w = perform(r, http.MethodGet, "/teachers/t1/available-slots?date=2026-13-01", nil)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestAvailabilityHandlerReplaceParsesTimes(t *testing.T) {
	mock := &availabilityServiceMock{}
	h := NewAvailabilityHandler(mock)
	r := newTestRouter()
	r.PUT("/teachers/:id/availability", h.Replace)
	r.DELETE("/teachers/:id/blocked-dates/:date", h.Unblock)

	w := perform(r, http.MethodPut, "/teachers/t1/availability", map[string]interface{}{
		"windows": []map[string]interface{}{{"weekday": 1, "start_time": "08:00", "end_time": "12:30"}},
	})
	requireStatus(t, w, http.StatusOK)
	require.Len(t, mock.replaceReq.Windows, 1)
	assert.Equal(t, time.Monday, mock.replaceReq.Windows[0].Weekday)
	assert.Equal(t, models.TimeOfDay(750), mock.replaceReq.Windows[0].EndTime)

	w = perform(r, http.MethodPut, "/teachers/t1/availability", `{"windows":[{"weekday":1,"start_time":"8am","end_time":"12:00"}]}`)
	requireStatus(t, w, http.StatusBadRequest)

	w = perform(r, http.MethodDelete, "/teachers/t1/blocked-dates/2026-01-09", nil)
	requireStatus(t, w, http.StatusNoContent)
	assert.Equal(t, "2026-01-09", mock.unblocked)
}
