package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/liveclass-api/internal/models"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
	"github.com/noah-isme/liveclass-api/pkg/response"
)

type calendarService interface {
	Range(ctx context.Context, query models.CalendarQuery) ([]models.CalendarDay, bool, error)
	Today(ctx context.Context, teacherID string, ref time.Time) (*models.CalendarDay, bool, error)
	Location() *time.Location
}

const defaultCalendarDays = 7

// CalendarHandler exposes the combined session and booking calendar.
type CalendarHandler struct {
	service calendarService
	now     func() time.Time
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(service calendarService) *CalendarHandler {
	return &CalendarHandler{service: service, now: time.Now}
}

// Range godoc
// @Summary Calendar of sessions and bookings grouped by day and hour
// @Tags Calendar
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param from query string false "From date (YYYY-MM-DD), defaults to today"
// @Param to query string false "To date (YYYY-MM-DD), defaults to a week after from"
// @Success 200 {object} response.Envelope
// @Router /calendar [get]
func (h *CalendarHandler) Range(c *gin.Context) {
	started := time.Now()
	from, err := parseOptionalDate(c.Query("from"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseOptionalDate(c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	query := models.CalendarQuery{TeacherID: pickQuery(c, "teacherId", "teacher_id")}
	if from != nil {
		query.From = *from
	} else {
		query.From = models.DateOnly(h.now().In(h.service.Location()))
	}
	if to != nil {
		query.To = *to
	} else {
		query.To = query.From.AddDate(0, 0, defaultCalendarDays-1)
	}

	days, cacheHit, err := h.service.Range(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, days, cacheHit, started)
}

// Today godoc
// @Summary Calendar for the day containing the reference instant
// @Tags Calendar
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param ref query string false "Reference instant (RFC3339), defaults to now"
// @Success 200 {object} response.Envelope
// @Router /calendar/today [get]
func (h *CalendarHandler) Today(c *gin.Context) {
	started := time.Now()
	ref := h.now()
	if raw := strings.TrimSpace(c.Query("ref")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ref must be an RFC3339 timestamp"))
			return
		}
		ref = parsed
	}
	day, cacheHit, err := h.service.Today(c.Request.Context(), pickQuery(c, "teacherId", "teacher_id"), ref)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, day, cacheHit, started)
}
