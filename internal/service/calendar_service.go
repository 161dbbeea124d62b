package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/liveclass-api/internal/models"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
)

const (
	calendarCachePattern = "calendar:*"
	maxCalendarDays      = 62
	calendarFetchSize    = 500
)

type sessionLister interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.LiveSession, int, error)
}

type bookingLister interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
}

// CalendarService projects sessions and bookings onto days and hours.
type CalendarService struct {
	sessions    sessionLister
	bookings    bookingLister
	cache       *CacheService
	logger      *zap.Logger
	slotMinutes int
	pageSize    int
	location    *time.Location
}

// NewCalendarService constructs the read-side calendar projection.
func NewCalendarService(sessions sessionLister, bookings bookingLister, cache *CacheService, slotMinutes int, location *time.Location, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if slotMinutes <= 0 {
		slotMinutes = 60
	}
	if location == nil {
		location = time.UTC
	}
	return &CalendarService{sessions: sessions, bookings: bookings, cache: cache, logger: logger, slotMinutes: slotMinutes, pageSize: calendarFetchSize, location: location}
}

// Location is the zone used to resolve a reference instant to a calendar date.
func (s *CalendarService) Location() *time.Location {
	return s.location
}

// Range returns every day between From and To inclusive that has entries.
// The boolean reports a cache hit.
func (s *CalendarService) Range(ctx context.Context, query models.CalendarQuery) ([]models.CalendarDay, bool, error) {
	from := models.DateOnly(query.From)
	to := models.DateOnly(query.To)
	if to.Before(from) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	if to.Sub(from) > maxCalendarDays*24*time.Hour {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "calendar range is limited to 62 days")
	}

	cacheKey := makeCalendarCacheKey(query.TeacherID, from, to)
	var cached []models.CalendarDay
	if s.cache.Lookup(ctx, cacheKey, &cached) {
		return cached, true, nil
	}

	sessions, err := s.loadSessions(ctx, models.SessionFilter{TeacherID: query.TeacherID, From: &from, To: &to})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	bookings, err := s.loadBookings(ctx, models.BookingFilter{TeacherID: query.TeacherID, From: &from, To: &to})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}

	days := BuildCalendar(sessions, bookings, s.slotMinutes)
	s.cache.Store(ctx, cacheKey, days)
	return days, false, nil
}

// loadSessions pages through every session matching filter.
func (s *CalendarService) loadSessions(ctx context.Context, filter models.SessionFilter) ([]models.LiveSession, error) {
	var all []models.LiveSession
	filter.PageSize = s.pageSize
	for page := 1; ; page++ {
		filter.Page = page
		rows, total, err := s.sessions.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

// loadBookings pages through every booking matching filter.
func (s *CalendarService) loadBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var all []models.Booking
	filter.PageSize = s.pageSize
	for page := 1; ; page++ {
		filter.Page = page
		rows, total, err := s.bookings.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) == 0 || len(all) >= total {
			return all, nil
		}
	}
}

// Today returns the single day containing ref, resolved in the configured zone.
func (s *CalendarService) Today(ctx context.Context, teacherID string, ref time.Time) (*models.CalendarDay, bool, error) {
	local := ref.In(s.location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	days, cached, err := s.Range(ctx, models.CalendarQuery{TeacherID: teacherID, From: day, To: day})
	if err != nil {
		return nil, false, err
	}
	if len(days) == 0 {
		return &models.CalendarDay{Date: day.Format(models.DateLayout), Hours: []models.CalendarHour{}}, cached, nil
	}
	return &days[0], cached, nil
}

// BuildCalendar groups sessions and bookings by date, then by starting hour.
// Bookings occupy one slot of slotMinutes.
func BuildCalendar(sessions []models.LiveSession, bookings []models.Booking, slotMinutes int) []models.CalendarDay {
	byDate := make(map[string][]models.CalendarEntry)
	for _, session := range sessions {
		key := session.Date.Format(models.DateLayout)
		byDate[key] = append(byDate[key], models.CalendarEntry{
			Kind:      models.CalendarEntrySession,
			ID:        session.ID,
			TeacherID: session.TeacherID,
			Title:     session.Title,
			Status:    string(session.Status),
			StartTime: session.StartTime,
			EndTime:   session.EndTime,
		})
	}
	for _, booking := range bookings {
		key := booking.Date.Format(models.DateLayout)
		slot := booking.Slot(slotMinutes)
		byDate[key] = append(byDate[key], models.CalendarEntry{
			Kind:      models.CalendarEntryBooking,
			ID:        booking.ID,
			TeacherID: booking.TeacherID,
			Title:     "Trial: " + booking.StudentName,
			Status:    string(booking.Status),
			StartTime: slot.Start,
			EndTime:   slot.End,
		})
	}

	dates := make([]string, 0, len(byDate))
	for key := range byDate {
		dates = append(dates, key)
	}
	sort.Strings(dates)

	days := make([]models.CalendarDay, 0, len(dates))
	for _, key := range dates {
		entries := byDate[key]
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].StartTime != entries[j].StartTime {
				return entries[i].StartTime < entries[j].StartTime
			}
			return entries[i].Kind > entries[j].Kind
		})
		day := models.CalendarDay{Date: key, Hours: []models.CalendarHour{}}
		for _, entry := range entries {
			hour := entry.StartTime.Hour()
			if n := len(day.Hours); n == 0 || day.Hours[n-1].Hour != hour {
				day.Hours = append(day.Hours, models.CalendarHour{Hour: hour})
			}
			last := &day.Hours[len(day.Hours)-1]
			last.Entries = append(last.Entries, entry)
		}
		days = append(days, day)
	}
	return days
}

func makeCalendarCacheKey(teacherID string, from, to time.Time) string {
	owner := teacherID
	if owner == "" {
		owner = "all"
	}
	return strings.Join([]string{"calendar", strings.ReplaceAll(owner, ":", "|"), from.Format(models.DateLayout), to.Format(models.DateLayout)}, ":")
}
