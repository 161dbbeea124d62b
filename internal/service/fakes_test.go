package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/liveclass-api/internal/models"
	"github.com/noah-isme/liveclass-api/internal/repository"
)

// memoryStore backs every fake repository and mimics the Postgres constraints
// the services rely on.
type memoryStore struct {
	mu            sync.Mutex
	seq           int
	teachers      map[string]*models.Teacher
	batches       map[string]*models.Batch
	batchStudents map[string][]string
	windows       map[string][]models.AvailabilityWindow
	blocked       map[string]map[string]*models.BlockedDate
	sessions      map[string]*models.LiveSession
	attendance    map[string]map[string]*models.AttendanceRecord
	bookings      map[string]*models.Booking
	upsertErrs    map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		teachers:      map[string]*models.Teacher{},
		batches:       map[string]*models.Batch{},
		batchStudents: map[string][]string{},
		windows:       map[string][]models.AvailabilityWindow{},
		blocked:       map[string]map[string]*models.BlockedDate{},
		sessions:      map[string]*models.LiveSession{},
		attendance:    map[string]map[string]*models.AttendanceRecord{},
		bookings:      map[string]*models.Booking{},
		upsertErrs:    map[string]error{},
	}
}

func (m *memoryStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

type fakeTeachers struct{ store *memoryStore }

func (f fakeTeachers) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	t, ok := f.store.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	dup := *t
	return &dup, nil
}

type fakeBatches struct{ store *memoryStore }

func (f fakeBatches) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	b, ok := f.store.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	dup := *b
	return &dup, nil
}

func (f fakeBatches) ListStudentIDs(ctx context.Context, batchID string) ([]string, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return append([]string(nil), f.store.batchStudents[batchID]...), nil
}

type fakeSessions struct{ store *memoryStore }

func (f fakeSessions) List(ctx context.Context, filter models.SessionFilter) ([]models.LiveSession, int, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]models.LiveSession, 0)
	for _, s := range f.store.sessions {
		if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
			continue
		}
		if filter.BatchID != "" && s.BatchID != filter.BatchID {
			continue
		}
		if filter.From != nil && s.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && s.Date.After(*filter.To) {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, st := range filter.Status {
				match = match || st == s.Status
			}
			if !match {
				continue
			}
		}
		out = append(out, cloneSession(s))
	}
	sortSessions(out)
	return pageOf(out, filter.Page, filter.PageSize), len(out), nil
}

func (f fakeSessions) FindByID(ctx context.Context, id string) (*models.LiveSession, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	s, ok := f.store.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	dup := cloneSession(s)
	return &dup, nil
}

func (f fakeSessions) ListActiveByTeacherOnDate(ctx context.Context, teacherID string, date time.Time) ([]models.LiveSession, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]models.LiveSession, 0)
	for _, s := range f.store.sessions {
		if s.TeacherID == teacherID && s.Date.Equal(models.DateOnly(date)) && s.Status.Active() {
			out = append(out, cloneSession(s))
		}
	}
	sortSessions(out)
	return out, nil
}

func (f fakeSessions) violatesExclusion(candidate *models.LiveSession) bool {
	if !candidate.Status.Active() {
		return false
	}
	for _, s := range f.store.sessions {
		if s.ID != candidate.ID && s.TeacherID == candidate.TeacherID && s.Status.Active() && candidate.Collides(*s) {
			return true
		}
	}
	return false
}

func (f fakeSessions) Create(ctx context.Context, session *models.LiveSession) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if session.ID == "" {
		session.ID = f.store.nextID("session")
	}
	if f.violatesExclusion(session) {
		return fmt.Errorf("create session: %w", repository.ErrSlotTaken)
	}
	session.Version = 1
	stored := cloneSession(session)
	f.store.sessions[session.ID] = &stored
	return nil
}

func (f fakeSessions) update(session *models.LiveSession, apply func(stored *models.LiveSession)) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	stored, ok := f.store.sessions[session.ID]
	if !ok || stored.Version != session.Version {
		return fmt.Errorf("update session: %w", repository.ErrStaleVersion)
	}
	next := cloneSession(stored)
	apply(&next)
	if f.violatesExclusion(&next) {
		return fmt.Errorf("update session: %w", repository.ErrSlotTaken)
	}
	next.Version++
	f.store.sessions[session.ID] = &next
	session.Version = next.Version
	return nil
}

func (f fakeSessions) UpdateSchedule(ctx context.Context, session *models.LiveSession) error {
	return f.update(session, func(stored *models.LiveSession) {
		stored.Date, stored.StartTime, stored.EndTime = session.Date, session.StartTime, session.EndTime
	})
}

func (f fakeSessions) UpdateStatus(ctx context.Context, session *models.LiveSession) error {
	return f.update(session, func(stored *models.LiveSession) { stored.Status = session.Status })
}

func (f fakeSessions) UpdateDetails(ctx context.Context, session *models.LiveSession) error {
	return f.update(session, func(stored *models.LiveSession) {
		stored.Title, stored.BatchID, stored.MeetLink = session.Title, session.BatchID, session.MeetLink
		stored.InvitedStudents = append([]string(nil), session.InvitedStudents...)
	})
}

func (f fakeSessions) Delete(ctx context.Context, id string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	delete(f.store.sessions, id)
	delete(f.store.attendance, id)
	return nil
}

func cloneSession(s *models.LiveSession) models.LiveSession {
	dup := *s
	dup.InvitedStudents = append([]string(nil), s.InvitedStudents...)
	return dup
}

func sortSessions(list []models.LiveSession) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		return list[i].StartTime < list[j].StartTime
	})
}

type fakeAttendance struct{ store *memoryStore }

func (f fakeAttendance) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]models.AttendanceRecord, 0)
	for _, r := range f.store.attendance[sessionID] {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f fakeAttendance) Find(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	r, ok := f.store.attendance[sessionID][studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	dup := *r
	return &dup, nil
}

func (f fakeAttendance) InsertBaseline(ctx context.Context, sessionID string, studentIDs []string) (int, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.store.attendance[sessionID] == nil {
		f.store.attendance[sessionID] = map[string]*models.AttendanceRecord{}
	}
	inserted := 0
	for _, id := range studentIDs {
		if _, ok := f.store.attendance[sessionID][id]; ok {
			continue
		}
		record := models.NewBaselineAttendance(sessionID, id)
		record.ID = f.store.nextID("attendance")
		f.store.attendance[sessionID][id] = &record
		inserted++
	}
	return inserted, nil
}

func (f fakeAttendance) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if err := f.store.upsertErrs[record.StudentID]; err != nil {
		return nil, err
	}
	if f.store.attendance[record.SessionID] == nil {
		f.store.attendance[record.SessionID] = map[string]*models.AttendanceRecord{}
	}
	if existing, ok := f.store.attendance[record.SessionID][record.StudentID]; ok {
		record.ID = existing.ID
	} else if record.ID == "" {
		record.ID = f.store.nextID("attendance")
	}
	stored := *record
	f.store.attendance[record.SessionID][record.StudentID] = &stored
	out := stored
	return &out, nil
}

type fakeAvailability struct{ store *memoryStore }

func (f fakeAvailability) ListWindows(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return append([]models.AvailabilityWindow(nil), f.store.windows[teacherID]...), nil
}

func (f fakeAvailability) ListWindowsForWeekday(ctx context.Context, teacherID string, weekday time.Weekday) ([]models.AvailabilityWindow, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]models.AvailabilityWindow, 0)
	for _, w := range f.store.windows[teacherID] {
		if w.Weekday == weekday {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f fakeAvailability) ReplaceWindows(ctx context.Context, teacherID string, windows []models.AvailabilityWindow) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for i := range windows {
		windows[i].ID = f.store.nextID("window")
	}
	f.store.windows[teacherID] = append([]models.AvailabilityWindow(nil), windows...)
	return nil
}

func (f fakeAvailability) IsBlocked(ctx context.Context, teacherID string, date time.Time) (bool, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	_, ok := f.store.blocked[teacherID][date.Format(models.DateLayout)]
	return ok, nil
}

func (f fakeAvailability) ListBlockedDates(ctx context.Context, teacherID string, from time.Time) ([]models.BlockedDate, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]models.BlockedDate, 0)
	for _, b := range f.store.blocked[teacherID] {
		if !b.Date.Before(from) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f fakeAvailability) BlockDate(ctx context.Context, blocked *models.BlockedDate) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.store.blocked[blocked.TeacherID] == nil {
		f.store.blocked[blocked.TeacherID] = map[string]*models.BlockedDate{}
	}
	dup := *blocked
	f.store.blocked[blocked.TeacherID][blocked.Date.Format(models.DateLayout)] = &dup
	return nil
}

func (f fakeAvailability) UnblockDate(ctx context.Context, teacherID string, date time.Time) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	delete(f.store.blocked[teacherID], date.Format(models.DateLayout))
	return nil
}

type fakeBookings struct{ store *memoryStore }

func (f fakeBookings) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]models.Booking, 0)
	for _, b := range f.store.bookings {
		if filter.TeacherID != "" && b.TeacherID != filter.TeacherID {
			continue
		}
		if filter.From != nil && b.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && b.Date.After(*filter.To) {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return pageOf(out, filter.Page, filter.PageSize), len(out), nil
}

// pageOf slices items the way the repositories apply LIMIT/OFFSET.
func pageOf[T any](items []T, page, size int) []T {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 500 {
		size = 100
	}
	offset := (page - 1) * size
	if offset >= len(items) {
		return []T{}
	}
	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (f fakeBookings) ListActiveByTeacherOnDate(ctx context.Context, teacherID string, date time.Time) ([]models.Booking, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]models.Booking, 0)
	for _, b := range f.store.bookings {
		if b.TeacherID == teacherID && b.Date.Equal(models.DateOnly(date)) && b.Status.Active() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f fakeBookings) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	b, ok := f.store.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	dup := *b
	return &dup, nil
}

func (f fakeBookings) Create(ctx context.Context, booking *models.Booking) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if booking.ID == "" {
		booking.ID = f.store.nextID("booking")
	}
	dup := *booking
	f.store.bookings[booking.ID] = &dup
	return nil
}

func (f fakeBookings) UpdateStatus(ctx context.Context, booking *models.Booking, from models.BookingStatus) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	stored, ok := f.store.bookings[booking.ID]
	if !ok || stored.Status != from {
		return fmt.Errorf("update booking status: %w", repository.ErrStaleVersion)
	}
	stored.Status = booking.Status
	return nil
}

// fixture wires every service against one memory store with teacher t1,
// batches b1 (students st1..st3) and b2 (st3, st4) and a fixed clock.
type fixture struct {
	store        *memoryStore
	now          time.Time
	metrics      *MetricsService
	availability *AvailabilityService
	roster       *RosterService
	sessions     *SessionService
	attendance   *AttendanceService
	bookings     *BookingService
	calendar     *CalendarService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemoryStore()
	store.teachers["t1"] = &models.Teacher{ID: "t1", FullName: "Teacher One", Active: true}
	store.teachers["t2"] = &models.Teacher{ID: "t2", FullName: "Teacher Two", Active: true}
	store.batches["b1"] = &models.Batch{ID: "b1", CourseID: "c1", Name: "Batch One", Active: true}
	store.batches["b2"] = &models.Batch{ID: "b2", CourseID: "c1", Name: "Batch Two", Active: true}
	store.batchStudents["b1"] = []string{"st1", "st2", "st3"}
	store.batchStudents["b2"] = []string{"st3", "st4"}

	validate := validator.New()
	logger := zap.NewNop()
	metrics := NewMetricsService()
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	sessions := fakeSessions{store}
	attendance := fakeAttendance{store}
	teachers := fakeTeachers{store}

	availability := NewAvailabilityService(fakeAvailability{store}, sessions, teachers, 60, validate, logger)
	availability.now = func() time.Time { return now }
	roster := NewRosterService(sessions, attendance, logger)
	sessionSvc := NewSessionService(sessions, teachers, fakeBatches{store}, roster, nil, metrics,
		SessionConfig{DefaultDurationMinutes: 60, HorizonWeeks: 4, MaxHorizonWeeks: 26}, validate, logger)
	attendanceSvc := NewAttendanceService(attendance, sessions, metrics, validate, logger)
	attendanceSvc.now = func() time.Time { return now }
	bookingSvc := NewBookingService(fakeBookings{store}, sessions, availability, teachers, nil, metrics, validate, logger)
	calendar := NewCalendarService(sessions, fakeBookings{store}, nil, 60, time.UTC, logger)

	return &fixture{
		store:        store,
		now:          now,
		metrics:      metrics,
		availability: availability,
		roster:       roster,
		sessions:     sessionSvc,
		attendance:   attendanceSvc,
		bookings:     bookingSvc,
		calendar:     calendar,
	}
}

// seedSession stores a scheduled session directly, bypassing the scheduler.
func (f *fixture) seedSession(t *testing.T, teacherID, date, start string, minutes int) *models.LiveSession {
	t.Helper()
	d, err := models.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	startTime := models.MustTimeOfDay(start)
	session := &models.LiveSession{
		TeacherID:       teacherID,
		BatchID:         "b1",
		Title:           "Seeded",
		Date:            d,
		StartTime:       startTime,
		EndTime:         startTime.Add(minutes),
		DurationMinutes: minutes,
		Status:          models.SessionScheduled,
	}
	if err := (fakeSessions{f.store}).Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}
	return session
}

func (f *fixture) attendanceCount(sessionID string) int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return len(f.store.attendance[sessionID])
}
