package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/liveclass-api/internal/models"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
)

func bookingRequest(date, at string) CreateBookingRequest {
	return CreateBookingRequest{StudentName: "Rina", StudentPhone: "0812000", TeacherID: "t1", Date: date, Time: at}
}

func advisoryKinds(advisories []models.BookingAdvisory) []string {
	kinds := make([]string, len(advisories))
	for i, a := range advisories {
		kinds[i] = a.Kind
	}
	return kinds
}

func TestBookingLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.bookings.Create(ctx, bookingRequest("2026-01-05", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, created.Booking.Status)

	confirmed, err := f.bookings.UpdateStatus(ctx, created.Booking.ID, UpdateBookingStatusRequest{Status: models.BookingConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, confirmed.Status)

	_, err = f.bookings.UpdateStatus(ctx, created.Booking.ID, UpdateBookingStatusRequest{Status: models.BookingPending})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	completed, err := f.bookings.UpdateStatus(ctx, created.Booking.ID, UpdateBookingStatusRequest{Status: models.BookingCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, completed.Status)

	_, err = f.bookings.UpdateStatus(ctx, created.Booking.ID, UpdateBookingStatusRequest{Status: models.BookingCancelled})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestBookingAdvisoriesNeverBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.availability.Replace(ctx, "t1", ReplaceAvailabilityRequest{Windows: []AvailabilityWindowInput{window(time.Monday, "08:00", "12:00")}})
	require.NoError(t, err)
	session := f.seedSession(t, "t1", "2026-01-05", "09:00", 60)

	free, err := f.bookings.Create(ctx, bookingRequest("2026-01-05", "11:00"))
	require.NoError(t, err)
	assert.Empty(t, free.Advisories)

	overlapping, err := f.bookings.Create(ctx, bookingRequest("2026-01-05", "09:30"))
	require.NoError(t, err)
	require.Equal(t, []string{models.AdvisoryOverlapsSession}, advisoryKinds(overlapping.Advisories))
	assert.Equal(t, session.ID, *overlapping.Advisories[0].SessionID)

	shared, err := f.bookings.Create(ctx, bookingRequest("2026-01-05", "11:00"))
	require.NoError(t, err)
	require.Equal(t, []string{models.AdvisorySharedSlot}, advisoryKinds(shared.Advisories))
	assert.Equal(t, free.Booking.ID, *shared.Advisories[0].BookingID)

	outside, err := f.bookings.Create(ctx, bookingRequest("2026-01-05", "17:00"))
	require.NoError(t, err)
	assert.Equal(t, []string{models.AdvisoryOutsideAvailability}, advisoryKinds(outside.Advisories))

	assert.Equal(t, uint64(4), f.metrics.Snapshot().BookingsCreated)
}

func TestBookingAdvisoriesCoverWholeSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.availability.Replace(ctx, "t1", ReplaceAvailabilityRequest{Windows: []AvailabilityWindowInput{window(time.Monday, "08:00", "12:00")}})
	require.NoError(t, err)
	session := f.seedSession(t, "t1", "2026-01-05", "09:00", 60)

	early, err := f.bookings.Create(ctx, bookingRequest("2026-01-05", "08:30"))
	require.NoError(t, err)
	require.Equal(t, []string{models.AdvisoryOverlapsSession}, advisoryKinds(early.Advisories))
	assert.Equal(t, session.ID, *early.Advisories[0].SessionID)

	first, err := f.bookings.Create(ctx, bookingRequest("2026-01-05", "10:00"))
	require.NoError(t, err)
	assert.Empty(t, first.Advisories)

	second, err := f.bookings.Create(ctx, bookingRequest("2026-01-05", "10:30"))
	require.NoError(t, err)
	require.Equal(t, []string{models.AdvisorySharedSlot}, advisoryKinds(second.Advisories))
	assert.Equal(t, first.Booking.ID, *second.Advisories[0].BookingID)

	spill, err := f.bookings.Create(ctx, bookingRequest("2026-01-05", "11:30"))
	require.NoError(t, err)
	assert.Contains(t, advisoryKinds(spill.Advisories), models.AdvisoryOutsideAvailability)
}

func TestBookingCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := bookingRequest("2026-01-05", "10:00")
	req.StudentPhone = ""
	_, err := f.bookings.Create(ctx, req)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	bad := "not-an-email"
	req = bookingRequest("2026-01-05", "10:00")
	req.StudentEmail = &bad
	_, err = f.bookings.Create(ctx, req)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.bookings.Create(ctx, bookingRequest("2026-01-05", "25:00"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	req = bookingRequest("2026-01-05", "10:00")
	req.TeacherID = "ghost"
	_, err = f.bookings.Create(ctx, req)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = f.bookings.UpdateStatus(ctx, "missing", UpdateBookingStatusRequest{Status: models.BookingConfirmed})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestBookingSuggestCountsActiveBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.availability.Replace(ctx, "t1", ReplaceAvailabilityRequest{Windows: []AvailabilityWindowInput{window(time.Monday, "08:00", "11:00")}})
	require.NoError(t, err)
	f.seedSession(t, "t1", "2026-01-05", "08:00", 60)

	_, err = f.bookings.Create(ctx, bookingRequest("2026-01-05", "09:00"))
	require.NoError(t, err)
	_, err = f.bookings.Create(ctx, bookingRequest("2026-01-05", "09:30"))
	require.NoError(t, err)
	cancelled, err := f.bookings.Create(ctx, bookingRequest("2026-01-05", "10:00"))
	require.NoError(t, err)
	_, err = f.bookings.UpdateStatus(ctx, cancelled.Booking.ID, UpdateBookingStatusRequest{Status: models.BookingCancelled})
	require.NoError(t, err)

	suggestions, err := f.bookings.Suggest(ctx, "t1", mustDate(t, "2026-01-05"))
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "09:00", suggestions[0].Start.String())
	assert.Equal(t, 2, suggestions[0].ActiveBookings)
	assert.Equal(t, "10:00", suggestions[1].Start.String())
	assert.Equal(t, 1, suggestions[1].ActiveBookings)
}
