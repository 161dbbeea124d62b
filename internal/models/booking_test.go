package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingTransitions(t *testing.T) {
	assert.True(t, BookingPending.CanTransitionTo(BookingConfirmed))
	assert.True(t, BookingConfirmed.CanTransitionTo(BookingCompleted))
	assert.True(t, BookingPending.CanTransitionTo(BookingCancelled))
	assert.True(t, BookingConfirmed.CanTransitionTo(BookingCancelled))
	assert.False(t, BookingConfirmed.CanTransitionTo(BookingPending))
	assert.False(t, BookingPending.CanTransitionTo(BookingCompleted))
	assert.False(t, BookingCompleted.CanTransitionTo(BookingCancelled))
	assert.False(t, BookingCancelled.CanTransitionTo(BookingPending))
}

func TestBookingSlotClampsToMidnight(t *testing.T) {
	booking := Booking{Time: TimeOfDay(8*60 + 30)}
	assert.Equal(t, Slot{Start: TimeOfDay(8*60 + 30), End: TimeOfDay(9*60 + 30)}, booking.Slot(60))

	late := Booking{Time: TimeOfDay(23*60 + 30)}
	assert.Equal(t, TimeOfDay(MinutesPerDay), late.Slot(60).End)
}
