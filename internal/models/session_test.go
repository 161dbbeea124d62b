package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionTransitions(t *testing.T) {
	assert.True(t, SessionScheduled.CanTransitionTo(SessionLive))
	assert.True(t, SessionScheduled.CanTransitionTo(SessionCancelled))
	assert.True(t, SessionLive.CanTransitionTo(SessionCompleted))
	assert.False(t, SessionLive.CanTransitionTo(SessionCancelled))
	assert.False(t, SessionScheduled.CanTransitionTo(SessionCompleted))
	assert.False(t, SessionScheduled.CanTransitionTo(SessionScheduled))

	all := []SessionStatus{SessionScheduled, SessionLive, SessionCompleted, SessionCancelled}
	for _, terminal := range []SessionStatus{SessionCompleted, SessionCancelled} {
		assert.True(t, terminal.Terminal())
		for _, next := range all {
			assert.False(t, terminal.CanTransitionTo(next), "%s -> %s", terminal, next)
		}
	}
}

func TestLiveSessionCollides(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	a := LiveSession{Date: day, StartTime: MustTimeOfDay("09:00"), EndTime: MustTimeOfDay("10:00")}
	b := LiveSession{Date: day, StartTime: MustTimeOfDay("09:30"), EndTime: MustTimeOfDay("10:30")}
	c := LiveSession{Date: day.AddDate(0, 0, 1), StartTime: MustTimeOfDay("09:30"), EndTime: MustTimeOfDay("10:30")}
	assert.True(t, a.Collides(b))
	assert.False(t, a.Collides(c))
}
