package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(570), got)

	got, err = ParseTimeOfDay("13:05:00")
	require.NoError(t, err)
	assert.Equal(t, "13:05", got.String())

	_, err = ParseTimeOfDay("9h")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestTimeOfDayScan(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.Scan([]byte("10:15:00")))
	assert.Equal(t, "10:15", tod.String())
	require.NoError(t, tod.Scan(time.Date(0, 1, 1, 7, 45, 0, 0, time.UTC)))
	assert.Equal(t, "07:45", tod.String())
	require.NoError(t, tod.Scan("08:00:00.000000"))
	assert.Equal(t, TimeOfDay(480), tod)
	assert.Error(t, tod.Scan(42))
}

func TestTimeOfDayJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Slot{Start: MustTimeOfDay("09:00"), End: MustTimeOfDay("10:00")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"09:00","end":"10:00"}`, string(raw))

	var slot Slot
	require.NoError(t, json.Unmarshal(raw, &slot))
	assert.Equal(t, TimeOfDay(540), slot.Start)
}

func TestSlotOverlapIsHalfOpen(t *testing.T) {
	nine := Slot{Start: MustTimeOfDay("09:00"), End: MustTimeOfDay("10:00")}
	assert.True(t, nine.Overlaps(Slot{Start: MustTimeOfDay("09:30"), End: MustTimeOfDay("10:30")}))
	assert.False(t, nine.Overlaps(Slot{Start: MustTimeOfDay("10:00"), End: MustTimeOfDay("11:00")}))
	assert.True(t, nine.Contains(MustTimeOfDay("09:59")))
	assert.False(t, nine.Contains(MustTimeOfDay("10:00")))
}

func TestTimeOfDayOn(t *testing.T) {
	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC), MustTimeOfDay("09:30").On(date))
}
