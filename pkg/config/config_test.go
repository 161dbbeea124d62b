package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 60, cfg.Scheduling.SlotMinutes)
	assert.Equal(t, 4, cfg.Scheduling.HorizonWeeks)
	assert.Equal(t, 2*time.Minute, cfg.Calendar.CacheTTL)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestLoadHorizonClampedToMaximum(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SCHEDULING_HORIZON_WEEKS", "40")
	t.Setenv("SCHEDULING_MAX_HORIZON_WEEKS", "12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Scheduling.HorizonWeeks)
}

func TestSchedulingLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, SchedulingConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "Asia/Jakarta", SchedulingConfig{Timezone: "Asia/Jakarta"}.Location().String())
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , ,b "))
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
