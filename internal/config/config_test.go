package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetenvDuration(t *testing.T) {
	t.Setenv("TEST_IDLE", "90m")
	assert.Equal(t, 90*time.Minute, getenvDuration("TEST_IDLE", time.Hour))

	t.Setenv("TEST_IDLE", "120")
	assert.Equal(t, 2*time.Minute, getenvDuration("TEST_IDLE", time.Hour))

	t.Setenv("TEST_IDLE", "nonsense")
	assert.Equal(t, time.Hour, getenvDuration("TEST_IDLE", time.Hour))

	t.Setenv("TEST_IDLE", "0")
	assert.Equal(t, time.Duration(0), getenvDuration("TEST_IDLE", time.Hour))
}

func TestLoadForcesSecureCookieInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("AUTH_COOKIE_SECURE", "false")

	cfg := Load()
	assert.True(t, cfg.AuthCookieSecure)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 4*time.Hour, cfg.AuthSessionIdleTimeout)
}

func TestJobScheduleHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yml")
	content := []byte(`
jobs:
  schedules:
    - name: bir:aggregate-daily
      interval: 2h
      enabled: true
    - name: dsr:update
      interval: 30m
      enabled: false
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := NewJobScheduleHolder(Config{JobsConfigPath: path}, zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	require.Len(t, got.Schedules, 2)
	assert.Equal(t, "bir:aggregate-daily", got.Schedules[0].Name)
	assert.Equal(t, 2*time.Hour, got.Schedules[0].Interval)
	assert.False(t, got.Schedules[1].Enabled)
}

func TestValidateJobsConfig(t *testing.T) {
	assert.NoError(t, validateJobsConfig(DefaultJobsConfig()))

	err := validateJobsConfig(JobsConfig{Schedules: []JobSchedule{{Name: "x", Interval: time.Second, Enabled: true}}})
	assert.Error(t, err)

	err = validateJobsConfig(JobsConfig{Schedules: []JobSchedule{
		{Name: "x", Interval: time.Hour, Enabled: true},
		{Name: "x", Interval: time.Hour, Enabled: true},
	}})
	assert.Error(t, err)
}
