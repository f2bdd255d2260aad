package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/crowdwait/pkg/locations"
	"github.com/nicktill/crowdwait/pkg/session"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeZone = "UTC"
	require.NoError(t, cfg.Validate())

	table, err := cfg.Table()
	require.NoError(t, err)
	assert.Equal(t, "Robert Purcell Marketplace Eatery", table.DisplayName("RPME"))

	m, ok := table.Multiplier("RPME")
	require.True(t, ok)
	assert.Equal(t, DiningHallMultiplier, m)

	cal, err := cfg.Calendar()
	require.NoError(t, err)
	assert.Equal(t, "winter", cal.Classify(time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, session.Regular, cal.Classify(time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)))
}

func TestLoad_MergesWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crowdwait.yaml")
	doc := `
storage:
  backend: sqlite
refresh:
  interval: 6h
time_zone: UTC
sessions:
  - label: winter
    dates: 12/20/23-01/21/24
locations:
  - unit: RPME
    name: Robert Purcell Marketplace Eatery
    category: dining_hall
multipliers:
  dining_hall: 0.1
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, DefaultDataDir, cfg.Storage.DataDir)
	assert.Equal(t, 6*time.Hour, cfg.Refresh.Interval)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	require.Len(t, cfg.Sessions, 1)
	require.Len(t, cfg.Locations, 1)
	assert.Equal(t, locations.DiningHall, cfg.Locations[0].Category)
	assert.Equal(t, 0.1, cfg.Multipliers[locations.DiningHall])
	// Unset categories keep their default multipliers.
	assert.Equal(t, CafeOnlyMultiplier, cfg.Multipliers[locations.CafeOnly])
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	t.Setenv("CROWDWAIT_TIME_ZONE", "UTC")
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBackend, cfg.Storage.Backend)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CROWDWAIT_PORT", "9090")
	t.Setenv("CROWDWAIT_STORAGE", "memory")
	t.Setenv("CROWDWAIT_MAX_MEMORY_MB", "not-a-number")
	t.Setenv("CROWDWAIT_TESTING", "true")
	t.Setenv("CROWDWAIT_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, int64(DefaultMaxMemoryMB), cfg.Storage.MaxMemoryMB)
	assert.True(t, cfg.Refresh.Testing)
	assert.Equal(t, RefreshTestingInterval, cfg.Interval())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"backend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"interval", func(c *Config) { c.Refresh.Interval = 0 }},
		{"precision", func(c *Config) { c.Export.DensityPrecision = -1 }},
		{"time zone", func(c *Config) { c.TimeZone = "Mars/Olympus_Mons" }},
		{"overlapping sessions", func(c *Config) {
			c.Sessions = []SessionConfig{
				{Label: "winter", Dates: "12/19/24-01/20/25"},
				{Label: "finals_winter", Dates: "01/10/25-01/25/25"},
			}
		}},
		{"bad range", func(c *Config) { c.Sessions = []SessionConfig{{Label: "x", Dates: "12/19/24"}} }},
		{"missing multiplier", func(c *Config) { delete(c.Multipliers, locations.Specialty) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.TimeZone = "UTC"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
