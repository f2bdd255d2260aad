package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nicktill/crowdwait/pkg/locations"
	"github.com/nicktill/crowdwait/pkg/session"
)

// Config holds all crowdwait configuration.
type Config struct {
	Server      ServerConfig                   `yaml:"server"`
	Storage     StorageConfig                  `yaml:"storage"`
	Log         LogConfig                      `yaml:"log"`
	Refresh     RefreshConfig                  `yaml:"refresh"`
	Export      ExportConfig                   `yaml:"export"`
	Kafka       KafkaConfig                    `yaml:"kafka"`
	TimeZone    string                         `yaml:"time_zone"`
	Sessions    []SessionConfig                `yaml:"sessions"`
	Locations   []locations.Location           `yaml:"locations"`
	Multipliers map[locations.Category]float64 `yaml:"multipliers"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // badger, sqlite or memory
	DataDir     string `yaml:"data_dir"`
	MaxMemoryMB int64  `yaml:"max_memory_mb"`
}

type LogConfig struct {
	Path      string `yaml:"path"`
	ChunkSize int    `yaml:"chunk_size"`
}

type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
	Testing  bool          `yaml:"testing"`
}

type ExportConfig struct {
	DensityPrecision int `yaml:"density_precision"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// SessionConfig is one named date range in "mm/dd/yy-mm/dd/yy" notation.
type SessionConfig struct {
	Label string `yaml:"label"`
	Dates string `yaml:"dates"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when set and present, otherwise the defaults.
// Environment overrides are applied and the result validated.
func LoadOrDefault(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
			log.Printf("⚠️  Config file %s not found, using defaults", path)
		default:
			return nil, err
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from CROWDWAIT_* environment variables
func (c *Config) ApplyEnv() {
	c.Server.Port = getEnv("CROWDWAIT_PORT", c.Server.Port)
	c.Storage.Backend = getEnv("CROWDWAIT_STORAGE", c.Storage.Backend)
	c.Storage.DataDir = getEnv("CROWDWAIT_DATA_DIR", c.Storage.DataDir)
	c.Storage.MaxMemoryMB = getEnvInt64("CROWDWAIT_MAX_MEMORY_MB", c.Storage.MaxMemoryMB)
	c.Log.Path = getEnv("CROWDWAIT_LOG_PATH", c.Log.Path)
	c.TimeZone = getEnv("CROWDWAIT_TIME_ZONE", c.TimeZone)
	c.Refresh.Testing = getEnvBool("CROWDWAIT_TESTING", c.Refresh.Testing)
	if brokers := os.Getenv("CROWDWAIT_KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
}

// Validate checks every section, including that the calendar and table build
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "badger", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %v", c.Refresh.Interval)
	}
	if c.Export.DensityPrecision < 0 {
		return fmt.Errorf("density precision must not be negative, got %d", c.Export.DensityPrecision)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Calendar(); err != nil {
		return err
	}
	if _, err := c.Table(); err != nil {
		return err
	}
	return nil
}

// Location loads the configured time zone
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Calendar builds the session calendar
func (c *Config) Calendar() (*session.Calendar, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	ranges := make([]session.Range, 0, len(c.Sessions))
	for _, s := range c.Sessions {
		r, err := session.ParseRange(s.Label, s.Dates, loc)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	cal, err := session.NewCalendar(ranges)
	if err != nil {
		return nil, fmt.Errorf("building session calendar: %w", err)
	}
	return cal, nil
}

// Table builds the location table
func (c *Config) Table() (*locations.Table, error) {
	table, err := locations.NewTable(c.Locations, c.Multipliers)
	if err != nil {
		return nil, fmt.Errorf("building location table: %w", err)
	}
	return table, nil
}

// Interval returns the effective refresh interval
func (c *Config) Interval() time.Duration {
	if c.Refresh.Testing {
		return RefreshTestingInterval
	}
	return c.Refresh.Interval
}

// getEnv gets a string from environment variable or returns default
func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt64 gets an int64 from environment variable or returns default
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

// getEnvBool gets a bool from environment variable or returns default
func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid value for %s: %q, using default %t", key, val, defaultValue)
	}
	return defaultValue
}
