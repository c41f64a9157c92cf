package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the migration tool
type Config struct {
	// Database holding the legacy and custom tables
	Database DatabaseConfig `yaml:"database"`

	// Migration behavior
	Migration MigrationConfig `yaml:"migration"`

	// Concurrency configuration
	Concurrency ConcurrencyConfig `yaml:"concurrency"`

	// Site-wide migration lock
	Lock LockConfig `yaml:"lock"`

	// Checkpoint configuration
	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	// Background worker schedule
	Schedule ScheduleConfig `yaml:"schedule"`

	// Output configuration
	Output OutputConfig `yaml:"output"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path         string `yaml:"path"`
	Transactions bool   `yaml:"transactions"` // false when the host storage cannot roll back
}

// MigrationConfig holds migration behavior configuration
type MigrationConfig struct {
	PostType             string  `yaml:"post_type"`
	BatchSize            int     `yaml:"batch_size"`
	HorizonMonths        int     `yaml:"horizon_months"`  // expansion limit of unbounded rules
	MaxOccurrences       int     `yaml:"max_occurrences"` // per event
	SecondsPerEvent      float64 `yaml:"seconds_per_event"`
	BlockOnPreviewErrors bool    `yaml:"block_on_preview_errors"`
}

// ConcurrencyConfig holds concurrency configuration
type ConcurrencyConfig struct {
	Workers         int           `yaml:"workers"` // post prefetch workers
	EventsPerSecond int           `yaml:"events_per_second"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
}

// LockConfig holds the migration lock configuration
type LockConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// CheckpointConfig holds checkpoint/resume configuration
type CheckpointConfig struct {
	File string `yaml:"file"`
}

// ScheduleConfig holds the background worker configuration
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// OutputConfig holds output configuration
type OutputConfig struct {
	ReportFile string `yaml:"report_file"`
	Format     string `yaml:"format"` // table, json
	Progress   bool   `yaml:"progress"`
	LogFile    string `yaml:"log_file"`
	LogLevel   string `yaml:"log_level"` // debug, info, warn, error
}

// NewDefaultConfig returns a Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "wordpress.db",
			Transactions: true,
		},
		Migration: MigrationConfig{
			PostType:             "tribe_events",
			BatchSize:            50,
			HorizonMonths:        24,
			MaxOccurrences:       1000,
			SecondsPerEvent:      0.5,
			BlockOnPreviewErrors: true,
		},
		Concurrency: ConcurrencyConfig{
			Workers:       4,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
		Lock: LockConfig{
			TTL: 5 * time.Minute,
		},
		Checkpoint: CheckpointConfig{
			File: "ct1-migration.json",
		},
		Schedule: ScheduleConfig{
			Cron: "@every 1m",
		},
		Output: OutputConfig{
			Format:   "table",
			Progress: true,
			LogLevel: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := NewDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
