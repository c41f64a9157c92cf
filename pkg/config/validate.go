package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msg := "configuration validation failed:\n"
	for _, err := range e {
		msg += fmt.Sprintf("  - %s\n", err.Error())
	}
	return msg
}

// Validate validates the configuration and returns any errors
func (c *Config) Validate() error {
	var errs ValidationErrors

	// Validate database configuration
	if c.Database.Path == "" {
		errs = append(errs, ValidationError{Field: "database.path", Message: "path is required"})
	}

	// Validate migration configuration
	if c.Migration.PostType == "" {
		errs = append(errs, ValidationError{Field: "migration.post_type", Message: "post type is required"})
	}

	if c.Migration.BatchSize < 1 {
		errs = append(errs, ValidationError{Field: "migration.batch_size", Message: "must be at least 1"})
	}

	if c.Migration.HorizonMonths < 1 {
		errs = append(errs, ValidationError{Field: "migration.horizon_months", Message: "must be at least 1"})
	}

	if c.Migration.MaxOccurrences < 1 {
		errs = append(errs, ValidationError{Field: "migration.max_occurrences", Message: "must be at least 1"})
	}

	if c.Migration.SecondsPerEvent <= 0 {
		errs = append(errs, ValidationError{Field: "migration.seconds_per_event", Message: "must be positive"})
	}

	// Validate concurrency configuration
	if c.Concurrency.Workers < 1 {
		errs = append(errs, ValidationError{Field: "concurrency.workers", Message: "must be at least 1"})
	}

	if c.Concurrency.EventsPerSecond < 0 {
		errs = append(errs, ValidationError{Field: "concurrency.events_per_second", Message: "cannot be negative"})
	}

	if c.Concurrency.RetryAttempts < 0 {
		errs = append(errs, ValidationError{Field: "concurrency.retry_attempts", Message: "cannot be negative"})
	}

	if c.Concurrency.RetryDelay < 0 {
		errs = append(errs, ValidationError{Field: "concurrency.retry_delay", Message: "cannot be negative"})
	}

	// Validate lock configuration
	if c.Lock.TTL <= 0 {
		errs = append(errs, ValidationError{Field: "lock.ttl", Message: "must be positive"})
	}

	// Validate checkpoint configuration
	if c.Checkpoint.File == "" {
		errs = append(errs, ValidationError{Field: "checkpoint.file", Message: "file is required to resume between batches"})
	}

	// Validate schedule
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			errs = append(errs, ValidationError{
				Field:   "schedule.cron",
				Message: fmt.Sprintf("invalid schedule: %v", err),
			})
		}
	}

	// Validate output configuration
	validFormats := map[string]bool{"table": true, "json": true}
	if !validFormats[c.Output.Format] {
		errs = append(errs, ValidationError{
			Field:   "output.format",
			Message: "must be one of: table, json",
		})
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Output.LogLevel] {
		errs = append(errs, ValidationError{
			Field:   "output.log_level",
			Message: "must be one of: debug, info, warn, error",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}
