package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/taskflow/internal/scheduler"
)

// ModeParallel selects the concurrent runner instead of the sequential scheduler.
const ModeParallel = "parallel"

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks that every setting is usable. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if _, err := scheduler.ParsePolicy(c.Policy); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}
	if !c.IsParallel() {
		if _, err := scheduler.ParseMode(c.Mode); err != nil {
			errs = append(errs, fmt.Errorf("mode: %w", err))
		}
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.TimeScale < 0 {
		errs = append(errs, fmt.Errorf("time_scale must not be negative, got %g", c.TimeScale))
	}
	for name, count := range c.Resources {
		if name == "" {
			errs = append(errs, errors.New("resources: resource name must not be empty"))
		} else if count < 0 {
			errs = append(errs, fmt.Errorf("resources.%s: count must not be negative, got %d", name, count))
		}
	}
	if err := ValidateLogLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ValidateLogLevel rejects anything but debug, info, warn or error.
func ValidateLogLevel(level string) error {
	if !logLevels[strings.ToLower(level)] {
		return fmt.Errorf("must be one of debug, info, warn, error; got %q", level)
	}
	return nil
}

// IsParallel reports whether the configured mode is the concurrent runner.
func (c *Config) IsParallel() bool {
	return strings.EqualFold(strings.TrimSpace(c.Mode), ModeParallel)
}
