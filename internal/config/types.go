package config

// ResilienceConfig controls the retry and circuit breaker wrapper around the worker.
type ResilienceConfig struct {
	Enabled               bool   `json:"enabled"`
	MaxRetries            uint64 `json:"max_retries"`             // Retries after the first attempt
	InitialIntervalMS     int    `json:"initial_interval_ms"`     // First backoff interval
	MaxIntervalMS         int    `json:"max_interval_ms"`         // Backoff ceiling
	BreakerFailures       uint32 `json:"breaker_failures"`        // Consecutive failures that open a category's breaker
	BreakerTimeoutSeconds int    `json:"breaker_timeout_seconds"` // Time a breaker stays open before probing
}

// Config is the top-level run configuration.
type Config struct {
	Policy          string           `json:"policy"`                 // PRIORITY, SHORTEST or DEPENDENCY
	Mode            string           `json:"mode"`                   // single-pass, topological or parallel
	Concurrency     int              `json:"concurrency"`            // Parallel mode only
	TimeScale       float64          `json:"time_scale"`             // Multiplier on task durations; 0 skips the wait
	StrictResources bool             `json:"strict_resources"`       // Reject tasks naming resources the pool is not seeded with
	Resources       map[string]int   `json:"resources,omitempty"`    // Overrides the batch's pool seed per resource
	LogLevel        string           `json:"log_level"`              // debug, info, warn or error
	ArchivePath     string           `json:"archive_path,omitempty"` // SQLite run archive; empty disables archiving
	Resilience      ResilienceConfig `json:"resilience"`
}
