package config

// DefaultConfig returns the default run configuration.
func DefaultConfig() *Config {
	return &Config{
		Policy:      "PRIORITY",
		Mode:        "single-pass",
		Concurrency: 4,
		TimeScale:   1.0,
		Resources:   map[string]int{},
		LogLevel:    "info",
		Resilience: ResilienceConfig{
			Enabled:               false,
			MaxRetries:            3,
			InitialIntervalMS:     100,
			MaxIntervalMS:         10000,
			BreakerFailures:       5,
			BreakerTimeoutSeconds: 30,
		},
	}
}
