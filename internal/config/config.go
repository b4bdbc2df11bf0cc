package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPollTimeout bounds each readiness wait of the relay loop
	DefaultPollTimeout = 500 * time.Millisecond

	// DefaultBufferSize is the size of each per-direction transfer buffer
	DefaultBufferSize = 2048
)

// Config holds the runtime settings of a relay process
type Config struct {
	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// LogFormat selects console or JSON log lines
	LogFormat Format

	// PollTimeout is the upper bound of a single readiness wait
	PollTimeout time.Duration

	// BufferSize is the number of bytes read per direction per iteration
	BufferSize int

	// MetricsAddr is the listen address of the Prometheus endpoint; empty disables it
	MetricsAddr string

	// problems collects values from the environment that failed to parse
	problems []string
}

// Load creates a Config by reading from environment variables
// and applying defaults where values are not set
func Load() *Config {
	cfg := &Config{
		LogLevel:    getEnvOrDefault("SOCKWRENCH_LOG_LEVEL", "info"),
		LogFormat:   Format(strings.ToLower(getEnvOrDefault("SOCKWRENCH_LOG_FORMAT", string(FormatConsole)))),
		PollTimeout: DefaultPollTimeout,
		BufferSize:  DefaultBufferSize,
		MetricsAddr: getEnvOrDefault("SOCKWRENCH_METRICS_ADDR", ""),
	}

	if val := os.Getenv("SOCKWRENCH_POLL_TIMEOUT"); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			cfg.problems = append(cfg.problems, fmt.Sprintf("SOCKWRENCH_POLL_TIMEOUT: %v", err))
		} else {
			cfg.PollTimeout = timeout
		}
	}

	if val := os.Getenv("SOCKWRENCH_BUFFER_SIZE"); val != "" {
		size, err := strconv.Atoi(val)
		if err != nil {
			cfg.problems = append(cfg.problems, fmt.Sprintf("SOCKWRENCH_BUFFER_SIZE: %v", err))
		} else {
			cfg.BufferSize = size
		}
	}

	return cfg
}

// Validate checks that every configuration value is usable
func (c *Config) Validate() error {
	invalid := append([]string(nil), c.problems...)

	if !c.LogFormat.IsValid() {
		invalid = append(invalid, fmt.Sprintf("log format %q (want console or json)", c.LogFormat))
	}
	if c.PollTimeout <= 0 {
		invalid = append(invalid, fmt.Sprintf("poll timeout %s must be positive", c.PollTimeout))
	}
	if c.BufferSize <= 0 {
		invalid = append(invalid, fmt.Sprintf("buffer size %d must be positive", c.BufferSize))
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, "; "))
	}

	return nil
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
