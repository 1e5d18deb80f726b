package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds the time budgets that are not readiness waits.
type Timeouts struct {
	// Command bounds a single kind/kubectl invocation.
	Command Duration `yaml:"command" toml:"command" validate:"gt=0"`
	// Helm bounds a Helm install, upgrade or uninstall including its wait.
	Helm Duration `yaml:"helm" toml:"helm" validate:"gt=0"`
	// Rollback bounds the teardown after a failed apply.
	Rollback Duration `yaml:"rollback" toml:"rollback" validate:"gt=0"`
}

// Environment variables overriding configured timeouts.
const (
	EnvTimeoutCommand      = "RABBITKIND_TIMEOUT_COMMAND"
	EnvTimeoutHelm         = "RABBITKIND_TIMEOUT_HELM"
	EnvTimeoutRollback     = "RABBITKIND_TIMEOUT_ROLLBACK"
	EnvTimeoutReadiness    = "RABBITKIND_TIMEOUT_READINESS"
	EnvReadinessInterval   = "RABBITKIND_READINESS_INTERVAL"
	EnvReadinessMultiplier = "RABBITKIND_READINESS_MULTIPLIER"
)

// ApplyEnv overrides timeouts and the readiness policy from environment
// variables. Unset or unparsable variables keep the configured value.
//
// Environment Variables:
//   - RABBITKIND_TIMEOUT_COMMAND
//   - RABBITKIND_TIMEOUT_HELM
//   - RABBITKIND_TIMEOUT_ROLLBACK
//   - RABBITKIND_TIMEOUT_READINESS
//   - RABBITKIND_READINESS_INTERVAL
//   - RABBITKIND_READINESS_MULTIPLIER
func (c *Config) ApplyEnv() {
	c.Timeouts.Command = parseDuration(EnvTimeoutCommand, c.Timeouts.Command)
	c.Timeouts.Helm = parseDuration(EnvTimeoutHelm, c.Timeouts.Helm)
	c.Timeouts.Rollback = parseDuration(EnvTimeoutRollback, c.Timeouts.Rollback)
	c.Readiness.Timeout = parseDuration(EnvTimeoutReadiness, c.Readiness.Timeout)
	c.Readiness.Interval = parseDuration(EnvReadinessInterval, c.Readiness.Interval)
	c.Readiness.Multiplier = parseFloat(EnvReadinessMultiplier, c.Readiness.Multiplier)
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal Duration) Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return Duration(d)
}

// parseFloat parses a float from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseFloat(envVar string, defaultVal float64) float64 {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}

	return f
}
