// Package benchmarks provides timing estimates for provisioning steps.
package benchmarks

import (
	"time"

	"github.com/imamik/rabbitkind/internal/stack"
)

// DefaultTimings are median step durations from local kind runs with a warm
// image cache (seconds).
var DefaultTimings = map[string]int{
	stack.KindCluster:         40,
	stack.Namespace:           1,
	stack.CertManager:         60,
	stack.RabbitMQOperator:    30,
	stack.TopologyOperator:    40,
	stack.LDAPCredentials:     1,
	stack.OpenLDAP:            20,
	stack.RabbitMQCluster:     90,
	stack.RabbitMQCredentials: 1,
}

// fallbackSeconds is assumed for steps without a benchmark.
const fallbackSeconds = 30

// Completed is a step that finished, with its observed duration.
type Completed struct {
	Step string
	Took time.Duration
}

// Expected returns the benchmark duration for a step.
func Expected(step string) time.Duration {
	secs, ok := DefaultTimings[step]
	if !ok {
		secs = fallbackSeconds
	}
	return time.Duration(secs) * time.Second
}

// EstimateRemaining calculates the estimated time remaining from the step
// currently running, its elapsed time, and the steps already completed.
func EstimateRemaining(order []string, current string, elapsed time.Duration, done []Completed) time.Duration {
	return EstimateRemainingWithScale(order, current, elapsed, done, PerformanceScale(current, elapsed, done))
}

// EstimateRemainingWithScale calculates ETA while applying a performance scale factor.
func EstimateRemainingWithScale(order []string, current string, elapsed time.Duration, done []Completed, scale float64) time.Duration {
	completed := make(map[string]bool, len(done))
	for _, c := range done {
		completed[c.Step] = true
	}

	var remaining time.Duration
	for _, step := range order {
		if completed[step] {
			continue
		}
		expected := time.Duration(float64(Expected(step)) * scale)
		if step == current {
			// For the current step: max(0, expected - elapsed)
			if expected > elapsed {
				remaining += expected - elapsed
			}
			continue
		}
		remaining += expected
	}
	return remaining
}

// PerformanceScale derives a speed multiplier from observed-vs-expected durations.
// Example: expected 3m, observed 4m30s => scale=1.5 (future ETAs are stretched by 50%).
func PerformanceScale(current string, elapsed time.Duration, done []Completed) float64 {
	var expectedTotal time.Duration
	var actualTotal time.Duration

	for _, c := range done {
		if c.Took <= 0 {
			continue
		}
		expectedTotal += Expected(c.Step)
		actualTotal += c.Took
	}

	// If the current step is overrunning, fold it in immediately so ETA adapts quickly.
	if current != "" && elapsed > 0 {
		expectedCurrent := Expected(current)
		if elapsed > expectedCurrent {
			expectedTotal += expectedCurrent
			actualTotal += elapsed
		}
	}

	if expectedTotal == 0 || actualTotal == 0 {
		return 1.0
	}

	scale := float64(actualTotal) / float64(expectedTotal)
	if scale < 0.6 {
		return 0.6
	}
	if scale > 3.0 {
		return 3.0
	}
	return scale
}

// TotalEstimate returns the total estimated time for the given steps.
func TotalEstimate(order []string) time.Duration {
	var total time.Duration
	for _, step := range order {
		total += Expected(step)
	}
	return total
}
