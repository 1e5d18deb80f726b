package provisioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the orchestrator's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	stepTotal         *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
	readinessAttempts *prometheus.HistogramVec
	runTotal          *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rabbitkind",
				Subsystem: "step",
				Name:      "total",
				Help:      "Total number of step executions by mode and result",
			},
			[]string{"step", "mode", "result"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rabbitkind",
				Subsystem: "step",
				Name:      "duration_seconds",
				Help:      "Duration of step execution in seconds, including readiness",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4min
			},
			[]string{"step", "mode"},
		),
		readinessAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rabbitkind",
				Subsystem: "step",
				Name:      "readiness_attempts",
				Help:      "Number of readiness probe attempts per step",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1 to 128
			},
			[]string{"step"},
		),
		runTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rabbitkind",
				Subsystem: "run",
				Name:      "total",
				Help:      "Total number of runs by mode and status",
			},
			[]string{"mode", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rabbitkind",
				Subsystem: "run",
				Name:      "duration_seconds",
				Help:      "Duration of whole runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(10, 2, 8), // 10s to ~21min
			},
			[]string{"mode"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.stepTotal, m.stepDuration, m.readinessAttempts, m.runTotal, m.runDuration)
	}
	return m
}

func (m *Metrics) recordStep(step string, mode Mode, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepTotal.WithLabelValues(step, string(mode), result).Inc()
	m.stepDuration.WithLabelValues(step, string(mode)).Observe(d.Seconds())
}

func (m *Metrics) recordReadiness(step string, attempts int) {
	if m == nil || attempts == 0 {
		return
	}
	m.readinessAttempts.WithLabelValues(step).Observe(float64(attempts))
}

func (m *Metrics) recordRun(mode Mode, status Status, d time.Duration) {
	if m == nil {
		return
	}
	m.runTotal.WithLabelValues(string(mode), string(status)).Inc()
	m.runDuration.WithLabelValues(string(mode)).Observe(d.Seconds())
}
