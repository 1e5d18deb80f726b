package provisioning

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordedDuringRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	tr := newTracer()
	o := newTestOrchestrator(t, diamond(tr, map[string][]stepOpt{"D": {failCreate(errBoom)}}), WithMetrics(m))
	_, err := o.Apply(context.Background())
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.stepTotal.WithLabelValues("A", "apply", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.stepTotal.WithLabelValues("D", "apply", "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.stepTotal.WithLabelValues("A", "destroy", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runTotal.WithLabelValues("apply", "RolledBack")), 0)

	count, err := testutil.GatherAndCount(reg, "rabbitkind_step_duration_seconds")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.recordStep("a", ModeApply, "success", 0)
		m.recordReadiness("a", 3)
		m.recordRun(ModeApply, StatusCompleted, 0)
	})
}
