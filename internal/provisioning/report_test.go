package provisioning

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportBuilder_SealAppendsPendingInApplyMode(t *testing.T) {
	rb := newReportBuilder("r", "c", ModeApply, []string{"a", "b", "c"}, fixedNow())
	rb.put(Record{StepID: "b", State: StateFailed, Error: "x"})
	rb.failed("b", errors.New("x"))

	r := rb.seal(StatusFailed)

	require.Len(t, r.Records, 3)
	assert.Equal(t, "b", r.Records[0].StepID)
	assert.Equal(t, StatePending, r.Records[1].State)
	assert.Equal(t, "a", r.Records[1].StepID)
	assert.Equal(t, "c", r.Records[2].StepID)
	assert.Equal(t, "b", r.FailedStep)
	assert.Equal(t, "x", r.Cause)
	assert.True(t, r.FinishedAt.After(r.StartedAt))
}

func TestReportBuilder_DestroyDoesNotPad(t *testing.T) {
	rb := newReportBuilder("r", "c", ModeDestroy, []string{"a", "b"}, fixedNow())
	rb.put(Record{StepID: "b", State: StateRolledBack})

	r := rb.seal(StatusDestroyed)
	assert.Len(t, r.Records, 1)
}

func TestReportBuilder_PutKeepsFirstPosition(t *testing.T) {
	rb := newReportBuilder("r", "c", ModeApply, []string{"a", "b"}, fixedNow())
	rb.put(Record{StepID: "a", State: StateSucceeded})
	rb.put(Record{StepID: "b", State: StateSucceeded})
	rb.put(Record{StepID: "a", State: StateRolledBack})

	r := rb.seal(StatusRolledBack)
	require.Len(t, r.Records, 2)
	assert.Equal(t, "a", r.Records[0].StepID)
	assert.Equal(t, StateRolledBack, r.Records[0].State)
}

func TestReportBuilder_SealedReportIsDetached(t *testing.T) {
	rb := newReportBuilder("r", "c", ModeApply, []string{"a"}, fixedNow())
	rb.put(Record{StepID: "a", State: StateSucceeded, Values: map[string]string{"k": "v"}})
	r := rb.seal(StatusCompleted)

	rb.put(Record{StepID: "a", State: StateFailed})
	rb.report.Records[0].Values = map[string]string{"k": "changed"}

	assert.Equal(t, StateSucceeded, r.Records[0].State)
	assert.Equal(t, "v", r.Records[0].Values["k"])
}

func TestRunReport_Accessors(t *testing.T) {
	r := &RunReport{
		Records: []Record{
			{StepID: "a", State: StateSucceeded, Output: "ao"},
			{StepID: "b", State: StateFailed, Error: "boom"},
			{StepID: "c", State: StateSucceeded, Values: map[string]string{"user": "guest"}},
		},
	}

	assert.Equal(t, []string{"a", "c"}, r.Succeeded())
	outputs := r.Outputs()
	assert.Len(t, outputs, 2)
	assert.Equal(t, "ao", outputs["a"].Output)
	assert.Equal(t, "guest", outputs["c"].Value("user"))

	b, ok := r.Record("b")
	require.True(t, ok)
	assert.Equal(t, "boom", b.Error)
	_, ok = r.Record("zz")
	assert.False(t, ok)
}

func TestRunReport_JSONShape(t *testing.T) {
	rb := newReportBuilder("run-42", "rabbit", ModeApply, []string{"a"}, fixedNow())
	rb.put(Record{StepID: "a", State: StateSucceeded, Output: "ok", Attempts: 3})
	data, err := json.Marshal(rb.seal(StatusCompleted))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "run-42", raw["runId"])
	assert.Equal(t, "Completed", raw["status"])
	assert.Equal(t, "apply", raw["mode"])
	records := raw["records"].([]any)
	require.Len(t, records, 1)
	first := records[0].(map[string]any)
	assert.Equal(t, "a", first["stepId"])
	assert.Equal(t, "Succeeded", first["state"])
	assert.InDelta(t, 3, first["readinessAttempts"], 0)
	assert.NotContains(t, first, "error")
}

func TestStepState_Terminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.False(t, StateAwaitingReady.Terminal())
	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateRolledBack.Terminal())
}
