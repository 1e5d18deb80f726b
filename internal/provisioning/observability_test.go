package provisioning

import (
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture returns a logger that appends formatted lines to out.
func capture(out *[]string) logr.Logger {
	return funcr.New(func(prefix, args string) {
		*out = append(*out, prefix+" "+args)
	}, funcr.Options{Verbosity: 1})
}

func TestLogObserver_Event(t *testing.T) {
	var lines []string
	obs := NewLogObserver(capture(&lines)).WithFields(map[string]string{"run": "r-1"})

	obs.Event(Event{
		Type:    EventStepSucceeded,
		Step:    "cert-manager",
		Message: "completed in 3s",
		Fields:  map[string]string{"duration": "3s"},
	})

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg"="completed in 3s"`)
	assert.Contains(t, lines[0], `"event"="step.succeeded"`)
	assert.Contains(t, lines[0], `"step"="cert-manager"`)
	assert.Contains(t, lines[0], `"run"="r-1"`)
	assert.Contains(t, lines[0], `"duration"="3s"`)
}

func TestLogObserver_FailuresLogAsErrors(t *testing.T) {
	var lines []string
	obs := NewLogObserver(capture(&lines))

	LogStepFailed(obs, "openldap", errors.New("pod not ready"))

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"error"`)
	assert.Contains(t, lines[0], "pod not ready")
}

func TestLogObserver_VerboseEvents(t *testing.T) {
	var lines []string
	quiet := NewLogObserver(funcr.New(func(_, args string) {
		lines = append(lines, args)
	}, funcr.Options{}))

	quiet.Event(Event{Type: EventStepAwaitingReady, Step: "x", Message: "waiting"})
	assert.Empty(t, lines)

	quiet.Event(Event{Type: EventStepStarted, Step: "x", Message: "starting"})
	assert.Len(t, lines, 1)
}

func TestLogObserver_WithFieldsDoesNotMutateParent(t *testing.T) {
	var lines []string
	parent := NewLogObserver(capture(&lines))
	_ = parent.WithFields(map[string]string{"run": "child"})

	parent.Event(Event{Type: EventRunStarted, Message: "apply started"})
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "child")
}

func TestMultiObserver(t *testing.T) {
	a, b := NewRecordingObserver(), NewRecordingObserver()
	multi := MultiObserver{a, nil, b}.WithFields(map[string]string{"cluster": "rabbit"})

	LogStepSucceeded(multi, "namespace", 1500*time.Millisecond)

	for _, rec := range []*RecordingObserver{a, b} {
		events := rec.Events()
		require.Len(t, events, 1)
		assert.Equal(t, EventStepSucceeded, events[0].Type)
		assert.Equal(t, "rabbit", events[0].Fields["cluster"])
		assert.Equal(t, "1.5s", events[0].Fields["duration"])
		assert.False(t, events[0].Timestamp.IsZero())
	}
}

func TestRecordingObserver_Types(t *testing.T) {
	rec := NewRecordingObserver()
	scoped := rec.WithFields(map[string]string{"a": "1"}).WithFields(map[string]string{"b": "2"})

	scoped.Event(Event{Type: EventStepStarted, Step: "s1"})
	scoped.Event(Event{Type: EventStepSucceeded, Step: "s1"})
	rec.Event(Event{Type: EventStepStarted, Step: "s2"})

	assert.Equal(t, []EventType{EventStepStarted, EventStepSucceeded}, rec.Types("s1"))
	assert.Len(t, rec.Types(""), 3)
	assert.Equal(t, "2", rec.Events()[0].Fields["b"])
	assert.Equal(t, "1", rec.Events()[0].Fields["a"])
}

func TestNopObserver(t *testing.T) {
	obs := NopObserver()
	obs.Event(Event{Type: EventRunStarted})
	assert.NotNil(t, obs.WithFields(map[string]string{"k": "v"}))
}
