package provisioning

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Observer receives structured events as a run progresses.
type Observer interface {
	// Event emits a structured event
	Event(event Event)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured orchestration event.
type Event struct {
	Type      EventType         // Type of event
	Step      string            // Step ID, empty for run-level events
	Message   string            // Human-readable message
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of orchestration event.
type EventType string

const (
	// EventRunStarted indicates Apply or Destroy has started.
	EventRunStarted EventType = "run.started"
	// EventRunCompleted indicates a run finished; Fields["status"] carries the outcome.
	EventRunCompleted EventType = "run.completed"
	// EventRollbackStarted indicates rollback of succeeded steps has begun.
	EventRollbackStarted EventType = "run.rollback"

	// EventStepStarted indicates a step's create action is about to run.
	EventStepStarted EventType = "step.started"
	// EventStepAwaitingReady indicates a step is polling its readiness probe.
	EventStepAwaitingReady EventType = "step.awaiting_ready"
	// EventStepSucceeded indicates a step completed.
	EventStepSucceeded EventType = "step.succeeded"
	// EventStepFailed indicates a step failed.
	EventStepFailed EventType = "step.failed"
	// EventStepSkipped indicates a step was not executed, for example because
	// a prior run already applied it or it has no delete action.
	EventStepSkipped EventType = "step.skipped"

	// EventStepDeleting indicates a step's delete action is about to run.
	EventStepDeleting EventType = "step.deleting"
	// EventStepDeleted indicates a step's delete action completed.
	EventStepDeleted EventType = "step.deleted"
	// EventStepDeleteFailed indicates a step's delete action failed.
	EventStepDeleteFailed EventType = "step.delete_failed"
)

// LogObserver implements Observer on top of a logr.Logger.
type LogObserver struct {
	log           logr.Logger
	contextFields map[string]string
}

// NewLogObserver creates an observer that writes each event as a log line.
func NewLogObserver(log logr.Logger) *LogObserver {
	return &LogObserver{log: log, contextFields: make(map[string]string)}
}

// Event implements Observer interface.
func (o *LogObserver) Event(event Event) {
	kv := []any{"event", string(event.Type)}
	if event.Step != "" {
		kv = append(kv, "step", event.Step)
	}
	fields := mergeFields(o.contextFields, event.Fields)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		kv = append(kv, k, fields[k])
	}

	switch event.Type {
	case EventStepFailed, EventStepDeleteFailed:
		o.log.Error(nil, event.Message, kv...)
	case EventStepAwaitingReady, EventStepDeleting:
		o.log.V(1).Info(event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

// WithFields implements Observer interface.
func (o *LogObserver) WithFields(fields map[string]string) Observer {
	return &LogObserver{log: o.log, contextFields: mergeFields(o.contextFields, fields)}
}

// MultiObserver fans every event out to several observers.
type MultiObserver []Observer

// Event implements Observer interface.
func (m MultiObserver) Event(event Event) {
	for _, o := range m {
		if o != nil {
			o.Event(event)
		}
	}
}

// WithFields implements Observer interface.
func (m MultiObserver) WithFields(fields map[string]string) Observer {
	out := make(MultiObserver, 0, len(m))
	for _, o := range m {
		if o != nil {
			out = append(out, o.WithFields(fields))
		}
	}
	return out
}

// RecordingObserver keeps every event in memory. It is safe for concurrent use.
type RecordingObserver struct {
	mu     sync.Mutex
	events []Event
	fields map[string]string
}

// NewRecordingObserver creates an empty recording observer.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

// Event implements Observer interface.
func (r *RecordingObserver) Event(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.Fields = mergeFields(r.fields, event.Fields)
	r.events = append(r.events, event)
}

// WithFields implements Observer interface. The returned observer shares the event log.
func (r *RecordingObserver) WithFields(fields map[string]string) Observer {
	return &scopedRecorder{parent: r, fields: fields}
}

// Events returns a copy of the recorded events.
func (r *RecordingObserver) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Types returns the recorded event types, optionally only those for one step.
func (r *RecordingObserver) Types(step string) []EventType {
	var out []EventType
	for _, e := range r.Events() {
		if step == "" || e.Step == step {
			out = append(out, e.Type)
		}
	}
	return out
}

type scopedRecorder struct {
	parent *RecordingObserver
	fields map[string]string
}

func (s *scopedRecorder) Event(event Event) {
	event.Fields = mergeFields(s.fields, event.Fields)
	s.parent.Event(event)
}

func (s *scopedRecorder) WithFields(fields map[string]string) Observer {
	return &scopedRecorder{parent: s.parent, fields: mergeFields(s.fields, fields)}
}

type nopObserver struct{}

func (nopObserver) Event(Event) {}
func (n nopObserver) WithFields(map[string]string) Observer { return n }

// NopObserver returns an observer that discards everything.
func NopObserver() Observer { return nopObserver{} }

// mergeFields returns base overlaid with extra; extra wins on conflicts.
func mergeFields(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}

// Helper functions for common events

func emit(o Observer, typ EventType, step, message string, fields map[string]string) {
	o.Event(Event{
		Type:      typ,
		Step:      step,
		Message:   message,
		Timestamp: time.Now(),
		Fields:    fields,
	})
}

// LogStepFailed emits a step failure event.
func LogStepFailed(o Observer, step string, err error) {
	emit(o, EventStepFailed, step, fmt.Sprintf("failed: %v", err), map[string]string{"error": err.Error()})
}

// LogStepSucceeded emits a step completion event.
func LogStepSucceeded(o Observer, step string, duration time.Duration) {
	emit(o, EventStepSucceeded, step, fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
		map[string]string{"duration": duration.Round(time.Millisecond).String()})
}
