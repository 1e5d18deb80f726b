package provisioning

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
)

// Scheduler executes the steps of a graph one at a time. A Scheduler holds
// the state of a single run; the orchestrator creates a fresh one for every
// Apply or Destroy.
type Scheduler struct {
	graph    *Graph
	poller   *readiness.Poller
	observer Observer
	metrics  *Metrics
	report   *reportBuilder
	now      func() time.Time

	states    map[string]StepState
	outputs   map[string]StepResult
	succeeded []string
	resumed   map[string]Record
}

func newScheduler(g *Graph, report *reportBuilder, poller *readiness.Poller, observer Observer, metrics *Metrics, now func() time.Time) *Scheduler {
	if poller == nil {
		poller = readiness.NewPoller()
	}
	if observer == nil {
		observer = NopObserver()
	}
	if now == nil {
		now = time.Now
	}
	s := &Scheduler{
		graph:    g,
		poller:   poller,
		observer: observer,
		metrics:  metrics,
		report:   report,
		now:      now,
		states:   make(map[string]StepState, g.Len()),
		outputs:  make(map[string]StepResult, g.Len()),
		resumed:  make(map[string]Record),
	}
	for _, id := range g.IDs() {
		s.states[id] = StatePending
	}
	return s
}

// State returns the current state of a step.
func (s *Scheduler) State(id string) StepState {
	return s.states[id]
}

// Succeeded returns the IDs of steps that succeeded in this run, in the
// order they succeeded.
func (s *Scheduler) Succeeded() []string {
	return slices.Clone(s.succeeded)
}

// Outputs returns a copy of the outputs recorded so far.
func (s *Scheduler) Outputs() map[string]StepResult {
	out := make(map[string]StepResult, len(s.outputs))
	for id, r := range s.outputs {
		out[id] = r.clone()
	}
	return out
}

// resume marks steps that a prior run left Succeeded. They are skipped by
// the next apply and their outputs are available to dependents.
func (s *Scheduler) resume(prior *RunReport) {
	if prior == nil {
		return
	}
	for _, rec := range prior.Records {
		if rec.State != StateSucceeded || !s.graph.has(rec.StepID) {
			continue
		}
		s.states[rec.StepID] = StateSucceeded
		s.outputs[rec.StepID] = rec.Result()
		s.resumed[rec.StepID] = rec
	}
}

// seed makes outputs known without changing step states, so delete actions
// can read the values their create actions produced.
func (s *Scheduler) seed(outputs map[string]StepResult) {
	for id, r := range outputs {
		if s.graph.has(id) {
			s.outputs[id] = r.clone()
		}
	}
}

// Run executes order in the given mode. In apply mode it stops at the first
// failing step and returns its error. In destroy mode it walks order in
// reverse, attempts every delete, and returns the joined delete errors.
func (s *Scheduler) Run(ctx context.Context, order []string, mode Mode) error {
	for _, id := range order {
		if !s.graph.has(id) {
			return fmt.Errorf("step %q is not in the graph", id)
		}
	}
	if mode == ModeDestroy {
		return s.destroy(ctx, order)
	}
	return s.apply(ctx, order)
}

func (s *Scheduler) apply(ctx context.Context, order []string) error {
	for _, id := range order {
		step, _ := s.graph.Step(id)

		if s.states[id] == StateSucceeded {
			if rec, ok := s.resumed[id]; ok {
				rec.Resumed = true
				s.report.put(rec)
				s.succeeded = append(s.succeeded, id)
				emit(s.observer, EventStepSkipped, id, "already applied by a previous run", map[string]string{"reason": "resumed"})
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return s.fail(&step, s.now(), 0, &StepCreateError{StepID: id, Cause: err})
		}
		for _, dep := range step.DependsOn {
			if s.states[dep] != StateSucceeded {
				return s.fail(&step, s.now(), 0, &StepCreateError{
					StepID: id,
					Cause:  fmt.Errorf("dependency %q is %s", dep, s.states[dep]),
				})
			}
		}

		if err := s.create(ctx, &step); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) create(ctx context.Context, step *Step) error {
	start := s.now()
	s.transition(step.ID, StateRunning)
	emit(s.observer, EventStepStarted, step.ID, step.describe(), nil)

	sc := newStepContext(step, ModeApply, s.outputs)
	result, err := step.Create(ctx, sc)
	if err != nil {
		return s.fail(step, start, 0, &StepCreateError{StepID: step.ID, Cause: err})
	}

	attempts := 0
	if step.Readiness != nil && step.Readiness.Probe != nil {
		s.transition(step.ID, StateAwaitingReady)
		emit(s.observer, EventStepAwaitingReady, step.ID, "waiting for readiness",
			map[string]string{"timeout": step.Readiness.Policy.Timeout.String()})

		probe := func(ctx context.Context) (bool, error) {
			return step.Readiness.Probe(ctx, sc)
		}
		res, err := s.poller.AwaitReady(ctx, probe, step.Readiness.Policy)
		attempts = res.Attempts
		s.metrics.recordReadiness(step.ID, attempts)
		if err != nil {
			return s.fail(step, start, attempts, readinessError(step.ID, err))
		}
	}

	d := s.now().Sub(start)
	s.outputs[step.ID] = result.clone()
	s.transition(step.ID, StateSucceeded)
	s.succeeded = append(s.succeeded, step.ID)
	s.report.put(Record{
		StepID:    step.ID,
		State:     StateSucceeded,
		Timestamp: s.now(),
		Duration:  d,
		Attempts:  attempts,
		Output:    result.Output,
		Values:    result.clone().Values,
	})
	s.metrics.recordStep(step.ID, ModeApply, "success", d)
	LogStepSucceeded(s.observer, step.ID, d)
	return nil
}

func readinessError(id string, err error) error {
	var (
		timeout *readiness.TimeoutError
		failed  *readiness.FailedError
	)
	switch {
	case errors.As(err, &timeout):
		return &ReadinessTimeout{StepID: id, Attempts: timeout.Attempts, LastErr: timeout.LastErr}
	case errors.As(err, &failed):
		return &ReadinessFailed{StepID: id, Cause: failed.Cause}
	default:
		return &ReadinessFailed{StepID: id, Cause: err}
	}
}

func (s *Scheduler) fail(step *Step, start time.Time, attempts int, err error) error {
	d := s.now().Sub(start)
	s.transition(step.ID, StateFailed)
	s.report.put(Record{
		StepID:    step.ID,
		State:     StateFailed,
		Timestamp: s.now(),
		Duration:  d,
		Attempts:  attempts,
		Error:     err.Error(),
	})
	s.metrics.recordStep(step.ID, ModeApply, "failure", d)
	LogStepFailed(s.observer, step.ID, err)
	return err
}

func (s *Scheduler) destroy(ctx context.Context, order []string) error {
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if err := s.remove(ctx, order[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) remove(ctx context.Context, id string) error {
	step, _ := s.graph.Step(id)
	if step.Delete == nil {
		emit(s.observer, EventStepSkipped, id, "no delete action", map[string]string{"reason": "no-delete"})
		return nil
	}

	start := s.now()
	emit(s.observer, EventStepDeleting, id, "deleting", nil)
	err := step.Delete(ctx, newStepContext(&step, ModeDestroy, s.outputs))
	d := s.now().Sub(start)

	rec, existed := s.report.get(id)
	if !existed {
		rec = Record{StepID: id, State: s.states[id], Duration: d}
	}
	rec.Timestamp = s.now()

	if err != nil {
		derr := &StepDeleteError{StepID: id, Cause: err}
		rec.RollbackError = err.Error()
		// A step that was applied stays Succeeded: its resource still exists.
		if rec.State != StateSucceeded {
			rec.State = StateFailed
			rec.Error = err.Error()
			s.states[id] = StateFailed
		}
		s.report.put(rec)
		s.report.teardownError(derr)
		s.metrics.recordStep(id, ModeDestroy, "failure", d)
		emit(s.observer, EventStepDeleteFailed, id, fmt.Sprintf("delete failed: %v", err), map[string]string{"error": err.Error()})
		return derr
	}

	rec.State = StateRolledBack
	s.states[id] = StateRolledBack
	s.report.put(rec)
	s.metrics.recordStep(id, ModeDestroy, "success", d)
	emit(s.observer, EventStepDeleted, id, "deleted", map[string]string{"duration": d.Round(time.Millisecond).String()})
	return nil
}

func (s *Scheduler) transition(id string, state StepState) {
	s.states[id] = state
}

func (st *Step) describe() string {
	if st.Description != "" {
		return st.Description
	}
	return "starting"
}

// stateCounts summarizes states for run-level events.
func stateCounts(states map[string]StepState) map[string]string {
	counts := make(map[StepState]int)
	for _, st := range states {
		counts[st]++
	}
	out := make(map[string]string, len(counts))
	for st, n := range counts {
		out[string(st)] = strconv.Itoa(n)
	}
	return out
}

func itoa(n int) string { return strconv.Itoa(n) }
