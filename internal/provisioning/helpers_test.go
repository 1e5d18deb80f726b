package provisioning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
	testingclock "k8s.io/utils/clock/testing"
)

// tracer records the order in which step actions are invoked.
type tracer struct {
	mu      sync.Mutex
	creates []string
	deletes []string
	probes  map[string]int
}

func newTracer() *tracer {
	return &tracer{probes: make(map[string]int)}
}

func (tr *tracer) createCalls() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.creates...)
}

func (tr *tracer) deleteCalls() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.deletes...)
}

func (tr *tracer) count(calls []string, id string) int {
	n := 0
	for _, c := range calls {
		if c == id {
			n++
		}
	}
	return n
}

type stepOpt func(*Step, *tracer)

// failCreate makes the step's create action fail with err.
func failCreate(err error) stepOpt {
	return func(s *Step, tr *tracer) {
		id := s.ID
		s.Create = func(context.Context, *StepContext) (StepResult, error) {
			tr.mu.Lock()
			tr.creates = append(tr.creates, id)
			tr.mu.Unlock()
			return StepResult{}, err
		}
	}
}

// failDelete makes the step's delete action fail with err.
func failDelete(err error) stepOpt {
	return func(s *Step, tr *tracer) {
		id := s.ID
		s.Delete = func(context.Context, *StepContext) error {
			tr.mu.Lock()
			tr.deletes = append(tr.deletes, id)
			tr.mu.Unlock()
			return err
		}
	}
}

// noDelete removes the step's delete action.
func noDelete() stepOpt {
	return func(s *Step, _ *tracer) { s.Delete = nil }
}

// readyAfter adds a probe that reports ready on the given attempt.
func readyAfter(attempt int, policy readiness.Policy) stepOpt {
	return func(s *Step, tr *tracer) {
		id := s.ID
		s.Readiness = &Readiness{
			Policy: policy,
			Probe: func(context.Context, *StepContext) (bool, error) {
				tr.mu.Lock()
				defer tr.mu.Unlock()
				tr.probes[id]++
				return tr.probes[id] >= attempt, nil
			},
		}
	}
}

// withCreate replaces the step's create action; the call is still traced.
func withCreate(fn Action) stepOpt {
	return func(s *Step, tr *tracer) {
		id := s.ID
		s.Create = func(ctx context.Context, sc *StepContext) (StepResult, error) {
			tr.mu.Lock()
			tr.creates = append(tr.creates, id)
			tr.mu.Unlock()
			return fn(ctx, sc)
		}
	}
}

// step builds a traced step whose create returns "<id>-out".
func (tr *tracer) step(id string, deps []string, opts ...stepOpt) Step {
	s := Step{
		ID:        id,
		DependsOn: deps,
		Create: func(context.Context, *StepContext) (StepResult, error) {
			tr.mu.Lock()
			tr.creates = append(tr.creates, id)
			tr.mu.Unlock()
			return StepResult{Output: id + "-out"}, nil
		},
		Delete: func(context.Context, *StepContext) error {
			tr.mu.Lock()
			tr.deletes = append(tr.deletes, id)
			tr.mu.Unlock()
			return nil
		},
	}
	for _, opt := range opts {
		opt(&s, tr)
	}
	return s
}

func deps(ids ...string) []string { return ids }

// diamond returns A, B(A), C(A), D(B, C).
func diamond(tr *tracer, opts map[string][]stepOpt) []Step {
	return []Step{
		tr.step("A", nil, opts["A"]...),
		tr.step("B", deps("A"), opts["B"]...),
		tr.step("C", deps("A"), opts["C"]...),
		tr.step("D", deps("B", "C"), opts["D"]...),
	}
}

func mustGraph(t *testing.T, steps []Step) *Graph {
	t.Helper()
	g, err := NewGraphFromSteps(steps)
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	return g
}

// fixedNow returns a clock function that advances one second per call.
func fixedNow() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// fakePoller returns a poller on a fake clock that is stepped whenever the
// poller is waiting.
func fakePoller(t *testing.T) *readiness.Poller {
	t.Helper()
	fc := testingclock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			if fc.HasWaiters() {
				fc.Step(time.Second)
			}
			time.Sleep(time.Millisecond)
		}
	}()
	t.Cleanup(func() { close(done) })
	return readiness.NewPoller(readiness.WithClock(fc))
}

func newTestOrchestrator(t *testing.T, steps []Step, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{WithPoller(fakePoller(t)), WithClock(fixedNow())}
	o, err := New(mustGraph(t, steps), append(base, opts...)...)
	if err != nil {
		t.Fatalf("building orchestrator: %v", err)
	}
	return o
}

var errBoom = errors.New("boom")
