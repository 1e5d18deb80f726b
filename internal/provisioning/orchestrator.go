package provisioning

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
)

// DefaultRollbackTimeout bounds how long rollback may take once the run's own
// context has been cancelled.
const DefaultRollbackTimeout = 10 * time.Minute

// Orchestrator applies and destroys a validated graph of steps.
type Orchestrator struct {
	graph           *Graph
	cluster         string
	poller          *readiness.Poller
	observer        Observer
	metrics         *Metrics
	rollback        bool
	rollbackTimeout time.Duration
	prior           *RunReport
	now             func() time.Time
	newRunID        func() string

	machine *runMachine

	mu      sync.Mutex
	running bool
	applied []string
	outputs map[string]StepResult
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(orch *Orchestrator) { orch.observer = o }
}

// WithMetrics records step and run metrics.
func WithMetrics(m *Metrics) Option {
	return func(orch *Orchestrator) { orch.metrics = m }
}

// WithPoller replaces the readiness poller, typically to inject a fake clock.
func WithPoller(p *readiness.Poller) Option {
	return func(orch *Orchestrator) { orch.poller = p }
}

// WithCluster labels reports with a cluster name.
func WithCluster(name string) Option {
	return func(orch *Orchestrator) { orch.cluster = name }
}

// WithoutRollback leaves succeeded steps in place when Apply fails.
func WithoutRollback() Option {
	return func(orch *Orchestrator) { orch.rollback = false }
}

// WithRollbackTimeout bounds the rollback phase.
func WithRollbackTimeout(d time.Duration) Option {
	return func(orch *Orchestrator) {
		if d > 0 {
			orch.rollbackTimeout = d
		}
	}
}

// WithPriorReport resumes from an earlier run. Apply skips steps the report
// lists as Succeeded and reuses their outputs; Destroy uses the report's
// order and outputs when this orchestrator has not applied anything itself.
func WithPriorReport(r *RunReport) Option {
	return func(orch *Orchestrator) { orch.prior = r }
}

// WithClock replaces the wall clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(orch *Orchestrator) { orch.now = now }
}

// New creates an orchestrator for graph. The graph is validated on every run.
func New(graph *Graph, opts ...Option) (*Orchestrator, error) {
	machine, err := newRunMachine()
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		graph:           graph,
		poller:          readiness.NewPoller(),
		observer:        NopObserver(),
		rollback:        true,
		rollbackTimeout: DefaultRollbackTimeout,
		now:             time.Now,
		newRunID:        uuid.NewString,
		machine:         machine,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Phase returns where the orchestrator is in its run lifecycle.
func (o *Orchestrator) Phase() RunPhase {
	return o.machine.phase()
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
}

// Apply runs every step in topological order. When a step fails, the steps
// that succeeded before it are deleted in reverse order (unless rollback is
// disabled) and an *OrchestrationError carrying the original cause is
// returned together with the report. Cancelling ctx fails the run the same
// way; rollback then runs on a detached context bounded by the rollback
// timeout.
//
// Graph errors are returned before any step runs, with a nil report.
func (o *Orchestrator) Apply(ctx context.Context) (*RunReport, error) {
	if !o.begin() {
		return nil, ErrRunInProgress
	}
	defer o.end()

	order, err := o.graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	runID := o.newRunID()
	observer := o.observer.WithFields(map[string]string{"run": runID, "mode": string(ModeApply)})
	report := newReportBuilder(runID, o.cluster, ModeApply, order, o.now)
	sched := newScheduler(o.graph, report, o.poller, observer, o.metrics, o.now)
	sched.resume(o.prior)

	o.machine.send(eventApply)
	emit(observer, EventRunStarted, "", "apply started", map[string]string{"steps": itoa(len(order))})

	runErr := sched.Run(ctx, order, ModeApply)
	if runErr == nil {
		o.machine.send(eventSucceed)
		o.remember(sched)
		return o.finish(observer, report, sched, StatusCompleted), nil
	}

	o.machine.send(eventFail)
	failed := failedStepID(runErr)
	report.failed(failed, runErr)
	oerr := &OrchestrationError{Step: failed, Cause: runErr}

	succeeded := sched.Succeeded()
	if !o.rollback || len(succeeded) == 0 {
		o.machine.send(eventAbandon)
		o.remember(sched)
		return o.finish(observer, report, sched, StatusFailed), oerr
	}

	o.machine.send(eventRollback)
	emit(observer, EventRollbackStarted, failed, "rolling back succeeded steps",
		map[string]string{"steps": itoa(len(succeeded))})

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.rollbackTimeout)
	defer cancel()
	if err := sched.Run(rctx, succeeded, ModeDestroy); err != nil {
		oerr.RollbackErrors = unjoin(err)
	}

	o.machine.send(eventRolledBack)
	o.forget()
	return o.finish(observer, report, sched, StatusRolledBack), oerr
}

// Destroy runs every delete action in reverse order, continuing past
// failures. The order is the one of the last successful Apply on this
// orchestrator, else the prior report's, else the graph's topological
// order. Delete failures are listed in the report's TeardownErrors; the
// returned error is reserved for graph errors and ErrRunInProgress.
func (o *Orchestrator) Destroy(ctx context.Context) (*RunReport, error) {
	if !o.begin() {
		return nil, ErrRunInProgress
	}
	defer o.end()

	order, err := o.graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	outputs := o.rememberedOutputs()
	switch {
	case len(o.applied) > 0:
		order = o.applied
	case o.prior != nil && len(o.prior.Order) > 0:
		order = o.knownIDs(o.prior.Order)
		if outputs == nil {
			outputs = o.prior.Outputs()
		}
	}

	runID := o.newRunID()
	observer := o.observer.WithFields(map[string]string{"run": runID, "mode": string(ModeDestroy)})
	report := newReportBuilder(runID, o.cluster, ModeDestroy, order, o.now)
	sched := newScheduler(o.graph, report, o.poller, observer, o.metrics, o.now)
	sched.seed(outputs)

	o.machine.send(eventDestroy)
	emit(observer, EventRunStarted, "", "destroy started", map[string]string{"steps": itoa(len(order))})

	_ = sched.Run(ctx, order, ModeDestroy)

	o.machine.send(eventDestroyed)
	o.forget()
	return o.finish(observer, report, sched, StatusDestroyed), nil
}

func (o *Orchestrator) finish(observer Observer, report *reportBuilder, sched *Scheduler, status Status) *RunReport {
	r := report.seal(status)
	o.metrics.recordRun(r.Mode, status, r.Duration())
	fields := stateCounts(sched.states)
	fields["status"] = string(status)
	emit(observer, EventRunCompleted, "", string(r.Mode)+" finished", fields)
	return r
}

// remember keeps the order and outputs of what is currently applied so a
// later Destroy can reverse it.
func (o *Orchestrator) remember(sched *Scheduler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.applied = sched.Succeeded()
	o.outputs = sched.Outputs()
}

func (o *Orchestrator) forget() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.applied = nil
	o.outputs = nil
}

func (o *Orchestrator) rememberedOutputs() map[string]StepResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outputs
}

func (o *Orchestrator) knownIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if o.graph.has(id) {
			out = append(out, id)
		}
	}
	return out
}

// unjoin flattens an errors.Join result.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
