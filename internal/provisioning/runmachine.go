package provisioning

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// RunPhase is the orchestrator's position in its run lifecycle.
type RunPhase string

const (
	// PhaseNotStarted means no run has happened yet.
	PhaseNotStarted RunPhase = phaseNotStarted
	// PhaseApplying means Apply is executing steps.
	PhaseApplying RunPhase = phaseApplying
	// PhaseApplied means the last Apply completed.
	PhaseApplied RunPhase = phaseApplied
	// PhaseFailing means a step failed and the orchestrator is deciding how to unwind.
	PhaseFailing RunPhase = phaseFailing
	// PhaseRollingBack means succeeded steps are being deleted after a failure.
	PhaseRollingBack RunPhase = phaseRollingBack
	// PhaseRolledBack means rollback finished, possibly with delete errors.
	PhaseRolledBack RunPhase = phaseRolledBack
	// PhaseFailed means Apply failed and no rollback was performed.
	PhaseFailed RunPhase = phaseFailed
	// PhaseDestroying means Destroy is executing delete actions.
	PhaseDestroying RunPhase = phaseDestroying
	// PhaseDestroyed means the last Destroy finished.
	PhaseDestroyed RunPhase = phaseDestroyed
)

// Untyped so they can be passed to the statekit builder directly.
const (
	phaseNotStarted  = "NotStarted"
	phaseApplying    = "Applying"
	phaseApplied     = "Applied"
	phaseFailing     = "Failing"
	phaseRollingBack = "RollingBack"
	phaseRolledBack  = "RolledBack"
	phaseFailed      = "Failed"
	phaseDestroying  = "Destroying"
	phaseDestroyed   = "Destroyed"
)

// Run machine events.
const (
	eventApply      = "APPLY"
	eventDestroy    = "DESTROY"
	eventSucceed    = "SUCCEED"
	eventFail       = "FAIL"
	eventRollback   = "ROLLBACK"
	eventRolledBack = "ROLLED_BACK"
	eventAbandon    = "ABANDON"
	eventDestroyed  = "DESTROYED"
)

// runContext is the statekit context; the orchestrator keeps run data itself.
type runContext struct {
	Transitions int
}

// runMachine guards a statekit interpreter so Phase can be read while a run
// is in progress.
type runMachine struct {
	mu     sync.Mutex
	interp *statekit.Interpreter[runContext]
	ctx    *runContext
}

func newRunMachine() (*runMachine, error) {
	rc := &runContext{}
	machine, err := statekit.NewMachine[runContext]("rabbitkind-run").
		WithInitial(phaseNotStarted).
		WithContext(*rc).
		WithAction("countTransition", func(_ *runContext, _ statekit.Event) {
			rc.Transitions++
		}).
		State(phaseNotStarted).
		On(eventApply).Target(phaseApplying).
		On(eventDestroy).Target(phaseDestroying).Done().
		State(phaseApplying).
		OnEntry("countTransition").
		On(eventSucceed).Target(phaseApplied).
		On(eventFail).Target(phaseFailing).Done().
		State(phaseApplied).
		OnEntry("countTransition").
		On(eventApply).Target(phaseApplying).
		On(eventDestroy).Target(phaseDestroying).Done().
		State(phaseFailing).
		OnEntry("countTransition").
		On(eventRollback).Target(phaseRollingBack).
		On(eventAbandon).Target(phaseFailed).Done().
		State(phaseRollingBack).
		OnEntry("countTransition").
		On(eventRolledBack).Target(phaseRolledBack).Done().
		State(phaseRolledBack).
		OnEntry("countTransition").
		On(eventApply).Target(phaseApplying).
		On(eventDestroy).Target(phaseDestroying).Done().
		State(phaseFailed).
		OnEntry("countTransition").
		On(eventApply).Target(phaseApplying).
		On(eventDestroy).Target(phaseDestroying).Done().
		State(phaseDestroying).
		OnEntry("countTransition").
		On(eventDestroyed).Target(phaseDestroyed).Done().
		State(phaseDestroyed).
		OnEntry("countTransition").
		On(eventApply).Target(phaseApplying).
		On(eventDestroy).Target(phaseDestroying).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build run state machine: %w", err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return &runMachine{interp: interp, ctx: rc}, nil
}

func (m *runMachine) send(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interp.Send(statekit.Event{Type: statekit.EventType(event)})
}

func (m *runMachine) phase() RunPhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return RunPhase(m.interp.State().Value)
}

func (m *runMachine) transitions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx.Transitions
}
