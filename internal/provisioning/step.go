package provisioning

import (
	"context"

	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
)

// StepState is the lifecycle state of a single step within one run.
type StepState string

const (
	// StatePending means the step has not been started.
	StatePending StepState = "Pending"
	// StateRunning means the create action is executing.
	StateRunning StepState = "Running"
	// StateAwaitingReady means the create action returned and the readiness probe is being polled.
	StateAwaitingReady StepState = "AwaitingReady"
	// StateSucceeded means the step was created and, if probed, reported ready.
	StateSucceeded StepState = "Succeeded"
	// StateFailed means the create action, readiness wait, or delete action failed.
	StateFailed StepState = "Failed"
	// StateRolledBack means the delete action completed after a successful create.
	StateRolledBack StepState = "RolledBack"
)

// Terminal reports whether the state ends the step's lifecycle for this run.
func (s StepState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateRolledBack:
		return true
	}
	return false
}

// StepResult is what a create action hands to its dependents.
type StepResult struct {
	// Output is the primary captured value, usually command stdout.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	// Values holds named secondary values (for example decoded credentials).
	Values map[string]string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Value returns a named value, or "" when absent.
func (r StepResult) Value(key string) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[key]
}

func (r StepResult) clone() StepResult {
	out := StepResult{Output: r.Output}
	if r.Values != nil {
		out.Values = make(map[string]string, len(r.Values))
		for k, v := range r.Values {
			out.Values[k] = v
		}
	}
	return out
}

// Action creates the resource a step manages.
type Action func(ctx context.Context, sc *StepContext) (StepResult, error)

// DeleteAction removes the resource a step manages.
type DeleteAction func(ctx context.Context, sc *StepContext) error

// ProbeFunc reports whether the resource a step created is ready.
// Returning an error wrapped with retry.Fatal stops polling immediately.
type ProbeFunc func(ctx context.Context, sc *StepContext) (bool, error)

// Readiness pairs a probe with the policy used to poll it.
type Readiness struct {
	Probe  ProbeFunc
	Policy readiness.Policy
}

// Step is one unit of provisioning work.
type Step struct {
	// ID is unique within a graph.
	ID string
	// Description is a short human-readable summary.
	Description string
	// DependsOn lists the IDs of steps that must succeed first.
	DependsOn []string
	Create    Action
	// Readiness is optional. A nil value means the step succeeds as soon as Create returns.
	Readiness *Readiness
	// Delete is optional. A nil value means the step is skipped on rollback and destroy.
	Delete DeleteAction
}

// StepContext is handed to every action of a step. It exposes the outputs of
// the step's declared dependencies and nothing else.
type StepContext struct {
	id      string
	mode    Mode
	deps    map[string]struct{}
	outputs map[string]StepResult
}

func newStepContext(step *Step, mode Mode, outputs map[string]StepResult) *StepContext {
	deps := make(map[string]struct{}, len(step.DependsOn))
	for _, d := range step.DependsOn {
		deps[d] = struct{}{}
	}
	return &StepContext{id: step.ID, mode: mode, deps: deps, outputs: outputs}
}

// NewStepContext builds a context for invoking a step's actions outside a
// scheduler run, for example in tests.
func NewStepContext(step Step, mode Mode, outputs map[string]StepResult) *StepContext {
	if outputs == nil {
		outputs = map[string]StepResult{}
	}
	return newStepContext(&step, mode, outputs)
}

// StepID returns the ID of the step being executed.
func (sc *StepContext) StepID() string { return sc.id }

// Mode reports whether the step is being applied or destroyed.
func (sc *StepContext) Mode() Mode { return sc.mode }

// Output returns the result of a declared dependency. Asking for a step that
// is not a declared dependency fails with *UndeclaredOutputError. Asking for a
// declared dependency whose output is not known (for example during a destroy
// without a prior report) fails with ErrOutputUnavailable.
func (sc *StepContext) Output(id string) (StepResult, error) {
	if _, ok := sc.deps[id]; !ok {
		return StepResult{}, &UndeclaredOutputError{StepID: sc.id, Requested: id}
	}
	r, ok := sc.outputs[id]
	if !ok {
		return StepResult{}, &OutputUnavailableError{StepID: sc.id, Requested: id}
	}
	return r.clone(), nil
}
