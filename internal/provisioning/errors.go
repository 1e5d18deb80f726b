package provisioning

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRunInProgress is returned when Apply or Destroy is called while another
// run on the same orchestrator has not finished.
var ErrRunInProgress = errors.New("a run is already in progress")

// ErrOutputUnavailable matches *OutputUnavailableError.
var ErrOutputUnavailable = errors.New("output not available")

// DuplicateStepError is returned when two steps share an ID.
type DuplicateStepError struct {
	StepID string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("duplicate step %q", e.StepID)
}

// UnknownDependencyError is returned when a step depends on an ID that is not in the graph.
type UnknownDependencyError struct {
	StepID    string
	MissingID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("step %q depends on unknown step %q", e.StepID, e.MissingID)
}

// CycleError is returned when the dependency edges form a cycle. IDs holds
// the cycle path with the first ID repeated at the end.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.IDs, " -> ")
}

// StepCreateError wraps a failure of a step's create action.
type StepCreateError struct {
	StepID string
	Cause  error
}

func (e *StepCreateError) Error() string {
	return fmt.Sprintf("step %q: create failed: %v", e.StepID, e.Cause)
}

func (e *StepCreateError) Unwrap() error { return e.Cause }

// ReadinessTimeout is returned when a step's probe never reported ready
// within its policy timeout.
type ReadinessTimeout struct {
	StepID   string
	Attempts int
	LastErr  error
}

func (e *ReadinessTimeout) Error() string {
	msg := fmt.Sprintf("step %q: not ready after %d attempts", e.StepID, e.Attempts)
	if e.LastErr != nil {
		msg += fmt.Sprintf(": %v", e.LastErr)
	}
	return msg
}

func (e *ReadinessTimeout) Unwrap() error { return e.LastErr }

// ReadinessFailed is returned when a step's probe reported a terminal
// failure, or the readiness wait was aborted.
type ReadinessFailed struct {
	StepID string
	Cause  error
}

func (e *ReadinessFailed) Error() string {
	return fmt.Sprintf("step %q: readiness failed: %v", e.StepID, e.Cause)
}

func (e *ReadinessFailed) Unwrap() error { return e.Cause }

// StepDeleteError wraps a failure of a step's delete action.
type StepDeleteError struct {
	StepID string
	Cause  error
}

func (e *StepDeleteError) Error() string {
	return fmt.Sprintf("step %q: delete failed: %v", e.StepID, e.Cause)
}

func (e *StepDeleteError) Unwrap() error { return e.Cause }

// UndeclaredOutputError is returned when a step asks for the output of a step
// it does not declare as a dependency.
type UndeclaredOutputError struct {
	StepID    string
	Requested string
}

func (e *UndeclaredOutputError) Error() string {
	return fmt.Sprintf("step %q requested output of %q, which is not a declared dependency", e.StepID, e.Requested)
}

// OutputUnavailableError is returned when a declared dependency has no
// recorded output in the current run.
type OutputUnavailableError struct {
	StepID    string
	Requested string
}

func (e *OutputUnavailableError) Error() string {
	return fmt.Sprintf("step %q: output of %q is not available", e.StepID, e.Requested)
}

func (e *OutputUnavailableError) Is(target error) bool { return target == ErrOutputUnavailable }

// OrchestrationError is returned by Apply when a step fails. Cause is the
// original step error; RollbackErrors lists delete failures that happened
// while undoing the steps that had already succeeded.
type OrchestrationError struct {
	Step           string
	Cause          error
	RollbackErrors []error
}

func (e *OrchestrationError) Error() string {
	msg := fmt.Sprintf("apply failed at step %q: %v", e.Step, e.Cause)
	if n := len(e.RollbackErrors); n > 0 {
		parts := make([]string, n)
		for i, err := range e.RollbackErrors {
			parts[i] = err.Error()
		}
		msg += fmt.Sprintf(" (rollback incomplete: %s)", strings.Join(parts, "; "))
	}
	return msg
}

func (e *OrchestrationError) Unwrap() error { return e.Cause }

// failedStepID extracts the step ID carried by a step-level error.
func failedStepID(err error) string {
	var (
		create  *StepCreateError
		timeout *ReadinessTimeout
		failed  *ReadinessFailed
	)
	switch {
	case errors.As(err, &create):
		return create.StepID
	case errors.As(err, &timeout):
		return timeout.StepID
	case errors.As(err, &failed):
		return failed.StepID
	}
	return ""
}
