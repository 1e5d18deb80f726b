package provisioning

import (
	"slices"
	"time"
)

// Mode selects whether a run creates or removes resources.
type Mode string

const (
	// ModeApply runs create actions in dependency order.
	ModeApply Mode = "apply"
	// ModeDestroy runs delete actions in reverse dependency order.
	ModeDestroy Mode = "destroy"
)

// Status is the overall outcome of a run.
type Status string

const (
	// StatusCompleted means every step succeeded.
	StatusCompleted Status = "Completed"
	// StatusFailed means a step failed and nothing was rolled back.
	StatusFailed Status = "Failed"
	// StatusRolledBack means a step failed and the steps before it were reversed.
	StatusRolledBack Status = "RolledBack"
	// StatusDestroyed means a destroy run finished. Individual delete
	// failures are listed in TeardownErrors.
	StatusDestroyed Status = "Destroyed"
)

// Record is the final observation of one step in a run.
type Record struct {
	StepID    string            `json:"stepId"`
	State     StepState         `json:"state"`
	Timestamp time.Time         `json:"timestamp"`
	Duration  time.Duration     `json:"durationNs,omitempty"`
	Attempts  int               `json:"readinessAttempts,omitempty"`
	Output    string            `json:"output,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
	Error     string            `json:"error,omitempty"`
	// RollbackError is set when the step succeeded but its delete failed
	// during rollback or destroy.
	RollbackError string `json:"rollbackError,omitempty"`
	// Resumed marks a step whose success was carried over from a prior report.
	Resumed bool `json:"resumed,omitempty"`
}

// Result returns the step's output as a StepResult.
func (r Record) Result() StepResult {
	return StepResult{Output: r.Output, Values: r.Values}.clone()
}

// RunReport describes one Apply or Destroy run.
type RunReport struct {
	RunID      string    `json:"runId"`
	Cluster    string    `json:"cluster,omitempty"`
	Mode       Mode      `json:"mode"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	// Order is the topological order the run used.
	Order []string `json:"order"`
	// FailedStep and Cause are set when an apply failed.
	FailedStep string `json:"failedStep,omitempty"`
	Cause      string `json:"cause,omitempty"`
	// TeardownErrors lists delete failures from rollback or destroy.
	TeardownErrors []string `json:"teardownErrors,omitempty"`
	Records        []Record `json:"records"`
}

// Record returns the record for a step.
func (r *RunReport) Record(id string) (Record, bool) {
	for _, rec := range r.Records {
		if rec.StepID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// Succeeded returns the IDs of steps whose final state is Succeeded, in record order.
func (r *RunReport) Succeeded() []string {
	var ids []string
	for _, rec := range r.Records {
		if rec.State == StateSucceeded {
			ids = append(ids, rec.StepID)
		}
	}
	return ids
}

// Outputs returns the outputs of every succeeded step, keyed by step ID.
func (r *RunReport) Outputs() map[string]StepResult {
	out := make(map[string]StepResult)
	for _, rec := range r.Records {
		if rec.State == StateSucceeded {
			out[rec.StepID] = rec.Result()
		}
	}
	return out
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// reportBuilder accumulates records during a run. Records keep the position
// of their first write, so the report reads in execution order.
type reportBuilder struct {
	report RunReport
	pos    map[string]int
	now    func() time.Time
}

func newReportBuilder(runID, cluster string, mode Mode, order []string, now func() time.Time) *reportBuilder {
	return &reportBuilder{
		report: RunReport{
			RunID:     runID,
			Cluster:   cluster,
			Mode:      mode,
			StartedAt: now(),
			Order:     slices.Clone(order),
		},
		pos: make(map[string]int),
		now: now,
	}
}

// put inserts or replaces the record for rec.StepID.
func (b *reportBuilder) put(rec Record) {
	if i, ok := b.pos[rec.StepID]; ok {
		b.report.Records[i] = rec
		return
	}
	b.pos[rec.StepID] = len(b.report.Records)
	b.report.Records = append(b.report.Records, rec)
}

func (b *reportBuilder) get(id string) (Record, bool) {
	i, ok := b.pos[id]
	if !ok {
		return Record{}, false
	}
	return b.report.Records[i], true
}

func (b *reportBuilder) failed(step string, cause error) {
	b.report.FailedStep = step
	if cause != nil {
		b.report.Cause = cause.Error()
	}
}

func (b *reportBuilder) teardownError(err error) {
	b.report.TeardownErrors = append(b.report.TeardownErrors, err.Error())
}

// seal finishes the report. In apply mode, steps that never ran are
// appended as Pending so the report covers the whole graph.
func (b *reportBuilder) seal(status Status) *RunReport {
	if b.report.Mode == ModeApply {
		for _, id := range b.report.Order {
			if _, ok := b.pos[id]; !ok {
				b.put(Record{StepID: id, State: StatePending})
			}
		}
	}
	b.report.Status = status
	b.report.FinishedAt = b.now()

	out := b.report
	out.Order = slices.Clone(b.report.Order)
	out.TeardownErrors = slices.Clone(b.report.TeardownErrors)
	out.Records = make([]Record, len(b.report.Records))
	for i, rec := range b.report.Records {
		rec.Values = StepResult{Values: rec.Values}.clone().Values
		out.Records[i] = rec
	}
	return &out
}
