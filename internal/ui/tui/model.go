package tui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/ui/benchmarks"
)

// ErrInterrupted is returned when the user quits while a run is active.
var ErrInterrupted = errors.New("interrupted")

// StepView is the display state of one step.
type StepView struct {
	ID        string
	State     provisioning.StepState
	StartedAt time.Time
	Took      time.Duration
	Message   string
	Err       string
	Skipped   bool
	// Deleting and Deleted track rollback or destroy of the step.
	Deleting bool
	Deleted  bool
}

// Model is the Bubble Tea model for the run view.
type Model struct {
	ClusterName string
	Mode        provisioning.Mode

	Steps       []StepView
	RollingBack bool
	Status      provisioning.Status

	// ETA
	EstimatedRemaining time.Duration
	PerformanceScale   float64
	StartTime          time.Time

	// Animation
	SpinnerFrame int

	// UI state
	Width  int
	Height int
	Err    error
	Done   bool
	Report *provisioning.RunReport

	now func() time.Time
}

// NewModel creates a model for a run over steps in execution order.
func NewModel(clusterName string, mode provisioning.Mode, order []string) Model {
	steps := make([]StepView, len(order))
	for i, id := range order {
		steps[i] = StepView{ID: id, State: provisioning.StatePending}
	}
	return Model{
		ClusterName:      clusterName,
		Mode:             mode,
		Steps:            steps,
		StartTime:        time.Now(),
		PerformanceScale: 1.0,
		now:              time.Now,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.Done {
				m.Err = ErrInterrupted
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case EventMsg:
		m.applyEvent(msg.Event)

	case TickMsg:
		m.SpinnerFrame++
		m.updateETA()
		return m, tickCmd()

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		m.Report = msg.Report
		if msg.Report != nil {
			m.Status = msg.Report.Status
		}
		if msg.Err != nil {
			m.Err = msg.Err
		}
		m.EstimatedRemaining = 0
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) step(id string) *StepView {
	for i := range m.Steps {
		if m.Steps[i].ID == id {
			return &m.Steps[i]
		}
	}
	if id == "" {
		return nil
	}
	m.Steps = append(m.Steps, StepView{ID: id, State: provisioning.StatePending})
	return &m.Steps[len(m.Steps)-1]
}

func (m *Model) applyEvent(e provisioning.Event) {
	switch e.Type {
	case provisioning.EventRollbackStarted:
		m.RollingBack = true
		return
	case provisioning.EventRunCompleted:
		m.Status = provisioning.Status(e.Fields["status"])
		return
	case provisioning.EventRunStarted:
		return
	}

	s := m.step(e.Step)
	if s == nil {
		return
	}
	at := e.Timestamp
	if at.IsZero() {
		at = m.clock()
	}

	switch e.Type {
	case provisioning.EventStepStarted:
		s.State = provisioning.StateRunning
		s.StartedAt = at
		s.Message = e.Message
	case provisioning.EventStepAwaitingReady:
		s.State = provisioning.StateAwaitingReady
		s.Message = e.Message
	case provisioning.EventStepSucceeded:
		s.State = provisioning.StateSucceeded
		s.Took = took(s.StartedAt, at, e.Fields["duration"])
		s.Message = ""
	case provisioning.EventStepFailed:
		s.State = provisioning.StateFailed
		s.Took = took(s.StartedAt, at, "")
		s.Err = e.Fields["error"]
		if s.Err == "" {
			s.Err = e.Message
		}
	case provisioning.EventStepSkipped:
		s.Skipped = true
		if e.Fields["reason"] == "resumed" {
			s.State = provisioning.StateSucceeded
		}
		s.Message = e.Message
	case provisioning.EventStepDeleting:
		s.Deleting = true
		s.StartedAt = at
	case provisioning.EventStepDeleted:
		s.Deleting = false
		s.Deleted = true
		s.State = provisioning.StateRolledBack
		s.Took = took(s.StartedAt, at, e.Fields["duration"])
	case provisioning.EventStepDeleteFailed:
		s.Deleting = false
		s.Err = e.Fields["error"]
	}
}

func took(start, end time.Time, reported string) time.Duration {
	if d, err := time.ParseDuration(reported); err == nil {
		return d
	}
	if start.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

// current returns the step being worked on, if any.
func (m *Model) current() *StepView {
	for i := range m.Steps {
		s := &m.Steps[i]
		if s.Deleting || s.State == provisioning.StateRunning || s.State == provisioning.StateAwaitingReady {
			return s
		}
	}
	return nil
}

func (m *Model) updateETA() {
	if m.Done || m.Mode != provisioning.ModeApply || m.RollingBack {
		m.EstimatedRemaining = 0
		return
	}

	order := make([]string, 0, len(m.Steps))
	var done []benchmarks.Completed
	for _, s := range m.Steps {
		order = append(order, s.ID)
		if s.State == provisioning.StateSucceeded {
			done = append(done, benchmarks.Completed{Step: s.ID, Took: s.Took})
		}
	}

	var currentID string
	var elapsed time.Duration
	if cur := m.current(); cur != nil {
		currentID = cur.ID
		elapsed = m.clock().Sub(cur.StartedAt)
	}

	m.PerformanceScale = benchmarks.PerformanceScale(currentID, elapsed, done)
	m.EstimatedRemaining = benchmarks.EstimateRemainingWithScale(order, currentID, elapsed, done, m.PerformanceScale)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}

func (m Model) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}
