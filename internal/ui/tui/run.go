package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/rabbitkind/internal/provisioning"
)

// RunFunc performs an apply or destroy, reporting through observer.
type RunFunc func(ctx context.Context, observer provisioning.Observer) (*provisioning.RunReport, error)

// Options configure Run.
type Options struct {
	ClusterName string
	Mode        provisioning.Mode
	Order       []string
	// AltScreen renders full screen. Tests and non-interactive output
	// leave it off.
	AltScreen bool
	Input     io.Reader
	Output    io.Writer
}

// Run executes fn while showing its progress. Quitting the view cancels
// ctx for fn; Run still waits for fn so rollback can finish.
func Run(ctx context.Context, opts Options, fn RunFunc) (*provisioning.RunReport, error) {
	m := NewModel(opts.ClusterName, opts.Mode, opts.Order)

	var programOpts []tea.ProgramOption
	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}
	p := tea.NewProgram(m, programOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		report *provisioning.RunReport
		err    error
	}
	done := make(chan outcome, 1)

	// Run in background goroutine
	go func() {
		report, err := fn(runCtx, NewObserver(p))
		done <- outcome{report: report, err: err}
		p.Send(DoneMsg{Report: report, Err: err})
	}()

	finalModel, tuiErr := p.Run()
	cancel()
	res := <-done

	if tuiErr != nil && !errors.Is(tuiErr, tea.ErrProgramKilled) {
		if res.err == nil {
			return res.report, fmt.Errorf("TUI error: %w", tuiErr)
		}
	}
	if fm, ok := finalModel.(Model); ok && errors.Is(fm.Err, ErrInterrupted) && res.err == nil {
		return res.report, ErrInterrupted
	}
	return res.report, res.err
}
