package store

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/rabbitkind/internal/provisioning"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")

	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue).MarginTop(1)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	failStyle    = lipgloss.NewStyle().Foreground(colorRed)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

const masked = "********"

// ConsoleStore prints a report summary. Secret values are masked unless
// ShowSecrets is set.
type ConsoleStore struct {
	Out         io.Writer
	ShowSecrets bool
}

// NewConsoleStore creates a ConsoleStore writing to out.
func NewConsoleStore(out io.Writer, showSecrets bool) *ConsoleStore {
	return &ConsoleStore{Out: out, ShowSecrets: showSecrets}
}

// Export implements Exporter.
func (s *ConsoleStore) Export(_ context.Context, report *provisioning.RunReport) error {
	if report == nil {
		return nil
	}
	_, err := fmt.Fprintln(s.Out, Render(report, s.ShowSecrets))
	return err
}

// Render formats a report for a terminal.
func Render(report *provisioning.RunReport, showSecrets bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render(fmt.Sprintf("rabbitkind %s", report.Mode)), dimStyle.Render(report.Cluster))
	fmt.Fprintf(&b, "  Run:      %s\n", report.RunID)
	fmt.Fprintf(&b, "  Status:   %s\n", statusStyle(report.Status).Render(string(report.Status)))
	fmt.Fprintf(&b, "  Duration: %s\n", report.Duration().Round(time.Millisecond))
	if report.FailedStep != "" {
		fmt.Fprintf(&b, "  Failed:   %s: %s\n", report.FailedStep, failStyle.Render(report.Cause))
	}

	b.WriteString(sectionStyle.Render("Steps"))
	b.WriteString("\n")
	for _, rec := range report.Records {
		mark, style := stateMark(rec.State)
		line := fmt.Sprintf("  %s %-22s %s", style.Render(mark), rec.StepID, dimStyle.Render(string(rec.State)))
		if rec.Duration > 0 {
			line += dimStyle.Render(fmt.Sprintf(" (%s)", rec.Duration.Round(time.Millisecond)))
		}
		if rec.Resumed {
			line += dimStyle.Render(" resumed")
		}
		b.WriteString(line + "\n")
		if rec.Error != "" {
			fmt.Fprintf(&b, "      %s\n", failStyle.Render(rec.Error))
		}
		if rec.RollbackError != "" {
			fmt.Fprintf(&b, "      %s\n", warnStyle.Render("rollback: "+rec.RollbackError))
		}
	}

	if len(report.TeardownErrors) > 0 {
		b.WriteString(sectionStyle.Render("Teardown errors"))
		b.WriteString("\n")
		for _, e := range report.TeardownErrors {
			fmt.Fprintf(&b, "  %s\n", warnStyle.Render(e))
		}
	}

	if outputs := renderOutputs(report, showSecrets); outputs != "" {
		b.WriteString(sectionStyle.Render("Outputs"))
		b.WriteString("\n")
		b.WriteString(outputs)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderOutputs(report *provisioning.RunReport, showSecrets bool) string {
	var b strings.Builder
	for _, rec := range report.Records {
		if rec.State != provisioning.StateSucceeded || len(rec.Values) == 0 {
			continue
		}
		keys := make([]string, 0, len(rec.Values))
		for k := range rec.Values {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		fmt.Fprintf(&b, "  %s\n", rec.StepID)
		for _, k := range keys {
			fmt.Fprintf(&b, "    %-16s %s\n", k, displayValue(k, rec.Values[k], showSecrets))
		}
	}
	return b.String()
}

func displayValue(key, value string, showSecrets bool) string {
	if IsSecretKey(key) && !showSecrets {
		return masked
	}
	if strings.Contains(value, "\n") {
		return dimStyle.Render(fmt.Sprintf("<%d lines>", strings.Count(value, "\n")+1))
	}
	return value
}

// IsSecretKey reports whether a step value holds a credential.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "kubeconfig") || strings.HasPrefix(k, "user.")
}

func statusStyle(s provisioning.Status) lipgloss.Style {
	switch s {
	case provisioning.StatusCompleted, provisioning.StatusDestroyed:
		return okStyle
	case provisioning.StatusRolledBack:
		return warnStyle
	}
	return failStyle
}

func stateMark(s provisioning.StepState) (string, lipgloss.Style) {
	switch s {
	case provisioning.StateSucceeded:
		return "[OK]", okStyle
	case provisioning.StateFailed:
		return "[!!]", failStyle
	case provisioning.StateRolledBack:
		return "[<-]", warnStyle
	case provisioning.StateRunning, provisioning.StateAwaitingReady:
		return "[..]", dimStyle
	}
	return "[  ]", dimStyle
}
