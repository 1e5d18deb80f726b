package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/rabbitkind/internal/provisioning"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	// Header
	renderHeader(&b, m)

	// Progress bar
	renderProgressBar(&b, m)

	// Steps
	renderSteps(&b, m)

	// Errors
	renderErrors(&b, m)

	// Footer
	renderFooter(&b, m)

	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	title := fmt.Sprintf("rabbitkind %s: %s", m.Mode, m.ClusterName)
	b.WriteString(titleStyle.Render(title))

	status := " "
	switch {
	case m.Status != "":
		status += statusStyle(m.Status).Render(string(m.Status))
	case m.Err != nil:
		status += failedStyle.Render(fmt.Sprintf("Error: %v", m.Err))
	case m.RollingBack:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame)+" ") + warningStyle.Render("Rolling back")
	default:
		if cur := m.current(); cur != nil {
			status += activeStyle.Render(currentSpinner(m.SpinnerFrame)+" ") + warningStyle.Render(cur.ID)
		} else {
			status += dimStyle.Render("Starting...")
		}
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	progress := calculateProgress(m)
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = m.Width - 30
		if barWidth < 10 {
			barWidth = 10
		}
	}
	filled := int(float64(barWidth) * progress)
	if filled > barWidth {
		filled = barWidth
	}

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))

	pct := int(progress * 100)
	eta := ""
	if m.EstimatedRemaining > 0 {
		eta = fmt.Sprintf(" ETA %s", formatDuration(m.EstimatedRemaining))
	}
	if m.PerformanceScale != 0 && m.PerformanceScale != 1.0 {
		eta += fmt.Sprintf("  speed x%.2f", m.PerformanceScale)
	}

	fmt.Fprintf(b, "  %s %d%%%s\n", bar, pct, eta)
}

func renderSteps(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Steps"))
	b.WriteString("\n")

	for _, s := range m.Steps {
		icon, style := stepIcon(s, m.SpinnerFrame)

		extra := ""
		switch {
		case s.Deleting:
			extra = sf(warningStyle)("deleting")
		case s.State == provisioning.StateAwaitingReady:
			extra = sf(activeStyle)("waiting for readiness")
		case s.State == provisioning.StateRunning:
			extra = sf(activeStyle)("running")
		case s.Skipped && s.State == provisioning.StateSucceeded:
			extra = sf(dimStyle)("resumed")
		case s.Took > 0:
			extra = sf(dimStyle)(formatDuration(s.Took))
		}

		if s.State == provisioning.StateRunning || s.State == provisioning.StateAwaitingReady || s.Deleting {
			if !s.StartedAt.IsZero() {
				extra += " " + dimStyle.Render(formatDuration(m.clock().Sub(s.StartedAt)))
			}
		}

		fmt.Fprintf(b, "    %s %-22s %s\n", style(icon), style(s.ID), extra)
	}
}

func renderErrors(b *strings.Builder, m Model) {
	var failed []StepView
	for _, s := range m.Steps {
		if s.Err != "" {
			failed = append(failed, s)
		}
	}
	if len(failed) == 0 {
		return
	}

	b.WriteString(sectionStyle.Render("  Errors"))
	b.WriteString("\n")

	// Show last 3 errors
	start := 0
	if len(failed) > 3 {
		start = len(failed) - 3
	}
	for _, s := range failed[start:] {
		fmt.Fprintf(b, "    %s [%s] %s\n",
			failedStyle.Render(crossMark), s.ID, dimStyle.Render(truncate(s.Err, 160)))
	}
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := formatDuration(m.clock().Sub(m.StartTime))
	parts := []string{fmt.Sprintf("elapsed: %s", elapsed)}
	if m.Done && m.Report != nil {
		parts = append(parts, fmt.Sprintf("run %s", m.Report.RunID))
	}
	b.WriteString(footerStyle.Render(fmt.Sprintf("  %s  |  q: quit", strings.Join(parts, "  |  "))))
	b.WriteString("\n")
}

// Helper functions

func stepIcon(s StepView, frame int) (string, styleFunc) {
	switch {
	case s.Deleting:
		return currentSpinner(frame), sf(warningStyle)
	case s.State == provisioning.StateFailed:
		return crossMark, sf(failedStyle)
	case s.State == provisioning.StateRolledBack:
		return backMark, sf(warningStyle)
	case s.Err != "":
		return warnMark, sf(warningStyle)
	case s.State == provisioning.StateSucceeded:
		return checkMark, sf(readyStyle)
	case s.State == provisioning.StateRunning, s.State == provisioning.StateAwaitingReady:
		return currentSpinner(frame), sf(activeStyle)
	}
	return pending, sf(dimStyle)
}

func statusStyle(s provisioning.Status) lipgloss.Style {
	switch s {
	case provisioning.StatusCompleted, provisioning.StatusDestroyed:
		return readyStyle
	case provisioning.StatusRolledBack:
		return warningStyle
	}
	return failedStyle
}

func currentSpinner(frame int) string {
	if len(spinnerFrames) == 0 {
		return spinner
	}
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

func calculateProgress(m Model) float64 {
	if m.Done && m.Status == provisioning.StatusCompleted {
		return 1.0
	}
	if len(m.Steps) == 0 {
		return 0
	}

	done := 0
	for _, s := range m.Steps {
		switch {
		case m.Mode == provisioning.ModeDestroy && (s.Deleted || s.Skipped || s.Err != ""):
			done++
		case m.Mode == provisioning.ModeApply && s.State == provisioning.StateSucceeded:
			done++
		}
	}

	progress := float64(done) / float64(len(m.Steps))
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
