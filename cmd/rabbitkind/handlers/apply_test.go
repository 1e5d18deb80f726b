package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/rabbitkind/internal/lock"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/stack"
	"github.com/imamik/rabbitkind/internal/store"
	"github.com/imamik/rabbitkind/internal/ui/tui"
	"github.com/imamik/rabbitkind/internal/util/prerequisites"
	"github.com/imamik/rabbitkind/internal/util/ptr"
)

func TestApply_Success(t *testing.T) {
	env := newTestEnv(t)
	seen := env.fakeRun(completedReport(env.cfg.ClusterName), nil)
	metrics := filepath.Join(t.TempDir(), "rabbitkind.prom")

	err := Apply(context.Background(), ApplyOptions{TUI: ptr.To(true), MetricsFile: metrics})
	require.NoError(t, err)

	assert.Equal(t, env.cfg.ClusterName, seen.ClusterName)
	assert.Equal(t, provisioning.ModeApply, seen.Mode)
	require.NotEmpty(t, seen.Order)
	assert.Equal(t, stack.KindCluster, seen.Order[0])

	saved, err := store.LoadReport(env.cfg.Output.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, "run-1", saved.RunID)

	_, err = os.Stat(metrics)
	require.NoError(t, err, "metrics file should be written")

	_, err = os.Stat(lock.Path(stateDir(env.cfg), env.cfg.ClusterName))
	assert.True(t, os.IsNotExist(err), "lock should be released")
}

func TestApply_FailureMentionsReport(t *testing.T) {
	env := newTestEnv(t)
	report := completedReport(env.cfg.ClusterName)
	report.Status = provisioning.StatusRolledBack
	report.FailedStep = stack.OpenLDAP
	runErr := &provisioning.OrchestrationError{Step: stack.OpenLDAP, Cause: errors.New("image pull backoff")}
	env.fakeRun(report, runErr)

	err := Apply(context.Background(), ApplyOptions{TUI: ptr.To(true)})
	require.Error(t, err)

	var orchErr *provisioning.OrchestrationError
	require.ErrorAs(t, err, &orchErr)
	assert.Equal(t, stack.OpenLDAP, orchErr.Step)
	assert.Contains(t, err.Error(), env.cfg.Output.ReportPath)

	saved, err := store.LoadReport(env.cfg.Output.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, provisioning.StatusRolledBack, saved.Status)
}

func TestApply_PrerequisitesFail(t *testing.T) {
	newTestEnv(t)
	checkDefaultPrereqs = func(context.Context) *prerequisites.CheckResults {
		return &prerequisites.CheckResults{Missing: []prerequisites.Tool{{Name: "docker", Required: true}}}
	}
	runTUI = func(context.Context, tui.Options, tui.RunFunc) (*provisioning.RunReport, error) {
		t.Fatal("nothing should run when prerequisites are missing")
		return nil, nil
	}

	err := Apply(context.Background(), ApplyOptions{TUI: ptr.To(true)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docker")
}

func TestApply_SkipPrerequisites(t *testing.T) {
	env := newTestEnv(t)
	checkDefaultPrereqs = func(context.Context) *prerequisites.CheckResults {
		t.Fatal("prerequisites should be skipped")
		return nil
	}
	env.fakeRun(completedReport(env.cfg.ClusterName), nil)

	require.NoError(t, Apply(context.Background(), ApplyOptions{TUI: ptr.To(true), SkipPrerequisites: true}))
}

func TestApply_Locked(t *testing.T) {
	env := newTestEnv(t)
	held, err := lock.Acquire(stateDir(env.cfg), env.cfg.ClusterName, "apply")
	require.NoError(t, err)
	t.Cleanup(func() { _ = held.Release() })

	err = Apply(context.Background(), ApplyOptions{TUI: ptr.To(true)})
	require.Error(t, err)
	assert.ErrorIs(t, err, lock.ErrLocked)
}

func TestApply_ResumeFromMissingReport(t *testing.T) {
	env := newTestEnv(t)
	env.fakeRun(completedReport(env.cfg.ClusterName), nil)

	require.NoError(t, Apply(context.Background(), ApplyOptions{TUI: ptr.To(true), Resume: true}))
}

func TestApply_ResumeRejectsForeignReport(t *testing.T) {
	env := newTestEnv(t)
	env.writeReport(t, completedReport("other"))

	err := Apply(context.Background(), ApplyOptions{TUI: ptr.To(true), Resume: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resume")
}

func TestUseTUI(t *testing.T) {
	saveAndRestoreFactories(t)

	isInteractive = func() bool { return true }
	assert.True(t, useTUI(nil))
	assert.False(t, useTUI(ptr.To(false)))

	isInteractive = func() bool { return false }
	assert.False(t, useTUI(nil))
	assert.True(t, useTUI(ptr.To(true)))
}
