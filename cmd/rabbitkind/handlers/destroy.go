package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/imamik/rabbitkind/internal/logging"
	"github.com/imamik/rabbitkind/internal/provisioning"
)

// DestroyOptions are the destroy command's flags.
type DestroyOptions struct {
	ConfigPath  string
	Yes         bool
	TUI         *bool
	MetricsFile string
}

// ErrAborted is returned when the user declines the destroy confirmation.
var ErrAborted = errors.New("destroy aborted")

// confirmDestroy asks before deleting (for testing injection).
var confirmDestroy = func(ctx context.Context, cluster string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Destroy cluster %q?", cluster)).
				Description("The kind cluster and everything provisioned in it will be deleted.").
				Affirmative("Destroy").
				Negative("Cancel").
				Value(&ok),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return ok, nil
}

// Destroy deletes everything apply created, in reverse dependency order.
//
// The order and kubeconfig come from the last report when there is one.
// Individual delete failures are reported but do not stop the run.
func Destroy(ctx context.Context, opts DestroyOptions) error {
	log := logging.FromContext(ctx)

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	if !opts.Yes {
		if !isInteractive() {
			return errors.New("refusing to destroy without confirmation; pass --yes")
		}
		ok, err := confirmDestroy(ctx, cfg.ClusterName)
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return ErrAborted
		}
	}

	l, err := lockCluster(cfg, "destroy")
	if err != nil {
		return err
	}
	defer func() { _ = l.Release() }()

	prior, err := loadPriorReport(cfg)
	if err != nil {
		log.Error(err, "ignoring unreadable report, destroying in dependency order")
		prior = nil
	}

	log.Info("destroying", "cluster", cfg.ClusterName)

	report, err := execute(ctx, cfg, runOptions{
		mode:        provisioning.ModeDestroy,
		prior:       prior,
		useTUI:      useTUI(opts.TUI),
		metricsFile: opts.MetricsFile,
	})
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	if n := len(report.TeardownErrors); n > 0 {
		return fmt.Errorf("destroy finished with %d delete failure(s); see %s", n, cfg.Output.ReportPath)
	}
	log.Info("cluster destroyed", "cluster", cfg.ClusterName)
	return nil
}
