package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/rabbitkind/internal/logging"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/util/ptr"
)

// ApplyOptions are the apply command's flags.
type ApplyOptions struct {
	ConfigPath string
	// Resume skips steps the last report lists as succeeded.
	Resume bool
	// NoRollback leaves succeeded steps in place when a step fails.
	NoRollback bool
	// TUI forces the progress view on or off. Nil picks it when stdout is a terminal.
	TUI               *bool
	MetricsFile       string
	ShowSecrets       bool
	SkipPrerequisites bool
}

// Apply provisions kind, cert-manager, the RabbitMQ operators, OpenLDAP and
// a RabbitMQ cluster authenticating against it.
//
// Steps run in dependency order. When one fails, the steps that succeeded
// before it are deleted in reverse order unless rollback is disabled. The
// run report, including generated credentials, is written to the configured
// report path whatever the outcome.
func Apply(ctx context.Context, opts ApplyOptions) error {
	log := logging.FromContext(ctx)

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.NoRollback {
		cfg.Rollback = ptr.To(false)
	}

	if !opts.SkipPrerequisites {
		if err := checkPrerequisites(ctx); err != nil {
			return err
		}
	}

	l, err := lockCluster(cfg, "apply")
	if err != nil {
		return err
	}
	defer func() { _ = l.Release() }()

	var prior *provisioning.RunReport
	if opts.Resume {
		prior, err = loadPriorReport(cfg)
		if err != nil {
			return fmt.Errorf("failed to load report for resume: %w", err)
		}
		if prior == nil {
			log.Info("no previous report found, starting from scratch", "path", cfg.Output.ReportPath)
		} else {
			log.Info("resuming", "previousRun", prior.RunID, "succeeded", len(prior.Succeeded()))
		}
	}

	log.Info("applying", "cluster", cfg.ClusterName, "namespace", cfg.Namespace)

	report, err := execute(ctx, cfg, runOptions{
		mode:        provisioning.ModeApply,
		prior:       prior,
		useTUI:      useTUI(opts.TUI),
		metricsFile: opts.MetricsFile,
		showSecrets: opts.ShowSecrets,
	})
	if err != nil {
		if report != nil {
			return fmt.Errorf("%w (report written to %s)", err, cfg.Output.ReportPath)
		}
		return err
	}

	log.Info("cluster ready", "cluster", cfg.ClusterName, "run", report.RunID, "duration", report.Duration().String())
	return nil
}

func useTUI(flag *bool) bool {
	if flag != nil {
		return *flag
	}
	return isInteractive()
}
