// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/rabbitkind/internal/config"
	"github.com/imamik/rabbitkind/internal/lock"
	"github.com/imamik/rabbitkind/internal/logging"
	"github.com/imamik/rabbitkind/internal/platform/s3"
	"github.com/imamik/rabbitkind/internal/platform/shell"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/stack"
	"github.com/imamik/rabbitkind/internal/store"
	"github.com/imamik/rabbitkind/internal/ui/tui"
	"github.com/imamik/rabbitkind/internal/util/prerequisites"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads config from file (for testing injection).
	loadConfigFile = config.LoadFile

	// findConfigFile looks for a default config file in the working directory.
	findConfigFile = defaultConfigFile

	// checkDefaultPrereqs runs prerequisite checks.
	checkDefaultPrereqs = prerequisites.CheckDefault

	// newExecutor creates the command executor for kind and kubectl.
	newExecutor = func(log logr.Logger) shell.Executor {
		return shell.NewOSExecutor(shell.WithLogger(log), shell.WithRetries(2, 2*time.Second))
	}

	// newClientFactory creates Kubernetes and Helm clients from kubeconfigs.
	newClientFactory = func(log logr.Logger) stack.ClientFactory {
		return stack.NewKubeClients(log)
	}

	// newObjectClient creates the S3 client for report upload.
	newObjectClient = func(ctx context.Context, opts s3.Options) (store.ObjectClient, error) {
		return s3.NewClient(ctx, opts)
	}

	// acquireLock takes the per-cluster run lock.
	acquireLock = lock.Acquire

	// runTUI shows run progress in the terminal.
	runTUI = tui.Run

	// isInteractive reports whether stdout is a terminal.
	isInteractive = isInteractiveTTY

	// stdout receives command output (for testing injection).
	stdout io.Writer = os.Stdout
)

func isInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// defaultConfigNames are tried in order when no config path is given.
var defaultConfigNames = []string{"rabbitkind.yaml", "rabbitkind.yml", "rabbitkind.toml"}

func defaultConfigFile() string {
	for _, name := range defaultConfigNames {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name
		}
	}
	return ""
}

// loadConfig loads, defaults and validates the configuration. Without a
// path it uses rabbitkind.yaml (or .yml/.toml) from the working directory,
// falling back to the built-in defaults.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = findConfigFile()
	}
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// checkPrerequisites fails when a required client tool is missing.
func checkPrerequisites(ctx context.Context) error {
	results := checkDefaultPrereqs(ctx)
	if err := results.Error(); err != nil {
		return fmt.Errorf("prerequisites check failed: %w\nRun 'rabbitkind doctor' for details", err)
	}
	return nil
}

// stateDir is where the report and the lock live.
func stateDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Output.ReportPath)
}

// lockCluster takes the run lock for cfg's cluster.
func lockCluster(cfg *config.Config, command string) (*lock.Lock, error) {
	l, err := acquireLock(stateDir(cfg), cfg.ClusterName, command)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cluster %s: %w", cfg.ClusterName, err)
	}
	return l, nil
}

// loadPriorReport reads the last report for cfg's cluster. A missing report
// yields nil without error.
func loadPriorReport(cfg *config.Config) (*provisioning.RunReport, error) {
	report, err := store.LoadReport(cfg.Output.ReportPath)
	if errors.Is(err, store.ErrNoReport) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if report.Cluster != "" && report.Cluster != cfg.ClusterName {
		return nil, fmt.Errorf("report %s belongs to cluster %q, not %q", cfg.Output.ReportPath, report.Cluster, cfg.ClusterName)
	}
	return report, nil
}

// runOptions select how a run is presented and recorded.
type runOptions struct {
	mode        provisioning.Mode
	prior       *provisioning.RunReport
	useTUI      bool
	metricsFile string
	showSecrets bool
}

// execute builds the stack for cfg, runs it, exports the report and writes
// metrics. The run error and export errors are joined.
func execute(ctx context.Context, cfg *config.Config, opts runOptions) (*provisioning.RunReport, error) {
	log := logging.FromContext(ctx)
	stepLog := log
	if opts.useTUI {
		stepLog = logr.Discard()
	}

	st, err := stack.New(cfg, stack.Dependencies{
		Exec:    newExecutor(stepLog),
		Clients: newClientFactory(stepLog),
		Log:     stepLog,
	})
	if err != nil {
		return nil, err
	}
	graph, err := st.Graph()
	if err != nil {
		return nil, fmt.Errorf("invalid step graph: %w", err)
	}

	registry := prometheus.NewRegistry()
	orchOpts := []provisioning.Option{
		provisioning.WithCluster(cfg.ClusterName),
		provisioning.WithMetrics(provisioning.NewMetrics(registry)),
		provisioning.WithRollbackTimeout(cfg.RollbackTimeout()),
	}
	if !cfg.RollbackEnabled() {
		orchOpts = append(orchOpts, provisioning.WithoutRollback())
	}
	if opts.prior != nil {
		orchOpts = append(orchOpts, provisioning.WithPriorReport(opts.prior))
	}

	run := func(ctx context.Context, observer provisioning.Observer) (*provisioning.RunReport, error) {
		orch, err := provisioning.New(graph, append(orchOpts, provisioning.WithObserver(observer))...)
		if err != nil {
			return nil, err
		}
		if opts.mode == provisioning.ModeDestroy {
			return orch.Destroy(ctx)
		}
		return orch.Apply(ctx)
	}

	var report *provisioning.RunReport
	var runErr error
	if opts.useTUI {
		order, err := displayOrder(graph, opts)
		if err != nil {
			return nil, err
		}
		report, runErr = runTUI(ctx, tui.Options{
			ClusterName: cfg.ClusterName,
			Mode:        opts.mode,
			Order:       order,
			AltScreen:   true,
		}, run)
	} else {
		report, runErr = run(ctx, provisioning.NewLogObserver(log))
	}

	if report == nil {
		return nil, runErr
	}

	errs := []error{runErr}
	if err := exportReport(ctx, cfg, report, opts.showSecrets); err != nil {
		errs = append(errs, err)
	}
	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, registry); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	return report, errors.Join(errs...)
}

// displayOrder is the step order the progress view starts with.
func displayOrder(graph *provisioning.Graph, opts runOptions) ([]string, error) {
	if opts.mode == provisioning.ModeDestroy && opts.prior != nil && len(opts.prior.Order) > 0 {
		return reversed(opts.prior.Order), nil
	}
	order, err := graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	if opts.mode == provisioning.ModeDestroy {
		return reversed(order), nil
	}
	return order, nil
}

func reversed(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

// exportReport writes the report locally, to S3 when configured, and prints
// a summary.
func exportReport(ctx context.Context, cfg *config.Config, report *provisioning.RunReport, showSecrets bool) error {
	exporters := store.Multi{store.NewFileStore(cfg.Output.ReportPath)}

	if cfg.Output.S3.Enabled() {
		s3cfg := cfg.Output.S3
		client, err := newObjectClient(ctx, s3.Options{
			Endpoint:  s3cfg.Endpoint,
			Region:    s3cfg.Region,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		exporters = append(exporters, store.NewS3Store(client, s3cfg.Bucket, s3cfg.Prefix))
	}

	exporters = append(exporters, store.NewConsoleStore(stdout, showSecrets))
	return exporters.Export(ctx, report)
}
