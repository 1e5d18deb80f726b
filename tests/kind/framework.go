//go:build kind

// Package kind provides end-to-end tests against a local kind cluster.
// The suite provisions the full stack with the real orchestrator, checks
// the resources and AMQP logins, and destroys everything afterwards.
package kind

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/rabbitkind/internal/config"
	"github.com/imamik/rabbitkind/internal/platform/shell"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/stack"
	"github.com/imamik/rabbitkind/internal/store"
	"github.com/imamik/rabbitkind/internal/util/prerequisites"
)

const (
	clusterName = "rabbitkind-e2e"
	// amqpHostPort is where the AMQP node port is published on the host.
	amqpHostPort = 30672
)

// Framework manages the provisioned environment for tests.
type Framework struct {
	mu             sync.RWMutex
	cfg            *config.Config
	dir            string
	log            logr.Logger
	kubeconfigPath string
	report         *provisioning.RunReport
}

// NewFramework creates a test framework instance logging to log.
func NewFramework(log logr.Logger) (*Framework, error) {
	dir, err := os.MkdirTemp("", "rabbitkind-e2e-*")
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	cfg.ClusterName = clusterName
	cfg.Kind.AMQPHostPort = amqpHostPort
	cfg.LDAP.Users = []string{"alice", "bob"}
	cfg.Output.ReportPath = filepath.Join(dir, "report.json")
	// KIND_WORKERS adds worker nodes (default: 0 for single-node CI)
	if w := os.Getenv("KIND_WORKERS"); w != "" {
		if n, err := strconv.Atoi(w); err == nil && n >= 0 {
			cfg.Kind.Workers = n
		}
	}
	if _, err := config.Finalize(cfg); err != nil {
		return nil, err
	}

	return &Framework{cfg: cfg, dir: dir, log: log}, nil
}

// CheckPrerequisites fails when docker, kind or kubectl is missing.
func (f *Framework) CheckPrerequisites(ctx context.Context) error {
	return prerequisites.CheckDefault(ctx).Error()
}

// Config returns the configuration the suite provisions.
func (f *Framework) Config() *config.Config {
	return f.cfg
}

// graph builds the step graph over real collaborators.
func (f *Framework) graph() (*provisioning.Graph, error) {
	st, err := stack.New(f.cfg, stack.Dependencies{
		Exec:    shell.NewOSExecutor(shell.WithLogger(f.log), shell.WithRetries(2, 2*time.Second)),
		Clients: stack.NewKubeClients(f.log),
		Log:     f.log,
	})
	if err != nil {
		return nil, err
	}
	return st.Graph()
}

// Apply runs the orchestrator, optionally resuming from the last report,
// and records the report.
func (f *Framework) Apply(ctx context.Context, resume bool) (*provisioning.RunReport, error) {
	graph, err := f.graph()
	if err != nil {
		return nil, err
	}
	opts := []provisioning.Option{
		provisioning.WithCluster(clusterName),
		provisioning.WithObserver(provisioning.NewLogObserver(f.log)),
	}
	if resume {
		prior, err := store.LoadReport(f.cfg.Output.ReportPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, provisioning.WithPriorReport(prior))
	}
	orch, err := provisioning.New(graph, opts...)
	if err != nil {
		return nil, err
	}

	report, runErr := orch.Apply(ctx)
	if report != nil {
		if err := f.record(ctx, report); err != nil {
			return report, err
		}
	}
	return report, runErr
}

// Destroy tears the environment down using the last report.
func (f *Framework) Destroy(ctx context.Context) (*provisioning.RunReport, error) {
	graph, err := f.graph()
	if err != nil {
		return nil, err
	}
	opts := []provisioning.Option{
		provisioning.WithCluster(clusterName),
		provisioning.WithObserver(provisioning.NewLogObserver(f.log)),
	}
	if prior := f.Report(); prior != nil {
		opts = append(opts, provisioning.WithPriorReport(prior))
	}
	orch, err := provisioning.New(graph, opts...)
	if err != nil {
		return nil, err
	}
	return orch.Destroy(ctx)
}

// record saves the report and the kubeconfig it carries.
func (f *Framework) record(ctx context.Context, report *provisioning.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.report = report
	if err := store.NewFileStore(f.cfg.Output.ReportPath).Export(ctx, report); err != nil {
		return err
	}

	kubeconfig := report.Outputs()[stack.KindCluster].Value(stack.ValueKubeconfig)
	if kubeconfig == "" {
		return nil
	}
	path := filepath.Join(f.dir, "kubeconfig")
	if err := os.WriteFile(path, []byte(kubeconfig), 0o600); err != nil {
		return fmt.Errorf("write kubeconfig: %w", err)
	}
	f.kubeconfigPath = path
	return nil
}

// Report returns the last recorded report.
func (f *Framework) Report() *provisioning.RunReport {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.report
}

// Output returns a value a step produced in the last report.
func (f *Framework) Output(step, key string) string {
	report := f.Report()
	if report == nil {
		return ""
	}
	return report.Outputs()[step].Value(key)
}

// KubeconfigPath returns the path to the kubeconfig file.
func (f *Framework) KubeconfigPath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.kubeconfigPath
}

// Cleanup removes the framework's temp dir.
func (f *Framework) Cleanup() {
	_ = os.RemoveAll(f.dir)
}
