package helm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-logr/logr"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/repo"
	"helm.sh/helm/v3/pkg/storage/driver"
)

// ChartRef names a chart in a repository and the release it becomes.
type ChartRef struct {
	ReleaseName string
	RepoURL     string
	Chart       string
	Version     string
	// Timeout bounds install, upgrade and uninstall waits.
	Timeout time.Duration
}

// Releaser manages releases.
type Releaser interface {
	InstallOrUpgrade(ctx context.Context, ref ChartRef, values map[string]any) (*release.Release, error)
	Uninstall(ctx context.Context, releaseName string, timeout time.Duration) error
	ReleaseExists(releaseName string) (bool, error)
}

// ChartLoader fetches and loads a chart.
type ChartLoader func(ref ChartRef) (*chart.Chart, error)

// Client implements Releaser with the Helm action API.
type Client struct {
	namespace    string
	actionConfig *action.Configuration
	loadChart    ChartLoader
	log          logr.Logger
}

// NewClient creates a Helm client from kubeconfig bytes. Releases are
// stored as secrets in namespace.
func NewClient(kubeconfig []byte, namespace string, log logr.Logger) (*Client, error) {
	restGetter, err := newKubeconfigGetter(kubeconfig, namespace)
	if err != nil {
		return nil, err
	}

	actionConfig := new(action.Configuration)
	debug := func(format string, v ...interface{}) {
		log.V(2).Info(fmt.Sprintf(format, v...))
	}
	if err := actionConfig.Init(restGetter, namespace, "secret", debug); err != nil {
		return nil, fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	return NewClientFromConfig(actionConfig, namespace, RepoChartLoader, log), nil
}

// NewClientFromConfig wraps a prepared action configuration. Tests use it
// with an in-memory release store.
func NewClientFromConfig(cfg *action.Configuration, namespace string, load ChartLoader, log logr.Logger) *Client {
	if load == nil {
		load = RepoChartLoader
	}
	return &Client{namespace: namespace, actionConfig: cfg, loadChart: load, log: log}
}

// InstallOrUpgrade installs a chart or upgrades if already installed.
func (c *Client) InstallOrUpgrade(ctx context.Context, ref ChartRef, values map[string]any) (*release.Release, error) {
	exists, err := c.ReleaseExists(ref.ReleaseName)
	if err != nil {
		return nil, err
	}

	ch, err := c.loadChart(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}

	timeout := ref.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}

	if !exists {
		c.log.Info("installing helm release", "release", ref.ReleaseName, "chart", ref.Chart, "version", ref.Version)
		install := action.NewInstall(c.actionConfig)
		install.ReleaseName = ref.ReleaseName
		install.Namespace = c.namespace
		install.CreateNamespace = true
		install.Version = ref.Version
		install.Wait = true
		install.Timeout = timeout
		return install.RunWithContext(ctx, ch, values)
	}

	c.log.Info("upgrading helm release", "release", ref.ReleaseName, "chart", ref.Chart, "version", ref.Version)
	upgrade := action.NewUpgrade(c.actionConfig)
	upgrade.Namespace = c.namespace
	upgrade.Version = ref.Version
	upgrade.Wait = true
	upgrade.Timeout = timeout
	upgrade.ReuseValues = false
	return upgrade.RunWithContext(ctx, ref.ReleaseName, ch, values)
}

// Uninstall removes a release. A release that does not exist is not an error.
func (c *Client) Uninstall(ctx context.Context, releaseName string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	uninstall := action.NewUninstall(c.actionConfig)
	uninstall.Wait = true
	uninstall.Timeout = timeout

	_, err := uninstall.Run(releaseName)
	if errors.Is(err, driver.ErrReleaseNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to uninstall release %s: %w", releaseName, err)
	}
	return nil
}

// ReleaseExists checks if a release exists.
func (c *Client) ReleaseExists(releaseName string) (bool, error) {
	history := action.NewHistory(c.actionConfig)
	history.Max = 1
	_, err := history.Run(releaseName)
	if errors.Is(err, driver.ErrReleaseNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read history of release %s: %w", releaseName, err)
	}
	return true, nil
}

// RepoChartLoader resolves the chart URL from the repository index,
// downloads the archive and loads it from memory.
func RepoChartLoader(ref ChartRef) (*chart.Chart, error) {
	providers := getter.All(cli.New())

	chartURL, err := repo.FindChartInRepoURL(
		ref.RepoURL,
		ref.Chart,
		ref.Version,
		"", "", "",
		providers,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find chart %s in repo %s: %w", ref.Chart, ref.RepoURL, err)
	}

	u, err := url.Parse(chartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid chart url %q: %w", chartURL, err)
	}
	g, err := providers.ByScheme(u.Scheme)
	if err != nil {
		return nil, err
	}
	archive, err := g.Get(chartURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download chart %s: %w", chartURL, err)
	}
	return loader.LoadArchive(archive)
}
