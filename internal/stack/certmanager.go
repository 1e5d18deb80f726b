package stack

import (
	"context"
	"fmt"
	"strconv"

	"github.com/imamik/rabbitkind/internal/platform/helm"
	"github.com/imamik/rabbitkind/internal/platform/kube"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
)

const (
	certManagerRelease = "cert-manager"
	certificatesCRD    = "certificates.cert-manager.io"
	certManagerWebhook = "cert-manager-webhook"
)

func (s *Stack) certManagerChart() helm.ChartRef {
	return helm.ChartRef{
		ReleaseName: certManagerRelease,
		RepoURL:     s.cfg.CertManager.RepoURL,
		Chart:       s.cfg.CertManager.Chart,
		Version:     s.cfg.CertManager.Version,
		Timeout:     s.cfg.Timeouts.Helm.Std(),
	}
}

func (s *Stack) releaser(ctx context.Context, sc *provisioning.StepContext) (helm.Releaser, error) {
	kc, err := s.kubeconfigFor(ctx, sc)
	if err != nil {
		return nil, err
	}
	return s.deps.Clients.Releaser(kc, s.cfg.CertManager.Namespace)
}

func (s *Stack) certManagerStep() provisioning.Step {
	ns := s.cfg.CertManager.Namespace
	return provisioning.Step{
		ID:          CertManager,
		Description: "cert-manager " + s.cfg.CertManager.Version,
		DependsOn:   []string{KindCluster},
		Create: func(ctx context.Context, sc *provisioning.StepContext) (provisioning.StepResult, error) {
			r, err := s.releaser(ctx, sc)
			if err != nil {
				return provisioning.StepResult{}, err
			}
			values := map[string]any{
				"crds": map[string]any{"enabled": true},
			}
			rel, err := r.InstallOrUpgrade(ctx, s.certManagerChart(), values)
			if err != nil {
				return provisioning.StepResult{}, fmt.Errorf("failed to install cert-manager: %w", err)
			}
			return provisioning.StepResult{
				Output: fmt.Sprintf("%s/%s revision %d", ns, rel.Name, rel.Version),
				Values: map[string]string{
					"release":   rel.Name,
					"namespace": ns,
					"revision":  strconv.Itoa(rel.Version),
				},
			}, nil
		},
		Readiness: s.ready(CertManager, func(q kube.Querier) readiness.Probe {
			return readiness.All(
				kube.CRDEstablished(q, certificatesCRD),
				kube.DeploymentAvailable(q, ns, certManagerWebhook),
			)
		}),
		Delete: func(ctx context.Context, sc *provisioning.StepContext) error {
			r, err := s.releaser(ctx, sc)
			if err != nil {
				return err
			}
			return r.Uninstall(ctx, certManagerRelease, s.cfg.Timeouts.Helm.Std())
		},
	}
}
