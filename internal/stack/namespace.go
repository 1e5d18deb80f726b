package stack

import (
	"context"

	"github.com/imamik/rabbitkind/internal/platform/kube"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
)

func (s *Stack) namespaceManifest() ([]byte, error) {
	return renderManifests("namespace", struct {
		Namespace   string
		ClusterName string
	}{s.cfg.Namespace, s.cfg.ClusterName})
}

func (s *Stack) namespaceStep() provisioning.Step {
	return provisioning.Step{
		ID:          Namespace,
		Description: "namespace " + s.cfg.Namespace,
		DependsOn:   []string{KindCluster},
		Create: func(ctx context.Context, sc *provisioning.StepContext) (provisioning.StepResult, error) {
			if err := s.applyRendered(ctx, sc, s.namespaceManifest); err != nil {
				return provisioning.StepResult{}, err
			}
			return provisioning.StepResult{Output: "namespace/" + s.cfg.Namespace}, nil
		},
		Readiness: s.ready(Namespace, func(q kube.Querier) readiness.Probe {
			return kube.NamespaceActive(q, s.cfg.Namespace)
		}),
		Delete: func(ctx context.Context, sc *provisioning.StepContext) error {
			return s.deleteRendered(ctx, sc, s.namespaceManifest)
		},
	}
}

// applyRendered renders manifests and applies them with server-side apply.
func (s *Stack) applyRendered(ctx context.Context, sc *provisioning.StepContext, render func() ([]byte, error)) error {
	manifests, err := render()
	if err != nil {
		return err
	}
	a, err := s.applier(ctx, sc)
	if err != nil {
		return err
	}
	return a.ApplyManifests(ctx, manifests, fieldManager)
}

// deleteRendered renders manifests and deletes every object they name.
func (s *Stack) deleteRendered(ctx context.Context, sc *provisioning.StepContext, render func() ([]byte, error)) error {
	manifests, err := render()
	if err != nil {
		return err
	}
	a, err := s.applier(ctx, sc)
	if err != nil {
		return err
	}
	return a.DeleteManifests(ctx, manifests)
}
