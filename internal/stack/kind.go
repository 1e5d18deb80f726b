package stack

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/imamik/rabbitkind/internal/platform/kube"
	"github.com/imamik/rabbitkind/internal/platform/shell"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
)

type kindConfigData struct {
	ClusterName  string
	NodeImage    string
	Workers      []struct{}
	AMQPHostPort int
	AMQPNodePort int
}

func (s *Stack) kindConfig() ([]byte, error) {
	return renderManifests("kind", kindConfigData{
		ClusterName:  s.cfg.ClusterName,
		NodeImage:    s.cfg.Kind.NodeImage,
		Workers:      make([]struct{}, s.cfg.Kind.Workers),
		AMQPHostPort: s.cfg.Kind.AMQPHostPort,
		AMQPNodePort: amqpNodePort,
	})
}

func (s *Stack) kindClusterStep() provisioning.Step {
	return provisioning.Step{
		ID:          KindCluster,
		Description: "kind cluster " + s.cfg.ClusterName,
		Create:      s.createKindCluster,
		Readiness: s.ready(KindCluster, func(q kube.Querier) readiness.Probe {
			return kube.NodesReady(q)
		}),
		Delete: s.deleteKindCluster,
	}
}

func (s *Stack) kindClusterExists(ctx context.Context) (bool, error) {
	res, err := s.run(ctx, shell.Cmd("kind", "get", "clusters"))
	if err != nil {
		return false, fmt.Errorf("failed to list kind clusters: %w", err)
	}
	return slices.Contains(strings.Fields(res.Stdout), s.cfg.ClusterName), nil
}

func (s *Stack) createKindCluster(ctx context.Context, _ *provisioning.StepContext) (provisioning.StepResult, error) {
	exists, err := s.kindClusterExists(ctx)
	if err != nil {
		return provisioning.StepResult{}, err
	}

	if exists {
		s.deps.Log.Info("reusing existing kind cluster", "cluster", s.cfg.ClusterName)
	} else {
		kindCfg, err := s.kindConfig()
		if err != nil {
			return provisioning.StepResult{}, err
		}
		cmd := shell.Cmd("kind", "create", "cluster", "--name", s.cfg.ClusterName, "--config", "-", "--wait", "0s").WithStdin(kindCfg)
		if _, err := s.run(ctx, cmd); err != nil {
			return provisioning.StepResult{}, fmt.Errorf("failed to create kind cluster %s: %w", s.cfg.ClusterName, err)
		}
	}

	res, err := s.run(ctx, shell.Cmd("kind", "get", "kubeconfig", "--name", s.cfg.ClusterName))
	if err != nil {
		return provisioning.StepResult{}, fmt.Errorf("failed to read kubeconfig of cluster %s: %w", s.cfg.ClusterName, err)
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return provisioning.StepResult{}, fmt.Errorf("kind returned an empty kubeconfig for cluster %s", s.cfg.ClusterName)
	}
	s.rememberKubeconfig([]byte(res.Stdout))

	return provisioning.StepResult{
		Output: s.kubeContext(),
		Values: map[string]string{
			ValueKubeconfig: res.Stdout,
			ValueContext:    s.kubeContext(),
		},
	}, nil
}

func (s *Stack) deleteKindCluster(ctx context.Context, _ *provisioning.StepContext) error {
	if _, err := s.run(ctx, shell.Cmd("kind", "delete", "cluster", "--name", s.cfg.ClusterName)); err != nil {
		return fmt.Errorf("failed to delete kind cluster %s: %w", s.cfg.ClusterName, err)
	}
	s.rememberKubeconfig(nil)
	return nil
}
