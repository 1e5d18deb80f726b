package stack

import (
	"context"
	"fmt"

	"github.com/imamik/rabbitkind/internal/platform/kube"
	"github.com/imamik/rabbitkind/internal/provisioning"
	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
)

const (
	operatorNamespace   = "rabbitmq-system"
	clusterOperator     = "rabbitmq-cluster-operator"
	topologyOperator    = "messaging-topology-operator"
	rabbitmqClustersCRD = "rabbitmqclusters.rabbitmq.com"
	rabbitmqQueuesCRD   = "queues.rabbitmq.com"
)

// manifestStep applies a remote manifest with kubectl and deletes it again
// on rollback.
func (s *Stack) manifestStep(id, description, url string, deps []string, probe func(q kube.Querier) readiness.Probe) provisioning.Step {
	return provisioning.Step{
		ID:          id,
		Description: description,
		DependsOn:   deps,
		Create: func(ctx context.Context, _ *provisioning.StepContext) (provisioning.StepResult, error) {
			res, err := s.run(ctx, s.kubectl("apply", "-f", url))
			if err != nil {
				return provisioning.StepResult{}, fmt.Errorf("failed to apply %s: %w", url, err)
			}
			return provisioning.StepResult{Output: res.Output(), Values: map[string]string{"manifest": url}}, nil
		},
		Readiness: s.ready(id, probe),
		Delete: func(ctx context.Context, _ *provisioning.StepContext) error {
			if _, err := s.run(ctx, s.kubectl("delete", "-f", url, "--ignore-not-found")); err != nil {
				return fmt.Errorf("failed to delete %s: %w", url, err)
			}
			return nil
		},
	}
}

func (s *Stack) rabbitMQOperatorStep() provisioning.Step {
	return s.manifestStep(RabbitMQOperator, "RabbitMQ cluster operator", s.cfg.RabbitMQ.OperatorManifest,
		[]string{KindCluster},
		func(q kube.Querier) readiness.Probe {
			return readiness.All(
				kube.CRDEstablished(q, rabbitmqClustersCRD),
				kube.DeploymentAvailable(q, operatorNamespace, clusterOperator),
			)
		})
}

func (s *Stack) topologyOperatorStep() provisioning.Step {
	return s.manifestStep(TopologyOperator, "RabbitMQ messaging topology operator", s.cfg.RabbitMQ.TopologyManifest,
		[]string{KindCluster, CertManager, RabbitMQOperator},
		func(q kube.Querier) readiness.Probe {
			return readiness.All(
				kube.CRDEstablished(q, rabbitmqQueuesCRD),
				kube.DeploymentAvailable(q, operatorNamespace, topologyOperator),
			)
		})
}
