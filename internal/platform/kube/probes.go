package kube

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/rabbitkind/internal/provisioning/readiness"
)

// Readiness probes built on a Querier. A missing resource is reported as
// not ready rather than as an error, since it usually appears shortly after
// the create action returns.

// ConditionTrue is ready once ref has condition condType with status True.
func ConditionTrue(q Querier, ref ResourceRef, condType string) readiness.Probe {
	return func(ctx context.Context) (bool, error) {
		st, err := q.QueryResource(ctx, ref)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return st.IsTrue(condType), nil
	}
}

// DeploymentAvailable is ready once the deployment reports Available.
func DeploymentAvailable(q Querier, namespace, name string) readiness.Probe {
	return ConditionTrue(q, ResourceRef{APIVersion: "apps/v1", Kind: "Deployment", Namespace: namespace, Name: name}, "Available")
}

// CRDEstablished is ready once the CustomResourceDefinition is Established.
func CRDEstablished(q Querier, name string) readiness.Probe {
	return ConditionTrue(q, ResourceRef{APIVersion: "apiextensions.k8s.io/v1", Kind: "CustomResourceDefinition", Name: name}, "Established")
}

// NamespaceActive is ready once the namespace phase is Active.
func NamespaceActive(q Querier, name string) readiness.Probe {
	return func(ctx context.Context) (bool, error) {
		st, err := q.QueryResource(ctx, ResourceRef{APIVersion: "v1", Kind: "Namespace", Name: name})
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return st.Phase == "Active", nil
	}
}

// NodesReady is ready once at least one node exists and every node is Ready.
func NodesReady(q Querier) readiness.Probe {
	return func(ctx context.Context) (bool, error) {
		nodes, err := q.ListResources(ctx, "v1", "Node", "", nil)
		if err != nil {
			return false, err
		}
		return allTrue(nodes, "Ready"), nil
	}
}

// PodsReady is ready once at least one pod matches labels and every match is Ready.
func PodsReady(q Querier, namespace string, labels map[string]string) readiness.Probe {
	return func(ctx context.Context) (bool, error) {
		pods, err := q.ListResources(ctx, "v1", "Pod", namespace, labels)
		if err != nil {
			return false, err
		}
		return allTrue(pods, "Ready"), nil
	}
}

func allTrue(items []ResourceStatus, condType string) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if !it.IsTrue(condType) {
			return false
		}
	}
	return true
}

// Gone is ready once ref no longer exists. Used to wait for deletions.
func Gone(q Querier, ref ResourceRef) readiness.Probe {
	return func(ctx context.Context) (bool, error) {
		_, err := q.QueryResource(ctx, ref)
		if errors.Is(err, ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("checking %s: %w", ref, err)
		}
		return false, nil
	}
}
