package kube

import (
	"context"
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// ErrNotFound is returned when a queried resource does not exist.
var ErrNotFound = errors.New("resource not found")

// ResourceRef identifies a resource by kind and name.
type ResourceRef struct {
	APIVersion string
	Kind       string
	Namespace  string
	Name       string
}

func (r ResourceRef) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s/%s", r.Kind, r.Name)
	}
	return fmt.Sprintf("%s %s/%s", r.Kind, r.Namespace, r.Name)
}

func (r ResourceRef) gvk() schema.GroupVersionKind {
	return schema.FromAPIVersionAndKind(r.APIVersion, r.Kind)
}

// Condition is one entry of status.conditions.
type Condition struct {
	Type    string
	Status  string
	Reason  string
	Message string
}

// ResourceStatus is the generic status of a resource.
type ResourceStatus struct {
	Name       string
	Namespace  string
	Phase      string
	Conditions []Condition

	Replicas          int64
	ReadyReplicas     int64
	AvailableReplicas int64
}

// Condition returns the condition with the given type.
func (s ResourceStatus) Condition(condType string) (Condition, bool) {
	for _, c := range s.Conditions {
		if c.Type == condType {
			return c, true
		}
	}
	return Condition{}, false
}

// IsTrue reports whether the given condition is present with status "True".
func (s ResourceStatus) IsTrue(condType string) bool {
	c, ok := s.Condition(condType)
	return ok && c.Status == "True"
}

// Querier reads resource status.
type Querier interface {
	// QueryResource returns the status of one resource, or ErrNotFound.
	QueryResource(ctx context.Context, ref ResourceRef) (ResourceStatus, error)
	// ListResources returns the status of every matching resource.
	ListResources(ctx context.Context, apiVersion, kind, namespace string, labels map[string]string) ([]ResourceStatus, error)
}

// querier implements Querier on a controller-runtime client.
type querier struct {
	client ctrlclient.Reader
}

// NewQuerier creates a Querier from kubeconfig bytes.
func NewQuerier(kubeconfig []byte) (Querier, error) {
	restConfig, err := restConfigFromKubeconfig(kubeconfig)
	if err != nil {
		return nil, err
	}
	c, err := ctrlclient.New(restConfig, ctrlclient.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to create controller-runtime client: %w", err)
	}
	return &querier{client: c}, nil
}

// NewQuerierFromClient wraps an existing reader, typically a fake client in tests.
func NewQuerierFromClient(c ctrlclient.Reader) Querier {
	return &querier{client: c}
}

// QueryResource implements Querier.
func (q *querier) QueryResource(ctx context.Context, ref ResourceRef) (ResourceStatus, error) {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(ref.gvk())

	err := q.client.Get(ctx, ctrlclient.ObjectKey{Namespace: ref.Namespace, Name: ref.Name}, obj)
	if apierrors.IsNotFound(err) {
		return ResourceStatus{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return ResourceStatus{}, fmt.Errorf("failed to get %s: %w", ref, err)
	}
	return statusOf(obj), nil
}

// ListResources implements Querier.
func (q *querier) ListResources(ctx context.Context, apiVersion, kind, namespace string, labels map[string]string) ([]ResourceStatus, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(schema.FromAPIVersionAndKind(apiVersion, kind+"List"))

	var opts []ctrlclient.ListOption
	if namespace != "" {
		opts = append(opts, ctrlclient.InNamespace(namespace))
	}
	if len(labels) > 0 {
		opts = append(opts, ctrlclient.MatchingLabels(labels))
	}
	if err := q.client.List(ctx, list, opts...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	out := make([]ResourceStatus, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, statusOf(&list.Items[i]))
	}
	return out, nil
}

func statusOf(obj *unstructured.Unstructured) ResourceStatus {
	s := ResourceStatus{Name: obj.GetName(), Namespace: obj.GetNamespace()}
	s.Phase, _, _ = unstructured.NestedString(obj.Object, "status", "phase")
	s.Replicas, _, _ = unstructured.NestedInt64(obj.Object, "status", "replicas")
	s.ReadyReplicas, _, _ = unstructured.NestedInt64(obj.Object, "status", "readyReplicas")
	s.AvailableReplicas, _, _ = unstructured.NestedInt64(obj.Object, "status", "availableReplicas")

	conds, _, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	for _, raw := range conds {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		c := Condition{}
		c.Type, _ = m["type"].(string)
		c.Status, _ = m["status"].(string)
		c.Reason, _ = m["reason"].(string)
		c.Message, _ = m["message"].(string)
		s.Conditions = append(s.Conditions, c)
	}
	return s
}
