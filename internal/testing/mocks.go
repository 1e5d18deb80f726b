package testing

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"helm.sh/helm/v3/pkg/release"
	corev1 "k8s.io/api/core/v1"

	"github.com/imamik/rabbitkind/internal/platform/helm"
	"github.com/imamik/rabbitkind/internal/platform/kube"
)

// MockReleaser is a mock implementation of helm.Releaser.
type MockReleaser struct {
	mock.Mock
}

// InstallOrUpgrade records the call and returns the programmed release.
func (m *MockReleaser) InstallOrUpgrade(ctx context.Context, ref helm.ChartRef, values map[string]any) (*release.Release, error) {
	args := m.Called(ctx, ref, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*release.Release), args.Error(1)
}

// Uninstall records the call.
func (m *MockReleaser) Uninstall(ctx context.Context, releaseName string, timeout time.Duration) error {
	args := m.Called(ctx, releaseName, timeout)
	return args.Error(0)
}

// ReleaseExists records the call.
func (m *MockReleaser) ReleaseExists(releaseName string) (bool, error) {
	args := m.Called(releaseName)
	return args.Bool(0), args.Error(1)
}

// Release builds a deployed release for mock returns.
func Release(name string, revision int) *release.Release {
	return &release.Release{
		Name:    name,
		Version: revision,
		Info:    &release.Info{Status: release.StatusDeployed},
	}
}

// FakeApplier is an in-memory kube.Applier. Objects are keyed as
// "Kind namespace/name".
type FakeApplier struct {
	mu        sync.Mutex
	applied   []string
	deleted   []string
	manifests map[string][]byte
	secrets   map[string]*corev1.Secret
	refreshes int

	// ApplyErr, when set, is returned by ApplyManifests for objects of this kind.
	ApplyErr     error
	ApplyErrKind string
	// DeleteErr, when set, is returned by DeleteManifests.
	DeleteErr error
}

// NewFakeApplier creates an empty FakeApplier.
func NewFakeApplier() *FakeApplier {
	return &FakeApplier{
		manifests: make(map[string][]byte),
		secrets:   make(map[string]*corev1.Secret),
	}
}

func objectKey(kind, namespace, name string) string {
	if namespace == "" {
		return kind + " " + name
	}
	return fmt.Sprintf("%s %s/%s", kind, namespace, name)
}

// ApplyManifests implements kube.Applier.
func (f *FakeApplier) ApplyManifests(_ context.Context, manifests []byte, _ string) error {
	objs, err := kube.DecodeManifests(manifests)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range objs {
		if f.ApplyErr != nil && (f.ApplyErrKind == "" || f.ApplyErrKind == obj.GetKind()) {
			return f.ApplyErr
		}
		key := objectKey(obj.GetKind(), obj.GetNamespace(), obj.GetName())
		f.applied = append(f.applied, key)
		data, err := obj.MarshalJSON()
		if err != nil {
			return err
		}
		f.manifests[key] = data
	}
	return nil
}

// DeleteManifests implements kube.Applier.
func (f *FakeApplier) DeleteManifests(_ context.Context, manifests []byte) error {
	objs, err := kube.DecodeManifests(manifests)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i := len(objs) - 1; i >= 0; i-- {
		key := objectKey(objs[i].GetKind(), objs[i].GetNamespace(), objs[i].GetName())
		f.deleted = append(f.deleted, key)
		delete(f.manifests, key)
	}
	return nil
}

// CreateSecret implements kube.Applier.
func (f *FakeApplier) CreateSecret(_ context.Context, secret *corev1.Secret) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[secret.Namespace+"/"+secret.Name] = secret.DeepCopy()
	f.applied = append(f.applied, objectKey("Secret", secret.Namespace, secret.Name))
	return nil
}

// GetSecret implements kube.Applier.
func (f *FakeApplier) GetSecret(_ context.Context, namespace, name string) (*corev1.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.secrets[namespace+"/"+name]
	if !ok {
		return nil, fmt.Errorf("secret %s/%s: %w", namespace, name, kube.ErrNotFound)
	}
	return s.DeepCopy(), nil
}

// DeleteSecret implements kube.Applier.
func (f *FakeApplier) DeleteSecret(_ context.Context, namespace, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.secrets, namespace+"/"+name)
	f.deleted = append(f.deleted, objectKey("Secret", namespace, name))
	return nil
}

// RefreshDiscovery implements kube.Applier.
func (f *FakeApplier) RefreshDiscovery(context.Context) error {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	return nil
}

// PutSecret seeds a secret as if another controller had created it.
func (f *FakeApplier) PutSecret(namespace, name string, data map[string]string) {
	s := &corev1.Secret{}
	s.Namespace, s.Name = namespace, name
	s.Data = make(map[string][]byte, len(data))
	for k, v := range data {
		s.Data[k] = []byte(v)
	}
	f.mu.Lock()
	f.secrets[namespace+"/"+name] = s
	f.mu.Unlock()
}

// Secret returns a stored secret or nil.
func (f *FakeApplier) Secret(namespace, name string) *corev1.Secret {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.secrets[namespace+"/"+name]; ok {
		return s.DeepCopy()
	}
	return nil
}

// Applied lists applied object keys in order.
func (f *FakeApplier) Applied() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.applied)
}

// Deleted lists deleted object keys in order.
func (f *FakeApplier) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

// Manifest returns the JSON of the last applied version of an object.
func (f *FakeApplier) Manifest(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.manifests[key]
}

// Refreshes counts RefreshDiscovery calls.
func (f *FakeApplier) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// FakeQuerier answers every query with a ready status unless an override
// is registered for the resource.
type FakeQuerier struct {
	mu        sync.Mutex
	overrides map[string]kube.ResourceStatus
	missing   map[string]bool
	queries   int
}

// NewFakeQuerier creates a FakeQuerier that reports everything ready.
func NewFakeQuerier() *FakeQuerier {
	return &FakeQuerier{
		overrides: make(map[string]kube.ResourceStatus),
		missing:   make(map[string]bool),
	}
}

// ReadyStatus has every condition the readiness probes look at set True.
func ReadyStatus() kube.ResourceStatus {
	conds := make([]kube.Condition, 0, 5)
	for _, t := range []string{"Ready", "Available", "Established", "AllReplicasReady", "ReconcileSuccess"} {
		conds = append(conds, kube.Condition{Type: t, Status: "True"})
	}
	return kube.ResourceStatus{Phase: "Active", Conditions: conds}
}

// Set overrides the status of one resource.
func (q *FakeQuerier) Set(ref kube.ResourceRef, st kube.ResourceStatus) {
	q.mu.Lock()
	q.overrides[ref.String()] = st
	q.mu.Unlock()
}

// Remove makes a resource report ErrNotFound.
func (q *FakeQuerier) Remove(ref kube.ResourceRef) {
	q.mu.Lock()
	q.missing[ref.String()] = true
	q.mu.Unlock()
}

// Queries counts QueryResource and ListResources calls.
func (q *FakeQuerier) Queries() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queries
}

// QueryResource implements kube.Querier.
func (q *FakeQuerier) QueryResource(ctx context.Context, ref kube.ResourceRef) (kube.ResourceStatus, error) {
	if err := ctx.Err(); err != nil {
		return kube.ResourceStatus{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries++
	if q.missing[ref.String()] {
		return kube.ResourceStatus{}, fmt.Errorf("%s: %w", ref, kube.ErrNotFound)
	}
	if st, ok := q.overrides[ref.String()]; ok {
		return st, nil
	}
	st := ReadyStatus()
	st.Name, st.Namespace = ref.Name, ref.Namespace
	return st, nil
}

// ListResources implements kube.Querier with a single ready item.
func (q *FakeQuerier) ListResources(ctx context.Context, _, kind, namespace string, _ map[string]string) ([]kube.ResourceStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries++
	st := ReadyStatus()
	st.Name, st.Namespace = kind+"-0", namespace
	return []kube.ResourceStatus{st}, nil
}

// FakeClients hands out one FakeApplier, FakeQuerier and MockReleaser and
// records the kubeconfigs it was asked for.
type FakeClients struct {
	Apply *FakeApplier
	Query *FakeQuerier
	Helm  *MockReleaser

	mu          sync.Mutex
	kubeconfigs []string
	namespaces  []string
}

// NewFakeClients creates a FakeClients with fresh doubles.
func NewFakeClients() *FakeClients {
	return &FakeClients{
		Apply: NewFakeApplier(),
		Query: NewFakeQuerier(),
		Helm:  &MockReleaser{},
	}
}

func (c *FakeClients) record(kubeconfig []byte) {
	c.mu.Lock()
	c.kubeconfigs = append(c.kubeconfigs, string(kubeconfig))
	c.mu.Unlock()
}

// Applier implements the stack client factory.
func (c *FakeClients) Applier(kubeconfig []byte) (kube.Applier, error) {
	c.record(kubeconfig)
	return c.Apply, nil
}

// Querier implements the stack client factory.
func (c *FakeClients) Querier(kubeconfig []byte) (kube.Querier, error) {
	c.record(kubeconfig)
	return c.Query, nil
}

// Releaser implements the stack client factory.
func (c *FakeClients) Releaser(kubeconfig []byte, namespace string) (helm.Releaser, error) {
	c.record(kubeconfig)
	c.mu.Lock()
	c.namespaces = append(c.namespaces, namespace)
	c.mu.Unlock()
	return c.Helm, nil
}

// Kubeconfigs lists every kubeconfig passed to the factory.
func (c *FakeClients) Kubeconfigs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.kubeconfigs)
}

// ReleaseNamespaces lists the namespaces releasers were created for.
func (c *FakeClients) ReleaseNamespaces() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.namespaces)
}
