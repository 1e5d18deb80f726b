package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

// Applier changes cluster state.
type Applier interface {
	// ApplyManifests applies multi-document YAML using Server-Side Apply.
	// The fieldManager identifies the actor applying the configuration.
	ApplyManifests(ctx context.Context, manifests []byte, fieldManager string) error

	// DeleteManifests deletes every object in multi-document YAML, last
	// document first. Objects that are already gone are ignored.
	DeleteManifests(ctx context.Context, manifests []byte) error

	// CreateSecret creates or replaces a secret in its namespace.
	CreateSecret(ctx context.Context, secret *corev1.Secret) error

	// GetSecret reads a secret. A missing secret yields ErrNotFound.
	GetSecret(ctx context.Context, namespace, name string) (*corev1.Secret, error)

	// DeleteSecret deletes a secret, returning nil if not found.
	DeleteSecret(ctx context.Context, namespace, name string) error

	// RefreshDiscovery refreshes the API discovery to pick up newly installed CRDs.
	RefreshDiscovery(ctx context.Context) error
}

// applier implements Applier using k8s.io/client-go.
type applier struct {
	clientset     kubernetes.Interface
	dynamicClient dynamic.Interface
	mapper        meta.RESTMapper
	restConfig    *rest.Config // nil for test clients
}

// NewApplier creates an Applier from kubeconfig bytes.
func NewApplier(kubeconfig []byte) (Applier, error) {
	restConfig, err := restConfigFromKubeconfig(kubeconfig)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	mapper, err := discoverMapper(restConfig)
	if err != nil {
		return nil, err
	}

	return &applier{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		mapper:        mapper,
		restConfig:    restConfig,
	}, nil
}

// NewApplierFromClients creates an Applier from pre-configured clients.
// This is useful for testing with fake clients.
func NewApplierFromClients(clientset kubernetes.Interface, dynamicClient dynamic.Interface, mapper meta.RESTMapper) Applier {
	return &applier{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		mapper:        mapper,
	}
}

// RefreshDiscovery implements Applier.
func (a *applier) RefreshDiscovery(_ context.Context) error {
	if a.restConfig == nil {
		return nil
	}
	mapper, err := discoverMapper(a.restConfig)
	if err != nil {
		return err
	}
	a.mapper = mapper
	return nil
}

func restConfigFromKubeconfig(kubeconfig []byte) (*rest.Config, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST config from kubeconfig: %w", err)
	}
	return restConfig, nil
}

func discoverMapper(restConfig *rest.Config) (meta.RESTMapper, error) {
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	groupResources, err := restmapper.GetAPIGroupResources(discoveryClient)
	if err != nil {
		return nil, fmt.Errorf("failed to get API group resources: %w", err)
	}
	return restmapper.NewDiscoveryRESTMapper(groupResources), nil
}
