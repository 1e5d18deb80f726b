package stack

import (
	"crypto/sha256"
	"sync"

	"github.com/go-logr/logr"

	"github.com/imamik/rabbitkind/internal/platform/helm"
	"github.com/imamik/rabbitkind/internal/platform/kube"
)

// ClientFactory builds cluster clients from kubeconfig bytes.
type ClientFactory interface {
	Applier(kubeconfig []byte) (kube.Applier, error)
	Querier(kubeconfig []byte) (kube.Querier, error)
	Releaser(kubeconfig []byte, namespace string) (helm.Releaser, error)
}

// KubeClients is the production ClientFactory. Appliers and queriers are
// cached per kubeconfig so discovery runs once per cluster.
type KubeClients struct {
	log logr.Logger

	mu       sync.Mutex
	appliers map[[sha256.Size]byte]kube.Applier
	queriers map[[sha256.Size]byte]kube.Querier
}

// NewKubeClients creates a KubeClients.
func NewKubeClients(log logr.Logger) *KubeClients {
	return &KubeClients{
		log:      log,
		appliers: make(map[[sha256.Size]byte]kube.Applier),
		queriers: make(map[[sha256.Size]byte]kube.Querier),
	}
}

// Applier implements ClientFactory.
func (c *KubeClients) Applier(kubeconfig []byte) (kube.Applier, error) {
	key := sha256.Sum256(kubeconfig)
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.appliers[key]; ok {
		return a, nil
	}
	a, err := kube.NewApplier(kubeconfig)
	if err != nil {
		return nil, err
	}
	c.appliers[key] = a
	return a, nil
}

// Querier implements ClientFactory.
func (c *KubeClients) Querier(kubeconfig []byte) (kube.Querier, error) {
	key := sha256.Sum256(kubeconfig)
	c.mu.Lock()
	defer c.mu.Unlock()
	if q, ok := c.queriers[key]; ok {
		return q, nil
	}
	q, err := kube.NewQuerier(kubeconfig)
	if err != nil {
		return nil, err
	}
	c.queriers[key] = q
	return q, nil
}

// Releaser implements ClientFactory.
func (c *KubeClients) Releaser(kubeconfig []byte, namespace string) (helm.Releaser, error) {
	return helm.NewClient(kubeconfig, namespace, c.log.WithName("helm"))
}
