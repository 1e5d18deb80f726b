package helm

import (
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

// kubeconfigGetter implements genericclioptions.RESTClientGetter on
// kubeconfig bytes. The namespace given at construction overrides the
// kubeconfig context's namespace.
type kubeconfigGetter struct {
	namespace string
	loader    clientcmd.ClientConfig

	once       sync.Once
	restConfig *rest.Config
	discovery  discovery.CachedDiscoveryInterface
	err        error
}

func newKubeconfigGetter(kubeconfig []byte, namespace string) (*kubeconfigGetter, error) {
	raw, err := clientcmd.Load(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}
	overrides := &clientcmd.ConfigOverrides{}
	overrides.Context.Namespace = namespace
	return &kubeconfigGetter{
		namespace: namespace,
		loader:    clientcmd.NewNonInteractiveClientConfig(*raw, raw.CurrentContext, overrides, nil),
	}, nil
}

func (g *kubeconfigGetter) init() {
	g.once.Do(func() {
		g.restConfig, g.err = g.loader.ClientConfig()
		if g.err != nil {
			return
		}
		var dc *discovery.DiscoveryClient
		dc, g.err = discovery.NewDiscoveryClientForConfig(g.restConfig)
		if g.err != nil {
			return
		}
		g.discovery = memory.NewMemCacheClient(dc)
	})
}

// ToRESTConfig implements genericclioptions.RESTClientGetter.
func (g *kubeconfigGetter) ToRESTConfig() (*rest.Config, error) {
	g.init()
	return g.restConfig, g.err
}

// ToDiscoveryClient implements genericclioptions.RESTClientGetter. The
// client is cached for the getter's lifetime.
func (g *kubeconfigGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	g.init()
	return g.discovery, g.err
}

// ToRESTMapper implements genericclioptions.RESTClientGetter.
func (g *kubeconfigGetter) ToRESTMapper() (meta.RESTMapper, error) {
	dc, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(dc), nil
}

// ToRawKubeConfigLoader implements genericclioptions.RESTClientGetter.
func (g *kubeconfigGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	return g.loader
}
