package testing

import (
	"context"
	"testing"
	"time"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestKubeconfig is a syntactically valid kubeconfig for a kind cluster.
func TestKubeconfig(clusterName string) string {
	return `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://127.0.0.1:6443
  name: kind-` + clusterName + `
contexts:
- context:
    cluster: kind-` + clusterName + `
    user: kind-` + clusterName + `
  name: kind-` + clusterName + `
current-context: kind-` + clusterName + `
users:
- name: kind-` + clusterName + `
  user:
    token: test
`
}
