//go:build kind

package kind

import (
	"strings"
)

// DeploymentAvailable reports whether every replica of a deployment is ready.
func (f *Framework) DeploymentAvailable(namespace, name string) (bool, error) {
	out, err := f.JSONPath("deployment", namespace, name, "{.status.readyReplicas}/{.status.replicas}")
	if err != nil {
		return false, err
	}
	parts := strings.Split(out, "/")
	return len(parts) == 2 && parts[0] != "" && parts[0] != "0" && parts[0] == parts[1], nil
}

// CRDEstablished reports whether a CRD is served.
func (f *Framework) CRDEstablished(name string) (bool, error) {
	out, err := f.JSONPath("crd", "", name, "{.status.conditions[?(@.type=='Established')].status}")
	return out == "True", err
}

// Condition returns the status of a named condition on a resource.
func (f *Framework) Condition(kind, namespace, name, condition string) (string, error) {
	return f.JSONPath(kind, namespace, name, "{.status.conditions[?(@.type=='"+condition+"')].status}")
}
