// Package kube talks to the Kubernetes API of the provisioned cluster.
//
// Applier wraps k8s.io/client-go for Server-Side Apply of multi-document YAML
// manifests, their deletion, and secret management, built directly from
// kubeconfig bytes. Querier reads resource status through a
// controller-runtime client using unstructured objects, so it works for any
// kind including custom resources whose Go types are not compiled in.
package kube
