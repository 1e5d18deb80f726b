// Package helm installs and removes Helm releases programmatically, using
// kubeconfig bytes held in memory instead of a kubeconfig file.
package helm
