//go:build kind

package kind

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Kubectl executes a kubectl command against the provisioned cluster and
// returns its output.
func (f *Framework) Kubectl(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fullArgs := append([]string{"--kubeconfig", f.KubeconfigPath()}, args...)
	// #nosec G204 -- test code with controlled command arguments
	cmd := exec.CommandContext(ctx, "kubectl", fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("kubectl %s: %v: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

// JSONPath reads one field of a resource.
func (f *Framework) JSONPath(kind, namespace, name, path string) (string, error) {
	args := []string{"get", kind, name, "-o", "jsonpath=" + path}
	if namespace != "" {
		args = append([]string{"-n", namespace}, args...)
	}
	out, err := f.Kubectl(args...)
	return strings.TrimSpace(out), err
}

// ResourceExists checks if a resource exists.
func (f *Framework) ResourceExists(kind, namespace, name string) bool {
	args := []string{"get", kind, name}
	if namespace != "" {
		args = append([]string{"-n", namespace}, args...)
	}
	_, err := f.Kubectl(args...)
	return err == nil
}

// KindClusterExists asks kind whether the suite's cluster is still there.
func KindClusterExists() (bool, error) {
	out, err := exec.Command("kind", "get", "clusters").Output()
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == clusterName {
			return true, nil
		}
	}
	return false, nil
}
