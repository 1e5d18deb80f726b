//go:build kind

package kind

import (
	"fmt"
	"io"
)

// CollectNamespaceDiagnostics writes resources and events of a namespace.
func (f *Framework) CollectNamespaceDiagnostics(w io.Writer, namespace string) {
	_, _ = fmt.Fprintf(w, "\n=== Namespace %s ===\n", namespace)

	output, _ := f.Kubectl("-n", namespace, "get", "all", "-o", "wide")
	_, _ = fmt.Fprintf(w, "Resources:\n%s\n", output)

	output, _ = f.Kubectl("-n", namespace, "get", "events", "--sort-by=.lastTimestamp")
	_, _ = fmt.Fprintf(w, "Events:\n%s\n", output)
}

// CollectPodLogs writes the tail of the logs of the first pod matching label.
func (f *Framework) CollectPodLogs(w io.Writer, namespace, label string, tailLines int) {
	podName, err := f.Kubectl("-n", namespace, "get", "pods", "-l", label,
		"-o", "jsonpath={.items[0].metadata.name}")
	if err != nil || podName == "" {
		return
	}

	output, _ := f.Kubectl("-n", namespace, "logs", podName, fmt.Sprintf("--tail=%d", tailLines))
	_, _ = fmt.Fprintf(w, "Logs from %s:\n%s\n", podName, output)
}
