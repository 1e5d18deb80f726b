// Package prerequisites checks that the client tools rabbitkind shells out to
// are installed.
package prerequisites

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/imamik/rabbitkind/internal/util/async"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string

	// VersionArgs print the tool's version.
	VersionArgs []string
}

// DefaultTools returns the tools apply and destroy need.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "docker",
			Required:    true,
			Description: "Container runtime kind runs its nodes in",
			InstallURL:  "https://docs.docker.com/get-docker/",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "kind",
			Required:    true,
			Description: "Creates and deletes the local cluster",
			InstallURL:  "https://kind.sigs.k8s.io/docs/user/quick-start/#installation",
			VersionArgs: []string{"version"},
		},
		{
			Name:        "kubectl",
			Required:    true,
			Description: "Applies the RabbitMQ operator manifests",
			InstallURL:  "https://kubernetes.io/docs/tasks/tools/",
			VersionArgs: []string{"version", "--client"},
		},
	}
}

// OptionalTools returns tools that are useful but not required.
func OptionalTools() []Tool {
	return []Tool{
		{
			Name:        "helm",
			Required:    false,
			Description: "Useful for inspecting the cert-manager release",
			InstallURL:  "https://helm.sh/docs/intro/install/",
			VersionArgs: []string{"version", "--short"},
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Checker looks tools up. The zero value uses PATH and runs real binaries.
type Checker struct {
	LookPath func(name string) (string, error)
	Output   func(ctx context.Context, name string, args ...string) ([]byte, error)
	// VersionTimeout bounds each version command. Defaults to 5s.
	VersionTimeout time.Duration
}

// Check verifies that the specified tools are available. Version commands
// of the found tools run concurrently.
func (c Checker) Check(ctx context.Context, tools []Tool) *CheckResults {
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	results := &CheckResults{Results: make([]CheckResult, len(tools))}

	var probes []async.Task
	for i, tool := range tools {
		results.Results[i] = CheckResult{Tool: tool}

		path, err := lookPath(tool.Name)
		if err != nil {
			results.Missing = append(results.Missing, tool)
			continue
		}
		results.Results[i].Found = true
		results.Results[i].Path = path
		probes = append(probes, async.Task{Name: tool.Name, Func: func(ctx context.Context) error {
			results.Results[i].Version = c.version(ctx, tool)
			return nil
		}})
	}

	// version never fails; a tool that cannot report one keeps an empty Version.
	_ = async.RunParallel(ctx, probes)
	return results
}

// version returns the first line of the tool's version output, or "".
func (c Checker) version(ctx context.Context, tool Tool) string {
	if len(tool.VersionArgs) == 0 {
		return ""
	}
	output := c.Output
	if output == nil {
		output = runOutput
	}
	timeout := c.VersionTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := output(ctx, tool.Name, tool.VersionArgs...)
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

func runOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 - name and args come from the Tool definitions above
	return exec.CommandContext(ctx, name, args...).Output()
}

// Check verifies tools with the default Checker.
func Check(ctx context.Context, tools []Tool) *CheckResults {
	return Checker{}.Check(ctx, tools)
}

// CheckDefault checks the default required tools.
func CheckDefault(ctx context.Context) *CheckResults {
	return Check(ctx, DefaultTools())
}

// CheckAll checks all tools (default + optional).
func CheckAll(ctx context.Context) *CheckResults {
	defaults := DefaultTools()
	optional := OptionalTools()
	all := make([]Tool, 0, len(defaults)+len(optional))
	all = append(all, defaults...)
	all = append(all, optional...)
	return Check(ctx, all)
}
