package testing

import (
	"github.com/imamik/rabbitkind/internal/platform/shell"
)

// ShellFixture programs a shell.FakeExecutor with kind and kubectl answers.
type ShellFixture struct {
	exec        *shell.FakeExecutor
	clusterName string
}

// NewShellFixture creates a fixture for one kind cluster.
func NewShellFixture(clusterName string) *ShellFixture {
	return &ShellFixture{exec: shell.NewFakeExecutor(), clusterName: clusterName}
}

// Exec returns the underlying executor.
func (f *ShellFixture) Exec() *shell.FakeExecutor {
	return f.exec
}

// SuccessfulApply answers a fresh provisioning run: no existing clusters,
// kind and kubectl succeed, kubeconfig is TestKubeconfig.
func (f *ShellFixture) SuccessfulApply() *shell.FakeExecutor {
	f.exec.On("kind get clusters").Return("")
	f.exec.On("kind create cluster").Return("")
	f.exec.On("kind get kubeconfig").Return(TestKubeconfig(f.clusterName))
	f.exec.On("kind delete cluster").Return("")
	f.exec.On("kubectl --context kind-" + f.clusterName + " apply").Return("created")
	f.exec.On("kubectl --context kind-" + f.clusterName + " delete").Return("deleted")
	return f.exec
}

// ExistingCluster answers as if the cluster already exists.
func (f *ShellFixture) ExistingCluster() *shell.FakeExecutor {
	f.SuccessfulApply()
	f.exec.On("kind get clusters").Return("other\n" + f.clusterName + "\n")
	return f.exec
}

// FailOn makes every command starting with prefix exit with code 1.
func (f *ShellFixture) FailOn(prefix, stderr string) *shell.FakeExecutor {
	f.exec.On(prefix).Fail(1, stderr)
	return f.exec
}
