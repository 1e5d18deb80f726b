// Package shell runs external commands (kind, kubectl, helm, docker) for
// provisioning steps. Executor is the seam steps depend on; OSExecutor runs
// real processes and FakeExecutor scripts responses for tests.
package shell
