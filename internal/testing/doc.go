// Package testing provides test doubles, builders, and fixtures shared by
// package tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating test configurations
//   - FakeApplier, FakeQuerier, MockReleaser: in-memory cluster collaborators
//   - FakeClients: a client factory handing out the doubles above
//   - ShellFixture: a shell.FakeExecutor pre-programmed for kind and kubectl
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithClusterName("test").
//	    WithUsers("alice").
//	    Build()
//
//	clients := testing.NewFakeClients()
//	exec := testing.NewShellFixture(cfg.ClusterName).SuccessfulApply()
package testing
