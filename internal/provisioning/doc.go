// Package provisioning runs a set of dependent provisioning steps in order.
//
// # Subpackages
//
//   - readiness/: polling a probe until a resource reports ready
//
// # Core Types
//
// Step is a named unit of work with a create action, an optional readiness
// probe, and an optional delete action.
// Graph holds the steps and their dependency edges and produces a
// deterministic topological order.
// Scheduler executes steps one at a time in that order, recording every
// state transition.
// Orchestrator ties the pieces together: Apply runs the whole graph and
// rolls back on failure, Destroy reverses a previous apply.
// RunReport is the per-run record of what happened to each step.
package provisioning
