// Package labels builds the Kubernetes labels rabbitkind puts on the
// objects it creates, so they can be selected per environment.
package labels
