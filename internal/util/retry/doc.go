// Package retry retries operations that fail transiently, such as kubectl or
// kind invocations racing a freshly started API server.
//
// [Do] retries with exponential backoff up to a maximum number of retries.
// Errors wrapped with [Fatal] stop the loop immediately; the readiness poller
// uses the same marker to recognise terminal probe failures.
package retry
