// Package async runs independent tasks concurrently and collects their errors.
package async
