// Package netutil provides TCP reachability helpers.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultPollInterval is how often WaitForPort retries.
const DefaultPollInterval = time.Second

// dialTimeout bounds a single connection attempt.
const dialTimeout = 2 * time.Second

// PortOpen reports whether a TCP connection to host:port succeeds.
func PortOpen(ctx context.Context, host string, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitForPort waits until host:port accepts TCP connections, checking once
// immediately and then every interval until timeout.
func WaitForPort(ctx context.Context, host string, port int, timeout, interval time.Duration) error {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if PortOpen(ctx, host, port) {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("timeout waiting for %s", address)
			}
			return ctx.Err()
		case <-ticker.C:
			if PortOpen(ctx, host, port) {
				return nil
			}
		}
	}
}
