package netutil

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, l.Addr().(*net.TCPAddr).Port
}

// freePort returns a port nothing listens on.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestPortOpen(t *testing.T) {
	t.Parallel()
	_, port := listen(t)

	assert.True(t, PortOpen(context.Background(), "127.0.0.1", port))
	assert.False(t, PortOpen(context.Background(), "127.0.0.1", freePort(t)))
}

func TestWaitForPort_Open(t *testing.T) {
	t.Parallel()
	_, port := listen(t)

	err := WaitForPort(context.Background(), "127.0.0.1", port, time.Second, 10*time.Millisecond)
	assert.NoError(t, err)
}

func TestWaitForPort_Timeout(t *testing.T) {
	t.Parallel()
	port := freePort(t)

	start := time.Now()
	err := WaitForPort(context.Background(), "127.0.0.1", port, 100*time.Millisecond, 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting for 127.0.0.1:"+strconv.Itoa(port))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitForPort_DelayedStart(t *testing.T) {
	t.Parallel()
	port := freePort(t)

	go func() {
		time.Sleep(100 * time.Millisecond)
		l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
		if err != nil {
			return
		}
		time.Sleep(2 * time.Second)
		_ = l.Close()
	}()

	err := WaitForPort(context.Background(), "127.0.0.1", port, 3*time.Second, 20*time.Millisecond)
	assert.NoError(t, err)
}

func TestWaitForPort_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForPort(ctx, "127.0.0.1", freePort(t), time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}
