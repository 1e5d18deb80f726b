package lock

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	l, err := Acquire(dir, "demo", "apply")
	require.NoError(t, err)

	owner, err := ReadOwner(Path(dir, "demo"))
	require.NoError(t, err)
	assert.Equal(t, "demo", owner.Cluster)
	assert.Equal(t, os.Getpid(), owner.PID)
	assert.Equal(t, "apply", owner.Command)

	_, err = Acquire(dir, "demo", "destroy")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)
	var held *HeldError
	require.True(t, errors.As(err, &held))
	assert.Equal(t, "apply", held.Owner.Command)
	assert.Contains(t, err.Error(), "remove")

	other, err := Acquire(dir, "other", "apply")
	require.NoError(t, err, "locks are per cluster")
	require.NoError(t, other.Release())

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())

	again, err := Acquire(dir, "demo", "destroy")
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestBreak(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := Acquire(dir, "demo", "apply")
	require.NoError(t, err)
	require.NoError(t, Break(dir, "demo"))
	require.NoError(t, Break(dir, "demo"))

	l, err := Acquire(dir, "demo", "apply")
	require.NoError(t, err)
	require.NoError(t, l.Release())
}

func TestAcquire_CorruptLock(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir, "demo"), []byte("garbage"), 0o600))

	_, err := Acquire(dir, "demo", "apply")
	assert.ErrorIs(t, err, ErrLocked)
}

func TestAcquire_RequiresCluster(t *testing.T) {
	t.Parallel()
	_, err := Acquire(t.TempDir(), "", "apply")
	assert.Error(t, err)
}
