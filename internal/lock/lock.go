// Package lock keeps two rabbitkind runs from working on the same cluster.
//
// The lock is a file created with O_EXCL next to the cluster's report. It
// records who holds it so a stale lock left by a killed process can be
// identified and removed with Break.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("cluster is locked by another run")

// Owner describes the holder of a lock.
type Owner struct {
	Cluster    string    `json:"cluster"`
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	Command    string    `json:"command"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// HeldError reports the current holder of a lock.
type HeldError struct {
	Path  string
	Owner *Owner
}

func (e *HeldError) Error() string {
	if e.Owner == nil {
		return fmt.Sprintf("%s: %v", e.Path, ErrLocked)
	}
	return fmt.Sprintf("%v: %s (pid %d on %s since %s); remove %s if that run is gone",
		ErrLocked, e.Owner.Command, e.Owner.PID, e.Owner.Host,
		e.Owner.AcquiredAt.Format(time.RFC3339), e.Path)
}

func (e *HeldError) Unwrap() error { return ErrLocked }

// Lock is a held cluster lock.
type Lock struct {
	path string
}

// Path returns the lock file for a cluster under dir.
func Path(dir, cluster string) string {
	return filepath.Join(dir, cluster+".lock")
}

// Acquire takes the lock for cluster. command is recorded for diagnostics.
func Acquire(dir, cluster, command string) (*Lock, error) {
	if cluster == "" {
		return nil, errors.New("cluster name is required for locking")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := Path(dir, cluster)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304 -- path built from config
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			owner, _ := ReadOwner(path)
			return nil, &HeldError{Path: path, Owner: owner}
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	host, _ := os.Hostname()
	owner := Owner{
		Cluster:    cluster,
		PID:        os.Getpid(),
		Host:       host,
		Command:    command,
		AcquiredAt: time.Now().UTC(),
	}
	if err := json.NewEncoder(f).Encode(owner); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to close lock file: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// ReadOwner reads the holder recorded in a lock file.
func ReadOwner(path string) (*Owner, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path built from config
	if err != nil {
		return nil, err
	}
	var owner Owner
	if err := json.Unmarshal(data, &owner); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &owner, nil
}

// Break removes a lock regardless of its holder.
func Break(dir, cluster string) error {
	err := os.Remove(Path(dir, cluster))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lock: %w", err)
	}
	return nil
}
