// Package lock provides per-resource advisory exclusive locks backed by
// lock files on disk. Mutual exclusion works across independent process
// invocations; there is no shared in-memory coordinator.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrTimeout is returned when a lock cannot be acquired before the
// configured deadline.
var ErrTimeout = errors.New("lock acquisition timed out")

// Info is the JSON payload stored in a lock file. It identifies the holder
// so stale locks left by dead processes can be broken.
type Info struct {
	PID        int    `json:"pid"`
	AcquiredAt string `json:"acquired_at"` // UTC RFC3339
	ExpiresAt  string `json:"expires_at"`  // UTC RFC3339
	Hostname   string `json:"hostname"`
}

// Manager acquires and releases advisory locks. Locks are keyed by resource
// path; distinct resources never contend. Re-entrant acquisition of the same
// resource is unsupported.
type Manager struct {
	Timeout time.Duration // how long Acquire blocks before ErrTimeout
	TTL     time.Duration // how long a held lock stays valid
	Poll    time.Duration // retry interval while contending
}

const (
	DefaultTimeout = 30 * time.Second
	DefaultTTL     = 10 * time.Minute
	defaultPoll    = 50 * time.Millisecond
)

// NewManager returns a Manager with the given acquisition timeout and lock
// TTL. Zero values fall back to defaults.
func NewManager(timeout, ttl time.Duration) *Manager {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Manager{Timeout: timeout, TTL: ttl, Poll: defaultPoll}
}

// Acquire blocks up to the configured timeout for an exclusive lock on
// resource, returning a release function. Returns ErrTimeout when the lock
// stays contended past the deadline, or a wrapped I/O error on fault.
func (m *Manager) Acquire(resource string) (func() error, error) {
	lockPath := lockPathFor(resource)
	deadline := time.Now().Add(m.Timeout)

	poll := m.Poll
	if poll == 0 {
		poll = defaultPoll
	}

	for {
		acquired, err := m.tryAcquire(lockPath)
		if err != nil {
			return nil, err
		}
		if acquired {
			return func() error { return m.Release(resource) }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("resource %s: %w", resource, ErrTimeout)
		}
		time.Sleep(poll)
	}
}

// Release removes the lock file for resource. Releasing an unheld lock is
// a no-op.
func (m *Manager) Release(resource string) error {
	err := os.Remove(lockPathFor(resource))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// WithLock runs body while holding the lock for resource, guaranteeing
// release on every exit path and propagating body's error.
func (m *Manager) WithLock(resource string, body func() error) error {
	release, err := m.Acquire(resource)
	if err != nil {
		return err
	}
	defer release()
	return body()
}

// tryAcquire performs one O_EXCL creation attempt, breaking stale locks
// first. Returns (false, nil) on contention so the caller can retry.
func (m *Manager) tryAcquire(lockPath string) (bool, error) {
	if existing, err := readLockFile(lockPath); err == nil {
		if !isStale(existing) {
			return false, nil
		}
		// Holder is dead or expired; remove so O_EXCL can succeed.
		os.Remove(lockPath)
	}

	now := time.Now().UTC()
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	info := Info{
		PID:        os.Getpid(),
		AcquiredAt: now.Format(time.RFC3339),
		ExpiresAt:  now.Add(m.TTL).Format(time.RFC3339),
		Hostname:   hostname,
	}
	data, err := json.Marshal(info)
	if err != nil {
		return false, fmt.Errorf("failed to serialize lock info: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return false, fmt.Errorf("failed to create lock dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			// Someone else got there first.
			return false, nil
		}
		return false, fmt.Errorf("failed to create lock file: %w", err)
	}

	_, writeErr := f.Write(data)
	closeErr := f.Close()

	if writeErr != nil {
		os.Remove(lockPath)
		return false, fmt.Errorf("failed to write lock data: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(lockPath)
		return false, fmt.Errorf("failed to close lock file: %w", closeErr)
	}

	return true, nil
}

// Holder returns the current lock holder for resource, or an error if the
// lock file is absent or unreadable. Intended for diagnostics.
func Holder(resource string) (*Info, error) {
	return readLockFile(lockPathFor(resource))
}

func lockPathFor(resource string) string {
	return resource + ".lock"
}

func readLockFile(lockPath string) (*Info, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// isStale reports whether the lock can be safely broken: its holder process
// is gone or its TTL has elapsed.
func isStale(info *Info) bool {
	expires, err := time.Parse(time.RFC3339, info.ExpiresAt)
	if err != nil {
		// Unparseable expiry means a corrupt lock file; treat as stale.
		return true
	}
	if !isProcessRunning(info.PID) {
		return true
	}
	return time.Now().UTC().After(expires)
}
