// Package lockfile serializes access to a session across concurrent process
// invocations. A lock is a marker file linked atomically into the session's
// directory with the holder's PID already recorded. Because holders are
// independent short-lived processes, liveness of the recorded PID is the
// only way to tell a held lock from an abandoned one.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const lockName = "session.lock"

// ErrTimeout is returned when the lock stays held for the whole timeout.
var ErrTimeout = errors.New("lock acquisition timeout")

// Manager acquires and releases per-session lock files under a sessions
// root. It is stateless; all lock state lives on the filesystem.
type Manager struct {
	root string

	// pollInterval is how often a blocked acquirer retries.
	pollInterval time.Duration

	// pidAlive reports whether a recorded holder PID denotes a live
	// process. Replaceable in tests to simulate dead holders.
	pidAlive func(pid int32) bool
}

// NewManager creates a lock manager over the given sessions root.
func NewManager(root string) *Manager {
	return &Manager{
		root:         root,
		pollInterval: 100 * time.Millisecond,
		pidAlive:     pidExists,
	}
}

func pidExists(pid int32) bool {
	alive, err := process.PidExists(pid)
	if err != nil {
		// If liveness cannot be determined, assume the holder is alive
		// rather than steal a possibly-valid lock.
		return true
	}
	return alive
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.root, name, lockName)
}

// Acquire takes the session's lock, polling until timeout. A lock whose
// recorded holder is no longer running is reclaimed immediately, without
// waiting out the remainder of the timeout.
func (m *Manager) Acquire(ctx context.Context, name string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := m.tryAcquire(name)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if pid, held := m.Holder(name); held && pid > 0 && !m.pidAlive(int32(pid)) {
			// Abandoned by a dead process: reclaim and retry at once.
			// Between the read and the remove another acquirer may have
			// done the same; the O_EXCL create on the next iteration is
			// what actually decides the race.
			_ = os.Remove(m.path(name))
			continue
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: session %q", ErrTimeout, name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
}

// tryAcquire attempts the atomic create-if-absent. The PID is written to a
// private temp file first and linked into place, so the lock marker either
// does not exist or exists with its holder already recorded; there is no
// window where a crash leaves a marker without a PID. Returns false when the
// lock is already held.
func (m *Manager) tryAcquire(name string) (bool, error) {
	tmp, err := os.CreateTemp(filepath.Join(m.root, name), lockName+".*")
	if err != nil {
		return false, fmt.Errorf("create lock for %q: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false, fmt.Errorf("record lock holder for %q: %w", name, err)
	}

	if err := os.Link(tmp.Name(), m.path(name)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create lock for %q: %w", name, err)
	}
	return true, nil
}

// Release removes the session's lock marker unconditionally. Callers pair it
// with Acquire via defer so every exit path releases exactly once; releasing
// an already-absent lock is a no-op.
func (m *Manager) Release(name string) {
	_ = os.Remove(m.path(name))
}

// Holder returns the recorded holder PID, if the lock is currently held.
func (m *Manager) Holder(name string) (pid int, held bool) {
	data, err := os.ReadFile(m.path(name))
	if err != nil {
		return 0, false
	}
	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		// Markers are linked into place with the PID already written, so an
		// unreadable PID means external tampering or corruption. Report held
		// rather than invite a steal.
		return 0, true
	}
	return pid, true
}

// Locked reports whether the session currently has a lock marker.
func (m *Manager) Locked(name string) bool {
	_, held := m.Holder(name)
	return held
}
