package lockfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestManager(t *testing.T, name string) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
		t.Fatalf("mkdir session dir: %v", err)
	}
	m := NewManager(root)
	m.pollInterval = 5 * time.Millisecond
	return m, root
}

func TestAcquireRelease(t *testing.T) {
	m, _ := newTestManager(t, "s1")
	ctx := context.Background()

	if err := m.Acquire(ctx, "s1", time.Second); err != nil {
		t.Fatalf("Acquire returned unexpected error: %v", err)
	}
	if !m.Locked("s1") {
		t.Error("session must be locked after Acquire")
	}

	pid, held := m.Holder("s1")
	if !held {
		t.Fatal("Holder must report a held lock")
	}
	if pid != os.Getpid() {
		t.Errorf("holder pid = %d, want %d", pid, os.Getpid())
	}

	m.Release("s1")
	if m.Locked("s1") {
		t.Error("session must be unlocked after Release")
	}
	// Double release is a no-op.
	m.Release("s1")
}

func TestAcquireContendedTimesOut(t *testing.T) {
	m, _ := newTestManager(t, "s1")
	ctx := context.Background()

	if err := m.Acquire(ctx, "s1", time.Second); err != nil {
		t.Fatalf("Acquire returned unexpected error: %v", err)
	}
	defer m.Release("s1")

	start := time.Now()
	err := m.Acquire(ctx, "s1", 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("contended Acquire error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Acquire returned after %v, before the timeout elapsed", elapsed)
	}
}

func TestStaleLockReclaimedImmediately(t *testing.T) {
	m, root := newTestManager(t, "s1")
	m.pidAlive = func(pid int32) bool { return false }

	// A lock left behind by a process that no longer exists.
	lockPath := filepath.Join(root, "s1", lockName)
	if err := os.WriteFile(lockPath, []byte("999999\n"), 0o644); err != nil {
		t.Fatalf("write stale lock: %v", err)
	}

	start := time.Now()
	if err := m.Acquire(context.Background(), "s1", 10*time.Second); err != nil {
		t.Fatalf("Acquire returned unexpected error: %v", err)
	}
	// Reclaim must not wait out the timeout or even one poll interval.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stale lock reclaim took %v, want immediate", elapsed)
	}

	pid, held := m.Holder("s1")
	if !held || pid != os.Getpid() {
		t.Errorf("holder = (%d, %v), want our own pid", pid, held)
	}
}

func TestLiveHolderNotStolen(t *testing.T) {
	m, root := newTestManager(t, "s1")
	m.pidAlive = func(pid int32) bool { return true }

	lockPath := filepath.Join(root, "s1", lockName)
	if err := os.WriteFile(lockPath, []byte("12345\n"), 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	err := m.Acquire(context.Background(), "s1", 30*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Acquire error = %v, want ErrTimeout", err)
	}

	pid, held := m.Holder("s1")
	if !held || pid != 12345 {
		t.Errorf("holder = (%d, %v), want (12345, true) untouched", pid, held)
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	m, _ := newTestManager(t, "s1")
	if err := m.Acquire(context.Background(), "s1", time.Second); err != nil {
		t.Fatalf("Acquire returned unexpected error: %v", err)
	}
	defer m.Release("s1")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := m.Acquire(ctx, "s1", time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire error = %v, want context.Canceled", err)
	}
}

func TestLockMarkerAlwaysCarriesPID(t *testing.T) {
	m, _ := newTestManager(t, "s1")

	// The marker must never be observable without its holder recorded, even
	// while acquire/release churns: an observer that saw a PID-less marker
	// for a crashed holder could never reclaim it.
	stop := make(chan struct{})
	var observed sync.WaitGroup
	observed.Add(1)
	go func() {
		defer observed.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if pid, held := m.Holder("s1"); held && pid == 0 {
				t.Error("observed a held lock with no recorded PID")
				return
			}
		}
	}()

	ctx := context.Background()
	for range 50 {
		if err := m.Acquire(ctx, "s1", time.Second); err != nil {
			t.Fatalf("Acquire returned unexpected error: %v", err)
		}
		m.Release("s1")
	}
	close(stop)
	observed.Wait()
}

func TestAcquireLeavesNoResidue(t *testing.T) {
	m, root := newTestManager(t, "s1")
	ctx := context.Background()

	for range 10 {
		if err := m.Acquire(ctx, "s1", time.Second); err != nil {
			t.Fatalf("Acquire returned unexpected error: %v", err)
		}
		m.Release("s1")
	}

	entries, err := os.ReadDir(filepath.Join(root, "s1"))
	if err != nil {
		t.Fatalf("read session dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("unexpected file left in session dir: %s", e.Name())
	}
}

func TestConcurrentAcquireExcludes(t *testing.T) {
	m, _ := newTestManager(t, "s1")
	ctx := context.Background()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
		held    int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Acquire(ctx, "s1", 5*time.Second); err != nil {
				t.Errorf("Acquire returned unexpected error: %v", err)
				return
			}
			mu.Lock()
			inside++
			held++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			m.Release("s1")
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("critical section held by %d goroutines at once, want 1", maxSeen)
	}
	if held != workers {
		t.Errorf("%d of %d workers acquired the lock", held, workers)
	}
}
