// Package lock provides filesystem-based mutual exclusion for build
// directories shared between cooperating build processes. A lock file
// lives in a process-wide locks directory, named by a hash of the
// resolved target path, so separate processes agree on the file that
// mediates a given resource.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock set cannot be acquired within the
// overall timeout.
var ErrTimeout = errors.New("failed to acquire all locks")

// Handle identifies one lockable filesystem location. Handles are
// deduplicated by resolved path: two in-process handles never represent
// the same location without being the same object.
type Handle struct {
	target string
	file   string

	mu   sync.Mutex
	held bool
}

// Target returns the resolved path the handle guards.
func (h *Handle) Target() string { return h.target }

// tryAcquire attempts to take the lock, polling until the per-attempt
// timeout elapses. The lock is held by the existence of the lock file,
// created exclusively.
func (h *Handle) tryAcquire(timeout time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.held {
		return nil
	}
	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(h.file, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			h.held = true
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file %s: %w", h.file, err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("lock on %s: %w", h.target, ErrTimeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// release frees the lock if held. Releasing an unheld lock is a no-op.
func (h *Handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.held {
		return
	}
	os.Remove(h.file)
	h.held = false
}

// Manager caches lock handles by resolved path and owns the locks
// directory.
type Manager struct {
	dir string

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewManager creates a lock manager rooted at the given locks
// directory.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create locks directory %s: %w", dir, err)
	}
	return &Manager{dir: dir, handles: make(map[string]*Handle)}, nil
}

// Lock returns the handle for a filesystem location, creating it on
// first use. The same resolved path always yields the same handle, so
// intra-process lock ordering is stable.
func (m *Manager) Lock(target string) (*Handle, error) {
	resolved, err := filepath.Abs(filepath.Clean(target))
	if err != nil {
		resolved = target
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if handle, exists := m.handles[resolved]; exists {
		return handle, nil
	}
	sum := sha256.Sum256([]byte(resolved))
	handle := &Handle{
		target: resolved,
		file:   filepath.Join(m.dir, hex.EncodeToString(sum[:])),
	}
	m.handles[resolved] = handle
	return handle, nil
}

// perLockTimeout bounds each individual acquisition attempt so that a
// process holding part of an overlapping lock set releases quickly and
// lets a competitor make progress.
const perLockTimeout = 100 * time.Millisecond

// AcquireAll acquires every handle or none of them. Each attempt takes
// the locks one by one with a short per-lock timeout; if any single
// acquisition fails, every lock taken in that attempt is released and
// the whole set is retried, bounded by the overall timeout. The
// returned release function frees the whole set.
func AcquireAll(handles []*Handle, timeout time.Duration) (func(), error) {
	release := func() {
		for _, h := range handles {
			h.release()
		}
	}
	deadline := time.Now().Add(timeout)
	for {
		acquired := true
		for _, h := range handles {
			if err := h.tryAcquire(perLockTimeout); err != nil {
				if !errors.Is(err, ErrTimeout) {
					release()
					return nil, err
				}
				acquired = false
				break
			}
		}
		if acquired {
			return release, nil
		}
		// Avoid partial-ownership deadlock between processes racing for
		// overlapping lock sets: drop everything before retrying.
		release()
		if time.Now().After(deadline) {
			targets := make([]string, len(handles))
			for i, h := range handles {
				targets[i] = h.Target()
			}
			return nil, fmt.Errorf("locks on [%s]: %w", strings.Join(targets, ", "), ErrTimeout)
		}
	}
}
