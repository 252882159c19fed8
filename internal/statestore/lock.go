package statestore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"crmsync_backend/platform/apperr"
)

// RunLock guards a sync run against concurrent execution of the same scope.
// Tenants that write to the same pipeline share a lock scope and therefore
// never run in parallel; unrelated tenants do not block each other.
type RunLock struct {
	fl *flock.Flock
}

// AcquireRunLock takes the lock for the given scope without blocking. A
// scope already held by another process returns apperr.LockBusy, which
// callers treat as a benign "already running" exit rather than a failure.
func AcquireRunLock(stateDir, scope string) (*RunLock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	path := filepath.Join(stateDir, fmt.Sprintf("sync_%s.lock", scope))
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", path, err)
	}
	if !locked {
		return nil, apperr.LockBusy(fmt.Sprintf("sync for scope %q is already running", scope))
	}
	return &RunLock{fl: fl}, nil
}

// Release drops the lock. Safe to call on a nil receiver.
func (l *RunLock) Release() {
	if l == nil || l.fl == nil {
		return
	}
	l.fl.Unlock()
}
