//go:build windows

package playbook

import (
	"os"
)

// File locking constants for Windows (no-op implementation).
// On Windows, cross-process file locking is not supported in this package.
// The mutex provides in-process concurrency safety.
const (
	lockShared    = 0
	lockExclusive = 0
)

// acquireFileLock is a no-op on Windows.
// Cross-process file locking is not supported, but the mutex provides
// in-process concurrency safety which covers most use cases.
func (s *Store) acquireFileLock(lockType int) (*os.File, error) {
	return nil, nil
}

// releaseFileLock is a no-op on Windows.
func (s *Store) releaseFileLock(lockFile *os.File) {
}
