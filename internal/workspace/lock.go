package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// TableLock serializes writers to one on-disk table (the memory store,
// the relationship graph, a vector index, the lexical index) within a
// workspace. Readers are not coordinated through TableLock; each store
// is responsible for safe concurrent reads during a write.
type TableLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewTableLock returns a lock for the named table within a workspace
// root. The lock file itself lives at <root>/.<table>.lock.
func NewTableLock(root, table string) *TableLock {
	path := filepath.Join(root, fmt.Sprintf(".%s.lock", table))
	return &TableLock{path: path, flock: flock.New(path)}
}

// Lock blocks until the exclusive lock is acquired.
func (l *TableLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *TableLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call multiple times.
func (l *TableLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	l.locked = false
	return nil
}
