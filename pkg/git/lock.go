package git

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/strata/pkg/core"
)

// Lock takes the store's single-writer lock, a file created atomically
// inside the git directory. It does not wait: a second run against the same
// repository fails instead of interleaving commits with the first.
// The returned function releases the lock.
func (s *Store) Lock() (func(), error) {
	lockPath := filepath.Join(s.gitDir, lockFileName)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, &core.Error{
				Kind: core.ErrStore,
				Op:   "lock",
				Path: lockPath,
				Err:  fmt.Errorf("another run holds the repository (remove the file if that run is gone)"),
			}
		}
		return nil, &core.Error{Kind: core.ErrStore, Op: "lock", Path: lockPath, Err: err}
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()

	return func() {
		os.Remove(lockPath)
		s.mu.Lock()
		s.locked = false
		s.mu.Unlock()
	}, nil
}
