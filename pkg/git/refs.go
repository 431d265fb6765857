package git

import (
	"fmt"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const refTempPrefix = "strata-ref-"

type syncer interface {
	Sync() error
}

// writeRef points name at h. The loose ref file is written under a
// temporary name in the git directory and renamed over the ref, so readers
// see either the previous target or the new one, never a truncated file.
// A loose ref shadows any packed entry of the same name.
func (s *Store) writeRef(name plumbing.ReferenceName, h plumbing.Hash) error {
	if s.dotgit == nil {
		return s.repo.Storer.SetReference(plumbing.NewHashReference(name, h))
	}
	fs := s.dotgit
	target := fs.Join(strings.Split(name.String(), "/")...)

	if dir := parentDir(fs, name); dir != "" {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	tmp, err := fs.TempFile("", refTempPrefix)
	if err != nil {
		return fmt.Errorf("failed to create temp ref for %s: %w", name, err)
	}
	_, err = tmp.Write([]byte(h.String() + "\n"))
	if sf, ok := tmp.(syncer); ok && err == nil {
		err = sf.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fs.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := fs.Rename(tmp.Name(), target); err != nil {
		fs.Remove(tmp.Name())
		return fmt.Errorf("failed to update %s: %w", name, err)
	}
	return nil
}

func parentDir(fs billy.Filesystem, name plumbing.ReferenceName) string {
	parts := strings.Split(name.String(), "/")
	if len(parts) < 2 {
		return ""
	}
	return fs.Join(parts[:len(parts)-1]...)
}
