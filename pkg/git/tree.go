package git

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/aretw0/strata/pkg/core"
)

// TreeBase is the previous tree of a version minus the paths being regenerated.
type TreeBase struct {
	Tree plumbing.Hash
	// Exclude lists repository paths dropped from the base. Each one removes
	// the path itself and everything below it.
	Exclude []string
	// Keep, when non-nil, restricts the base to entries equal to or below
	// one of its paths. Everything else is dropped.
	Keep []string
}

// Source maps a file or directory on disk to a repository path.
type Source struct {
	Root     string
	RepoPath string
}

type indexEntry struct {
	hash plumbing.Hash
	mode filemode.FileMode
}

// stagingIndex maps slash-separated repository paths to blobs.
type stagingIndex map[string]indexEntry

// BuildTree writes a new tree: the base tree without its excluded paths,
// plus every regular file of the sources. Reused entries keep their object
// ids untouched; new files are hashed straight from disk. The returned hash
// identifies the root tree.
func (s *Store) BuildTree(base *TreeBase, sources []Source) (plumbing.Hash, error) {
	index := make(stagingIndex)

	if base != nil {
		if err := s.loadBase(index, base); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	for _, src := range sources {
		if err := s.addSource(index, src); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	return s.writeIndex(index)
}

// prefixSet matches repository paths equal to or below any of its entries.
type prefixSet []string

func newPrefixSet(paths []string) prefixSet {
	set := make(prefixSet, 0, len(paths))
	for _, p := range paths {
		set = append(set, path.Clean(p))
	}
	return set
}

func (ps prefixSet) match(p string) bool {
	for _, prefix := range ps {
		if core.PathWithin(p, prefix) {
			return true
		}
	}
	return false
}

// contains reports whether some entry of the set lies below directory p.
func (ps prefixSet) contains(p string) bool {
	for _, prefix := range ps {
		if core.PathWithin(prefix, p) {
			return true
		}
	}
	return false
}

func (s *Store) loadBase(index stagingIndex, base *TreeBase) error {
	tree, err := s.repo.TreeObject(base.Tree)
	if err != nil {
		return &core.Error{Kind: core.ErrTreeBuild, Op: "load base tree", Path: base.Tree.String(), Err: err}
	}
	var keep prefixSet
	if base.Keep != nil {
		keep = newPrefixSet(base.Keep)
	}
	return s.loadTree(index, tree, "", newPrefixSet(base.Exclude), keep)
}

// loadTree copies tree entries into the index. Excluded subtrees, and with
// a keep set the subtrees outside it, are pruned without being read.
func (s *Store) loadTree(index stagingIndex, tree *object.Tree, prefix string, excluded, keep prefixSet) error {
	for _, e := range tree.Entries {
		p := path.Join(prefix, e.Name)
		if excluded.match(p) {
			continue
		}
		if keep != nil && !keep.match(p) && !(e.Mode == filemode.Dir && keep.contains(p)) {
			continue
		}
		if e.Mode == filemode.Dir {
			sub, err := s.repo.TreeObject(e.Hash)
			if err != nil {
				return &core.Error{Kind: core.ErrTreeBuild, Op: "load base tree", Path: p, Err: err}
			}
			if err := s.loadTree(index, sub, p, excluded, keep); err != nil {
				return err
			}
			continue
		}
		index[p] = indexEntry{hash: e.Hash, mode: e.Mode}
	}
	return nil
}

func cleanRepoPath(p string) (string, error) {
	clean := path.Clean(filepath.ToSlash(p))
	if p == "" || clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid repository path %q", p)
	}
	return clean, nil
}

func unsupportedType(p string, mode fs.FileMode) error {
	return &core.Error{
		Kind: core.ErrTreeBuild,
		Op:   "add source",
		Path: p,
		Err:  fmt.Errorf("unsupported file type %s, only regular files can be archived", mode.Type()),
	}
}

func (s *Store) addSource(index stagingIndex, src Source) error {
	repoRoot, err := cleanRepoPath(src.RepoPath)
	if err != nil {
		return &core.Error{Kind: core.ErrTreeBuild, Op: "add source", Path: src.Root, Err: err}
	}

	info, err := os.Lstat(src.Root)
	if err != nil {
		return &core.Error{Kind: core.ErrTreeBuild, Op: "add source", Path: src.Root, Err: err}
	}

	switch {
	case info.Mode().IsRegular():
		return s.addFile(index, src.Root, repoRoot, info)
	case info.IsDir():
		// Directories carry no representation of their own: only files are added.
		return filepath.WalkDir(src.Root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return &core.Error{Kind: core.ErrTreeBuild, Op: "walk source", Path: p, Err: err}
			}
			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() {
				return unsupportedType(p, d.Type())
			}
			fi, err := d.Info()
			if err != nil {
				return &core.Error{Kind: core.ErrTreeBuild, Op: "walk source", Path: p, Err: err}
			}
			rel, err := filepath.Rel(src.Root, p)
			if err != nil {
				return &core.Error{Kind: core.ErrTreeBuild, Op: "walk source", Path: p, Err: err}
			}
			return s.addFile(index, p, path.Join(repoRoot, filepath.ToSlash(rel)), fi)
		})
	default:
		return unsupportedType(src.Root, info.Mode())
	}
}

// addFile streams a file into the object database as a blob and stages it.
func (s *Store) addFile(index stagingIndex, fsPath, repoPath string, info fs.FileInfo) error {
	mode, err := filemode.NewFromOSFileMode(info.Mode())
	if err != nil {
		return &core.Error{Kind: core.ErrTreeBuild, Op: "add file", Path: fsPath, Err: err}
	}

	f, err := os.Open(fsPath)
	if err != nil {
		return &core.Error{Kind: core.ErrTreeBuild, Op: "add file", Path: fsPath, Err: err}
	}
	defer f.Close()

	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(info.Size())

	w, err := obj.Writer()
	if err != nil {
		return &core.Error{Kind: core.ErrTreeBuild, Op: "add file", Path: fsPath, Err: err}
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return &core.Error{Kind: core.ErrTreeBuild, Op: "add file", Path: fsPath, Err: err}
	}
	if err := w.Close(); err != nil {
		return &core.Error{Kind: core.ErrTreeBuild, Op: "add file", Path: fsPath, Err: err}
	}

	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return &core.Error{Kind: core.ErrStore, Op: "write blob", Path: fsPath, Err: err}
	}

	index[repoPath] = indexEntry{hash: h, mode: mode}
	return nil
}

// treeNode is one directory of the staging index while it is serialized.
type treeNode struct {
	files map[string]indexEntry
	dirs  map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{
		files: make(map[string]indexEntry),
		dirs:  make(map[string]*treeNode),
	}
}

func conflict(p string) error {
	return &core.Error{Kind: core.ErrTreeBuild, Op: "write tree", Path: p, Err: fmt.Errorf("path is both a file and a directory")}
}

// writeIndex groups the flat index into directories and writes them
// bottom-up, returning the root tree.
func (s *Store) writeIndex(index stagingIndex) (plumbing.Hash, error) {
	root := newTreeNode()

	for p, e := range index {
		parts := strings.Split(p, "/")
		n := root
		for i, dir := range parts[:len(parts)-1] {
			if _, clash := n.files[dir]; clash {
				return plumbing.ZeroHash, conflict(strings.Join(parts[:i+1], "/"))
			}
			child, ok := n.dirs[dir]
			if !ok {
				child = newTreeNode()
				n.dirs[dir] = child
			}
			n = child
		}
		leaf := parts[len(parts)-1]
		if _, clash := n.dirs[leaf]; clash {
			return plumbing.ZeroHash, conflict(p)
		}
		n.files[leaf] = e
	}

	return s.writeNode(root)
}

func (s *Store) writeNode(n *treeNode) (plumbing.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(n.files)+len(n.dirs))
	for name, e := range n.files {
		entries = append(entries, object.TreeEntry{Name: name, Mode: e.mode, Hash: e.hash})
	}
	for name, child := range n.dirs {
		h, err := s.writeNode(child)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}

	// git orders entries as if directory names ended with a slash.
	sort.Slice(entries, func(i, j int) bool {
		return entrySortKey(entries[i]) < entrySortKey(entries[j])
	})

	h, err := s.writeObject(&object.Tree{Entries: entries})
	if err != nil {
		return plumbing.ZeroHash, &core.Error{Kind: core.ErrStore, Op: "write tree", Err: err}
	}
	return h, nil
}

func entrySortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}
