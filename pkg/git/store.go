// Package git persists the archive in a git object database.
//
// It writes blobs, trees, commits and annotated tags directly through
// go-git; nothing is ever staged through a working-tree checkout. Tags named
// after version ids are the durable per-version index, the branch is a
// linear chain rebuilt from them on every run.
package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/ledger"
)

const (
	// DefaultBranch is the branch the chain is built on when none is configured.
	DefaultBranch = "main"

	defaultAuthorName  = "strata"
	defaultAuthorEmail = "strata@localhost"

	lockFileName = "strata.lock"
)

// Config holds the configuration for the git store.
type Config struct {
	Path        string
	AutoInit    bool   // create and init the repository if missing
	Bare        bool   // init as a bare repository (only used with AutoInit)
	Branch      string // branch to rebuild, e.g. "main"
	AuthorName  string // falls back to git config user.name, then "strata"
	AuthorEmail string // falls back to git config user.email
	Schema      *core.Schema
	Logger      *slog.Logger
}

// Entry is what the archive holds for one version: the commit its tag
// points at, that commit's tree and the ledger stored in its message.
type Entry struct {
	Commit plumbing.Hash
	Tree   plumbing.Hash
	Ledger ledger.Ledger
}

// Store implements the archive's object and ref operations on a git repository.
type Store struct {
	Path   string
	repo   *gogit.Repository
	config Config
	gitDir string
	bare   bool
	dotgit billy.Filesystem // git directory, for atomic ref writes

	mu     sync.Mutex
	locked bool
}

// Open opens the repository at cfg.Path, initialising it when AutoInit is set.
func Open(cfg Config) (*Store, error) {
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.Schema == nil {
		cfg.Schema = core.DefaultSchema
	}

	repo, err := gogit.PlainOpen(cfg.Path)
	if errors.Is(err, gogit.ErrRepositoryNotExists) && cfg.AutoInit {
		repo, err = initRepository(cfg)
	}
	if err != nil {
		return nil, &core.Error{Kind: core.ErrStore, Op: "open repository", Path: cfg.Path, Err: err}
	}

	s := &Store{
		Path:   cfg.Path,
		repo:   repo,
		config: cfg,
		gitDir: filepath.Join(cfg.Path, gogit.GitDirName),
	}
	if _, err := repo.Worktree(); errors.Is(err, gogit.ErrIsBareRepository) {
		s.bare = true
		s.gitDir = cfg.Path
	}
	if fsStorage, ok := repo.Storer.(*filesystem.Storage); ok {
		s.dotgit = fsStorage.Filesystem()
	}
	return s, nil
}

func initRepository(cfg Config) (*gogit.Repository, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}
	repo, err := gogit.PlainInit(cfg.Path, cfg.Bare)
	if err != nil {
		return nil, fmt.Errorf("failed to init repository: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(cfg.Branch))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("failed to point HEAD at %s: %w", cfg.Branch, err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("initialized repository", "path", cfg.Path, "bare", cfg.Bare, "branch", cfg.Branch)
	}
	return repo, nil
}

// Schema returns the artifact table the store reads and writes ledgers with.
func (s *Store) Schema() *core.Schema {
	return s.config.Schema
}

func tagReference(versionID string) plumbing.ReferenceName {
	return plumbing.NewTagReferenceName(versionID)
}

// Lookup resolves the tag of a version to its commit, tree and ledger.
// The boolean is false when the version was never archived.
func (s *Store) Lookup(versionID string) (Entry, bool, error) {
	ref, err := s.repo.Reference(tagReference(versionID), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, &core.Error{Kind: core.ErrStore, Op: "resolve tag", Version: versionID, Err: err}
	}

	commit, err := s.peelToCommit(ref.Hash())
	if err != nil {
		return Entry{}, false, &core.Error{Kind: core.ErrStore, Op: "peel tag", Version: versionID, Err: err}
	}

	return Entry{
		Commit: commit.Hash,
		Tree:   commit.TreeHash,
		Ledger: s.parseLedger(versionID, commit.Message),
	}, true, nil
}

func (s *Store) peelToCommit(h plumbing.Hash) (*object.Commit, error) {
	// Tags of tags are legal in git; follow a bounded chain.
	for i := 0; i < 8; i++ {
		obj, err := s.repo.Object(plumbing.AnyObject, h)
		if err != nil {
			return nil, err
		}
		switch o := obj.(type) {
		case *object.Commit:
			return o, nil
		case *object.Tag:
			h = o.Target
		default:
			return nil, fmt.Errorf("tag points at a %s, not a commit", obj.Type())
		}
	}
	return nil, fmt.Errorf("tag chain starting at %s is too deep", h)
}

// parseLedger reads the ledger from a commit message. Entries created before
// a kind existed, or by hand, simply read as all-zero.
func (s *Store) parseLedger(versionID, message string) ledger.Ledger {
	_, body, ok := SplitMessage(message)
	if !ok {
		return ledger.Ledger{}
	}
	l, err := ledger.Unmarshal(s.config.Schema, body)
	if err != nil {
		if s.config.Logger != nil {
			s.config.Logger.Warn("unreadable ledger, treating version as never built", "version", versionID, "error", err)
		}
		return ledger.Ledger{}
	}
	return l
}

// CommitAndTag appends a commit for v on top of the branch and force-moves
// the tag named v.ID onto it. Author and committer time are the version's
// release time, so replaying the same inputs reproduces the same ids.
func (s *Store) CommitAndTag(v core.Version, l ledger.Ledger, tree plumbing.Hash) (plumbing.Hash, error) {
	if _, err := s.repo.TreeObject(tree); err != nil {
		return plumbing.ZeroHash, &core.Error{Kind: core.ErrStore, Op: "commit", Version: v.ID, Err: fmt.Errorf("tree %s: %w", tree, err)}
	}

	body, err := ledger.Marshal(s.config.Schema, l)
	if err != nil {
		return plumbing.ZeroHash, &core.Error{Kind: core.ErrStore, Op: "commit", Version: v.ID, Err: err}
	}

	headName, parent, err := s.head()
	if err != nil {
		return plumbing.ZeroHash, &core.Error{Kind: core.ErrStore, Op: "commit", Version: v.ID, Err: err}
	}

	sig := s.signature(v.ReleaseTime)
	commit := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   FormatMessage(v.ID, body),
		TreeHash:  tree,
	}
	if !parent.IsZero() {
		commit.ParentHashes = []plumbing.Hash{parent}
	}

	commitHash, err := s.writeObject(commit)
	if err != nil {
		return plumbing.ZeroHash, &core.Error{Kind: core.ErrStore, Op: "commit", Version: v.ID, Err: err}
	}
	if err := s.writeRef(headName, commitHash); err != nil {
		return plumbing.ZeroHash, &core.Error{Kind: core.ErrStore, Op: "advance branch", Version: v.ID, Err: err}
	}

	tag := &object.Tag{
		Name:       v.ID,
		Tagger:     sig,
		Message:    v.ID + "\n",
		TargetType: plumbing.CommitObject,
		Target:     commitHash,
	}
	tagHash, err := s.writeObject(tag)
	if err != nil {
		return plumbing.ZeroHash, &core.Error{Kind: core.ErrStore, Op: "tag", Version: v.ID, Err: err}
	}
	// Renamed into place: a failed update leaves the previous tag readable.
	if err := s.writeRef(tagReference(v.ID), tagHash); err != nil {
		return plumbing.ZeroHash, &core.Error{Kind: core.ErrStore, Op: "tag", Version: v.ID, Err: err}
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug("committed", "version", v.ID, "commit", commitHash.String(), "tree", tree.String(), "parent", parent.String())
	}
	return commitHash, nil
}

type encodable interface {
	Encode(plumbing.EncodedObject) error
}

func (s *Store) writeObject(e encodable) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	if err := e.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode object: %w", err)
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store object: %w", err)
	}
	return h, nil
}

// head returns the reference a new commit advances (the branch HEAD points
// at, or HEAD itself when detached) and its current target. The hash is
// zero on an unborn branch.
func (s *Store) head() (plumbing.ReferenceName, plumbing.Hash, error) {
	ref, err := s.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", plumbing.ZeroHash, fmt.Errorf("failed to read HEAD: %w", err)
	}
	if ref.Type() == plumbing.HashReference {
		return plumbing.HEAD, ref.Hash(), nil
	}

	target := ref.Target()
	tip, err := s.repo.Storer.Reference(target)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return target, plumbing.ZeroHash, nil
	}
	if err != nil {
		return "", plumbing.ZeroHash, fmt.Errorf("failed to read %s: %w", target, err)
	}
	return target, tip.Hash(), nil
}

// Head returns the commit the branch currently points at, zero if unborn.
func (s *Store) Head() (plumbing.Hash, error) {
	_, h, err := s.head()
	if err != nil {
		return plumbing.ZeroHash, &core.Error{Kind: core.ErrStore, Op: "read head", Err: err}
	}
	return h, nil
}

func (s *Store) signature(when time.Time) object.Signature {
	name, email := s.config.AuthorName, s.config.AuthorEmail
	if name == "" || email == "" {
		if cfg, err := s.repo.ConfigScoped(gitconfig.GlobalScope); err == nil {
			if name == "" {
				name = cfg.User.Name
			}
			if email == "" {
				email = cfg.User.Email
			}
		}
	}
	if name == "" {
		name = defaultAuthorName
	}
	if email == "" {
		email = defaultAuthorEmail
	}
	return object.Signature{Name: name, Email: email, When: when.UTC()}
}

// ClearBranch deletes the branch HEAD is attached to and leaves HEAD
// pointing at the now unborn branch, so the next commit starts a fresh
// chain. Tags are untouched; they are how the previous chain is found again.
func (s *Store) ClearBranch() error {
	ref, err := s.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return &core.Error{Kind: core.ErrStore, Op: "clear branch", Err: fmt.Errorf("failed to read HEAD: %w", err)}
	}

	branch := plumbing.NewBranchReferenceName(s.config.Branch)
	if ref.Type() == plumbing.SymbolicReference {
		branch = ref.Target()
	}

	_, err = s.repo.Storer.Reference(branch)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Already unborn.
	case err != nil:
		return &core.Error{Kind: core.ErrStore, Op: "clear branch", Err: err}
	default:
		if err := s.repo.Storer.RemoveReference(branch); err != nil {
			return &core.Error{Kind: core.ErrStore, Op: "clear branch", Err: fmt.Errorf("cannot delete %s: %w", branch, err)}
		}
	}

	if ref.Type() != plumbing.SymbolicReference || ref.Target() != branch {
		if err := s.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch)); err != nil {
			return &core.Error{Kind: core.ErrStore, Op: "clear branch", Err: fmt.Errorf("cannot attach HEAD to %s: %w", branch, err)}
		}
	}

	if s.config.Logger != nil {
		s.config.Logger.Debug("cleared branch", "branch", branch.Short())
	}
	return nil
}

// ResetHard makes the index and working tree match the branch tip.
// Bare repositories have neither, and an unborn branch has nothing to match.
func (s *Store) ResetHard() error {
	_, tip, err := s.head()
	if err != nil {
		return &core.Error{Kind: core.ErrStore, Op: "reset", Err: err}
	}
	if tip.IsZero() {
		if s.config.Logger != nil {
			s.config.Logger.Debug("nothing to reset, branch is unborn")
		}
		return nil
	}
	if s.bare {
		return nil
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return &core.Error{Kind: core.ErrStore, Op: "reset", Err: err}
	}
	if err := wt.Reset(&gogit.ResetOptions{Commit: tip, Mode: gogit.HardReset}); err != nil {
		return &core.Error{Kind: core.ErrStore, Op: "reset", Err: err}
	}
	return nil
}

// History returns the first-parent chain from the branch tip, newest first.
func (s *Store) History() ([]*object.Commit, error) {
	_, tip, err := s.head()
	if err != nil {
		return nil, &core.Error{Kind: core.ErrStore, Op: "history", Err: err}
	}

	var out []*object.Commit
	for h := tip; !h.IsZero(); {
		c, err := s.repo.CommitObject(h)
		if err != nil {
			return nil, &core.Error{Kind: core.ErrStore, Op: "history", Err: err}
		}
		out = append(out, c)
		if c.NumParents() == 0 {
			break
		}
		h = c.ParentHashes[0]
	}
	return out, nil
}
