package git

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/ledger"
)

func version(id string, day int) core.Version {
	return core.Version{
		ID:          id,
		ReleaseTime: time.Date(2011, time.November, day, 12, 0, 0, 0, time.FixedZone("CET", 3600)),
		Type:        core.VersionRelease,
	}
}

func emptyTree(t *testing.T, s *Store) plumbing.Hash {
	t.Helper()
	h, err := s.BuildTree(nil, nil)
	require.NoError(t, err)
	return h
}

func TestOpen(t *testing.T) {
	t.Run("Missing Without AutoInit", func(t *testing.T) {
		_, err := Open(Config{Path: filepath.Join(t.TempDir(), "none")})
		assert.True(t, errors.Is(err, core.ErrStore), "got %v", err)
	})

	t.Run("AutoInit Points HEAD At Branch", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "repo")
		s, err := Open(Config{Path: dir, AutoInit: true, Branch: "archive"})
		require.NoError(t, err)

		ref, err := s.repo.Storer.Reference(plumbing.HEAD)
		require.NoError(t, err)
		assert.Equal(t, plumbing.SymbolicReference, ref.Type())
		assert.Equal(t, plumbing.NewBranchReferenceName("archive"), ref.Target())
		assert.False(t, s.bare)
		assert.Equal(t, filepath.Join(dir, ".git"), s.gitDir)
	})

	t.Run("Bare", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "repo.git")
		s, err := Open(Config{Path: dir, AutoInit: true, Bare: true})
		require.NoError(t, err)
		assert.True(t, s.bare)
		assert.Equal(t, dir, s.gitDir)
	})

	t.Run("Reopen Existing", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "repo")
		_, err := gogit.PlainInit(dir, false)
		require.NoError(t, err)
		s, err := Open(Config{Path: dir})
		require.NoError(t, err)
		assert.Equal(t, core.DefaultSchema, s.Schema())
	})
}

func TestLookup_Absent(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Lookup("1.0")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCommitAndTag(t *testing.T) {
	s := newTestStore(t)
	tree := emptyTree(t, s)
	v := version("1.0", 18)
	l := ledger.Current(s.Schema())

	h, err := s.CommitAndTag(v, l, tree)
	require.NoError(t, err)

	t.Run("Commit Carries Release Time And Ledger", func(t *testing.T) {
		c, err := s.repo.CommitObject(h)
		require.NoError(t, err)
		assert.True(t, c.Author.When.Equal(v.ReleaseTime))
		assert.True(t, c.Committer.When.Equal(v.ReleaseTime))
		assert.Equal(t, "Test", c.Author.Name)
		assert.Equal(t, "Version 1.0\n\ndecompiled_classes_version = 3\nlibraries_output_version = 1\n", c.Message)
		assert.Equal(t, 0, c.NumParents())
	})

	t.Run("Lookup Round Trips", func(t *testing.T) {
		e, ok, err := s.Lookup("1.0")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, h, e.Commit)
		assert.Equal(t, tree, e.Tree)
		assert.Equal(t, l, e.Ledger)
	})

	t.Run("Tag Is Annotated", func(t *testing.T) {
		ref, err := s.repo.Reference(plumbing.NewTagReferenceName("1.0"), true)
		require.NoError(t, err)
		tag, err := s.repo.TagObject(ref.Hash())
		require.NoError(t, err)
		assert.Equal(t, "1.0", tag.Name)
		assert.Equal(t, h, tag.Target)
	})

	t.Run("Branch Advanced", func(t *testing.T) {
		tip, err := s.Head()
		require.NoError(t, err)
		assert.Equal(t, h, tip)
	})
}

func TestCommitAndTag_IsDeterministic(t *testing.T) {
	build := func() (plumbing.Hash, plumbing.Hash) {
		s := newTestStore(t)
		tree := emptyTree(t, s)
		first, err := s.CommitAndTag(version("1.0", 18), ledger.Current(s.Schema()), tree)
		require.NoError(t, err)
		second, err := s.CommitAndTag(version("1.1", 19), ledger.Current(s.Schema()), tree)
		require.NoError(t, err)
		return first, second
	}

	a1, a2 := build()
	b1, b2 := build()
	assert.Equal(t, a1, b1)
	assert.Equal(t, a2, b2)
}

func TestCommitAndTag_Chain(t *testing.T) {
	s := newTestStore(t)
	tree := emptyTree(t, s)

	ids := []string{"1.0", "1.1", "1.2"}
	var hashes []plumbing.Hash
	for i, id := range ids {
		h, err := s.CommitAndTag(version(id, 18+i), ledger.Current(s.Schema()), tree)
		require.NoError(t, err)
		hashes = append(hashes, h)
	}

	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, c := range history {
		assert.Equal(t, hashes[len(hashes)-1-i], c.Hash)
	}
	assert.Equal(t, hashes[0], history[1].ParentHashes[0])
}

func TestCommitAndTag_MovesExistingTag(t *testing.T) {
	s := newTestStore(t)
	tree := emptyTree(t, s)

	old, err := s.CommitAndTag(version("1.0", 18), ledger.Ledger{"decompiled_classes": 2}, tree)
	require.NoError(t, err)
	require.NoError(t, s.ClearBranch())

	moved, err := s.CommitAndTag(version("1.0", 18), ledger.Current(s.Schema()), tree)
	require.NoError(t, err)
	assert.NotEqual(t, old, moved)

	e, ok, err := s.Lookup("1.0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, moved, e.Commit)
	assert.Equal(t, uint32(3), e.Ledger.Get("decompiled_classes"))
}

func TestCommitAndTag_UnknownTree(t *testing.T) {
	s := newTestStore(t)
	missing := plumbing.NewHash("0123456789012345678901234567890123456789")
	_, err := s.CommitAndTag(version("1.0", 18), ledger.Ledger{}, missing)
	assert.True(t, errors.Is(err, core.ErrStore), "got %v", err)
}

// tagRaw tags a hand-written commit, bypassing CommitAndTag.
func tagRaw(t *testing.T, s *Store, id, message string) {
	t.Helper()
	sig := object.Signature{Name: "someone", Email: "someone@example.com", When: time.Unix(0, 0).UTC()}
	h, err := s.writeObject(&object.Commit{Author: sig, Committer: sig, Message: message, TreeHash: emptyTree(t, s)})
	require.NoError(t, err)
	require.NoError(t, s.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewTagReferenceName(id), h)))
}

func TestLookup_LedgerFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    ledger.Ledger
	}{
		{"No Body", "Version 1.0", ledger.Ledger{}},
		{"Malformed Body", "Version 1.0\n\nthis is = = not toml", ledger.Ledger{}},
		{"Legacy Alias", "Version 1.0\n\noutput_version = 2\n", ledger.Ledger{"decompiled_classes": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			tagRaw(t, s, "1.0", tt.message)

			e, ok, err := s.Lookup("1.0")
			require.NoError(t, err)
			require.True(t, ok, "lightweight tags must resolve too")
			assert.Equal(t, tt.want, e.Ledger)
		})
	}
}

func TestClearBranch(t *testing.T) {
	s := newTestStore(t)
	tree := emptyTree(t, s)
	_, err := s.CommitAndTag(version("1.0", 18), ledger.Current(s.Schema()), tree)
	require.NoError(t, err)

	require.NoError(t, s.ClearBranch())

	tip, err := s.Head()
	require.NoError(t, err)
	assert.True(t, tip.IsZero(), "branch should be unborn")

	_, ok, err := s.Lookup("1.0")
	require.NoError(t, err)
	assert.True(t, ok, "tags survive a cleared branch")

	// Clearing an unborn branch is a no-op.
	require.NoError(t, s.ClearBranch())

	t.Run("Reattaches Detached HEAD", func(t *testing.T) {
		s := newTestStore(t)
		h, err := s.CommitAndTag(version("1.0", 18), ledger.Current(s.Schema()), emptyTree(t, s))
		require.NoError(t, err)
		require.NoError(t, s.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, h)))

		require.NoError(t, s.ClearBranch())
		ref, err := s.repo.Storer.Reference(plumbing.HEAD)
		require.NoError(t, err)
		assert.Equal(t, plumbing.SymbolicReference, ref.Type())
		assert.Equal(t, plumbing.NewBranchReferenceName(DefaultBranch), ref.Target())
	})
}

func TestResetHard(t *testing.T) {
	t.Run("Unborn Is No-op", func(t *testing.T) {
		s := newTestStore(t)
		assert.NoError(t, s.ResetHard())
	})

	t.Run("Bare Is No-op", func(t *testing.T) {
		s, err := Open(Config{Path: filepath.Join(t.TempDir(), "repo.git"), AutoInit: true, Bare: true, AuthorName: "T", AuthorEmail: "t@t"})
		require.NoError(t, err)
		_, err = s.CommitAndTag(version("1.0", 18), ledger.Current(s.Schema()), emptyTree(t, s))
		require.NoError(t, err)
		assert.NoError(t, s.ResetHard())
	})

	t.Run("Checks Out Tip", func(t *testing.T) {
		s := newTestStore(t)
		work := t.TempDir()
		writeFile(t, filepath.Join(work, "libraries.txt"), "libs\n")
		tree, err := s.BuildTree(nil, []Source{{Root: filepath.Join(work, "libraries.txt"), RepoPath: "libraries.txt"}})
		require.NoError(t, err)
		_, err = s.CommitAndTag(version("1.0", 18), ledger.Current(s.Schema()), tree)
		require.NoError(t, err)

		require.NoError(t, s.ResetHard())
		content, err := os.ReadFile(filepath.Join(s.Path, "libraries.txt"))
		require.NoError(t, err)
		assert.Equal(t, "libs\n", string(content))
	})
}

func TestLock(t *testing.T) {
	s := newTestStore(t)

	unlock, err := s.Lock()
	require.NoError(t, err)
	assert.True(t, s.State().(StoreState).Locked)

	other, err := Open(Config{Path: s.Path})
	require.NoError(t, err)
	_, err = other.Lock()
	assert.True(t, errors.Is(err, core.ErrStore), "second lock should fail, got %v", err)

	unlock()
	assert.False(t, s.State().(StoreState).Locked)

	unlock2, err := other.Lock()
	require.NoError(t, err)
	unlock2()
}

func TestState(t *testing.T) {
	s := newTestStore(t)
	state := s.State().(StoreState)
	assert.Equal(t, DefaultBranch, state.Branch)
	assert.Empty(t, state.Head)
	assert.Equal(t, 2, state.Kinds)
	assert.Equal(t, "store", s.ComponentType())

	h, err := s.CommitAndTag(version("1.0", 18), ledger.Current(s.Schema()), emptyTree(t, s))
	require.NoError(t, err)
	assert.Equal(t, h.String(), s.State().(StoreState).Head)
}
