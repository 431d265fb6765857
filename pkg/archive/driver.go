// Package archive drives an incremental rebuild of the version archive.
//
// A run replays every version in release order onto a freshly cleared
// branch. Versions whose ledger is current are re-parented onto the new
// chain with their tree untouched; the others get only their stale kinds
// regenerated by the producer and merged into the previous tree.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/git"
	"github.com/aretw0/strata/pkg/ledger"
)

// Store is the subset of the git store a run needs.
type Store interface {
	Lock() (func(), error)
	Lookup(versionID string) (git.Entry, bool, error)
	ClearBranch() error
	BuildTree(base *git.TreeBase, sources []git.Source) (plumbing.Hash, error)
	CommitAndTag(v core.Version, l ledger.Ledger, tree plumbing.Hash) (plumbing.Hash, error)
	ResetHard() error
	Head() (plumbing.Hash, error)
}

type schemaProvider interface {
	Schema() *core.Schema
}

// Driver runs the per-version state machine over a store. Runs are strictly
// sequential; a Driver refuses to start a second run while one is active.
type Driver struct {
	store    Store
	producer core.Producer
	source   core.VersionSource
	schema   *core.Schema
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	current string
	last    *Report
}

// New creates a Driver. WithStore is mandatory.
func New(opts ...Option) (*Driver, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		return nil, core.NewError(core.ErrConfig, "new driver", fmt.Errorf("no store configured"))
	}

	schema := o.schema
	if schema == nil {
		if sp, ok := o.store.(schemaProvider); ok {
			schema = sp.Schema()
		} else {
			schema = core.DefaultSchema
		}
	}

	return &Driver{
		store:    o.store,
		producer: o.producer,
		source:   o.source,
		schema:   schema,
		logger:   o.logger,
	}, nil
}

// Schema returns the artifact table staleness is decided against.
func (d *Driver) Schema() *core.Schema {
	return d.schema
}

// RunFromSource lists the versions of the configured source and runs them.
func (d *Driver) RunFromSource(ctx context.Context) (*Report, error) {
	versions, err := d.listVersions(ctx)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx, versions)
}

func (d *Driver) listVersions(ctx context.Context) ([]core.Version, error) {
	if d.source == nil {
		return nil, core.NewError(core.ErrConfig, "list versions", fmt.Errorf("no version source configured"))
	}
	versions, err := d.source.ListVersions(ctx)
	if err != nil {
		return nil, core.Tag(core.ErrConfig, "list versions", "", err)
	}
	return versions, nil
}

// archived pairs a version with what the archive held for it before the run.
type archived struct {
	version core.Version
	entry   git.Entry
	found   bool
}

// Run archives versions, which must be sorted by release time. It stops at
// the first error; versions tagged before that point stay valid and are
// recognised as current on the next run. The context is checked between
// versions only: a version whose producer call has started is finished or
// fails the run.
func (d *Driver) Run(ctx context.Context, versions []core.Version) (*Report, error) {
	if err := core.ValidateSequence(versions); err != nil {
		return nil, err
	}

	if err := d.begin(); err != nil {
		return nil, err
	}
	defer d.end()

	unlock, err := d.store.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	report := &Report{Started: time.Now()}

	// Tags are the durable index; read them all before the branch goes away.
	plan := make([]archived, 0, len(versions))
	for _, v := range versions {
		e, found, err := d.store.Lookup(v.ID)
		if err != nil {
			return report, core.Tag(core.ErrStore, "lookup", v.ID, err)
		}
		plan = append(plan, archived{version: v, entry: e, found: found})
	}

	if err := d.store.ClearBranch(); err != nil {
		return report, err
	}

	run := &runState{driver: d}
	defer run.abort()

	for _, item := range plan {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run interrupted before version %s: %w", item.version.ID, err)
		}
		d.setCurrent(item.version.ID)

		outcome, err := run.process(ctx, item)
		if err != nil {
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if err := run.close(); err != nil {
		return report, err
	}

	if err := d.store.ResetHard(); err != nil {
		return report, err
	}

	head, err := d.store.Head()
	if err != nil {
		return report, err
	}
	report.Head = head
	report.Finished = time.Now()

	d.mu.Lock()
	d.last = report
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Info("run finished",
			"versions", len(report.Outcomes),
			"committed", report.Count(StateCommitted),
			"retagged", report.Count(StateRetagged),
			"head", head.String(),
		)
	}
	return report, nil
}

func (d *Driver) begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return core.NewError(core.ErrStore, "run", fmt.Errorf("a run is already in progress"))
	}
	d.running = true
	return nil
}

func (d *Driver) end() {
	d.mu.Lock()
	d.running = false
	d.current = ""
	d.mu.Unlock()
}

func (d *Driver) setCurrent(id string) {
	d.mu.Lock()
	d.current = id
	d.mu.Unlock()
}

// runState carries the producer session of one run. The session is begun
// on the first stale version only, so a run that merely retags never
// touches the producer.
type runState struct {
	driver  *Driver
	session core.Session
}

func (r *runState) process(ctx context.Context, item archived) (VersionOutcome, error) {
	d := r.driver
	v := item.version

	if d.logger != nil {
		d.logger.Info("checking version", "version", v.ID)
	}

	old := ledger.Ledger{}
	if item.found {
		old = item.entry.Ledger
	}

	if item.found && ledger.IsCurrent(d.schema, old) {
		if d.logger != nil {
			d.logger.Info("already processed", "version", v.ID)
		}
		commit, err := d.store.CommitAndTag(v, old, item.entry.Tree)
		if err != nil {
			return VersionOutcome{}, core.Tag(core.ErrStore, "retag", v.ID, err)
		}
		return VersionOutcome{
			Version: v.ID,
			State:   StateRetagged,
			Tree:    item.entry.Tree,
			Commit:  commit,
			Ledger:  old,
		}, nil
	}

	stale := ledger.Stale(d.schema, old)
	if d.logger != nil {
		d.logger.Info("requesting", "version", v.ID, "kinds", core.IDs(stale))
	}

	outputs, err := r.produce(ctx, v, stale)
	if err != nil {
		return VersionOutcome{}, err
	}

	sources := make([]git.Source, 0, len(stale))
	for _, k := range stale {
		out, ok := outputs[k.ID]
		if !ok {
			return VersionOutcome{}, &core.Error{
				Kind:    core.ErrProducer,
				Op:      "produce",
				Version: v.ID,
				Err:     fmt.Errorf("no output returned for kind %s", k.ID),
			}
		}
		sources = append(sources, git.Source{Root: out.Root, RepoPath: k.Path})
	}

	var base *git.TreeBase
	if item.found {
		base = &git.TreeBase{
			Tree:    item.entry.Tree,
			Exclude: core.Paths(stale),
			Keep:    core.Paths(d.schema.Kinds()),
		}
	}

	tree, err := d.store.BuildTree(base, sources)
	if err != nil {
		return VersionOutcome{}, core.Tag(core.ErrTreeBuild, "build tree", v.ID, err)
	}

	merged := ledger.Merge(d.schema, old, stale)
	commit, err := d.store.CommitAndTag(v, merged, tree)
	if err != nil {
		return VersionOutcome{}, core.Tag(core.ErrStore, "commit", v.ID, err)
	}

	if d.logger != nil {
		d.logger.Info("committed and tagged", "version", v.ID, "commit", commit.String())
	}
	return VersionOutcome{
		Version:     v.ID,
		State:       StateCommitted,
		Regenerated: core.IDs(stale),
		Tree:        tree,
		Commit:      commit,
		Ledger:      merged,
	}, nil
}

func (r *runState) produce(ctx context.Context, v core.Version, kinds []core.Kind) (core.Outputs, error) {
	d := r.driver
	if d.producer == nil {
		return nil, &core.Error{Kind: core.ErrConfig, Op: "produce", Version: v.ID, Err: fmt.Errorf("version needs building but no producer is configured")}
	}

	if r.session == nil {
		s, err := d.producer.Begin(ctx)
		if err != nil {
			return nil, core.Tag(core.ErrProducer, "begin producer session", v.ID, err)
		}
		r.session = s
	}

	outputs, err := d.producer.Produce(ctx, r.session, v, kinds)
	if err != nil {
		return nil, core.Tag(core.ErrProducer, "produce", v.ID, err)
	}
	return outputs, nil
}

// close ends the producer session, if one was begun.
func (r *runState) close() error {
	if r.session == nil {
		return nil
	}
	s := r.session
	r.session = nil
	if err := s.Close(); err != nil {
		return core.NewError(core.ErrProducer, "close producer session", err)
	}
	return nil
}

// abort closes a session left open by a failed run. The run error wins over
// any close error, which is only logged.
func (r *runState) abort() {
	if err := r.close(); err != nil && r.driver.logger != nil {
		r.driver.logger.Warn("failed to close producer session", "error", err)
	}
}
