package archive

import (
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/aretw0/strata/pkg/ledger"
)

// State is where a version ended up within one run.
type State string

const (
	// StateCommitted means at least one kind was regenerated and a new tree written.
	StateCommitted State = "committed"
	// StateRetagged means the existing tree was reused verbatim on the new chain.
	StateRetagged State = "retagged"
)

// VersionOutcome records what a run did with one version.
type VersionOutcome struct {
	Version     string        `json:"version" yaml:"version"`
	State       State         `json:"state" yaml:"state"`
	Regenerated []string      `json:"regenerated,omitempty" yaml:"regenerated,omitempty"`
	Tree        plumbing.Hash `json:"-" yaml:"-"`
	Commit      plumbing.Hash `json:"-" yaml:"-"`
	Ledger      ledger.Ledger `json:"ledger" yaml:"ledger"`
}

// Report summarizes a completed run, in processing order.
type Report struct {
	Started  time.Time        `json:"started" yaml:"started"`
	Finished time.Time        `json:"finished" yaml:"finished"`
	Head     plumbing.Hash    `json:"-" yaml:"-"`
	Outcomes []VersionOutcome `json:"outcomes" yaml:"outcomes"`
}

// Count returns how many versions ended in the given state.
func (r *Report) Count(s State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}
