package archive

import (
	"context"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/ledger"
)

// VersionStatus describes what the archive currently holds for one version.
type VersionStatus struct {
	Version  string        `json:"version" yaml:"version"`
	Archived bool          `json:"archived" yaml:"archived"`
	Tree     string        `json:"tree,omitempty" yaml:"tree,omitempty"`
	Commit   string        `json:"commit,omitempty" yaml:"commit,omitempty"`
	Ledger   ledger.Ledger `json:"ledger,omitempty" yaml:"ledger,omitempty"`
	Stale    []string      `json:"stale,omitempty" yaml:"stale,omitempty"`
}

// Current reports whether a run would only retag this version.
func (s VersionStatus) Current() bool {
	return s.Archived && len(s.Stale) == 0
}

// Status reads the tag of every version and reports which kinds a run would
// regenerate. It takes no lock, writes nothing and never calls the producer.
func (d *Driver) Status(versions []core.Version) ([]VersionStatus, error) {
	out := make([]VersionStatus, 0, len(versions))
	for _, v := range versions {
		e, found, err := d.store.Lookup(v.ID)
		if err != nil {
			return nil, core.Tag(core.ErrStore, "lookup", v.ID, err)
		}

		st := VersionStatus{Version: v.ID, Archived: found}
		l := ledger.Ledger{}
		if found {
			l = e.Ledger
			st.Tree = e.Tree.String()
			st.Commit = e.Commit.String()
			st.Ledger = l
		}
		st.Stale = core.IDs(ledger.Stale(d.schema, l))
		out = append(out, st)
	}
	return out, nil
}

// StatusFromSource is Status over the versions of the configured source.
func (d *Driver) StatusFromSource(ctx context.Context) ([]VersionStatus, error) {
	versions, err := d.listVersions(ctx)
	if err != nil {
		return nil, err
	}
	return d.Status(versions)
}
