// Package ledger records which schema version of each artifact kind is
// embedded in an archived version, and decides which kinds are stale.
//
// It is the only place staleness is decided; callers never compare kind
// versions themselves.
package ledger

import (
	"github.com/aretw0/strata/pkg/core"
)

// Ledger maps kind ids to the schema version recorded for them.
// Missing entries read as 0.
type Ledger map[string]uint32

// Get returns the recorded version for a kind id, 0 if absent.
func (l Ledger) Get(id string) uint32 {
	return l[id]
}

// Clone returns an independent copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Stale returns, in schema order, every kind whose recorded version is
// strictly below its current schema version.
func Stale(schema *core.Schema, l Ledger) []core.Kind {
	var stale []core.Kind
	for _, k := range schema.Kinds() {
		if l.Get(k.ID) < k.Version {
			stale = append(stale, k)
		}
	}
	return stale
}

// IsCurrent reports whether no kind is stale.
func IsCurrent(schema *core.Schema, l Ledger) bool {
	return len(Stale(schema, l)) == 0
}

// Merge builds the ledger of a rebuilt version: regenerated kinds record
// their current schema version, every other kind keeps its old value.
func Merge(schema *core.Schema, old Ledger, regenerated []core.Kind) Ledger {
	fresh := make(map[string]bool, len(regenerated))
	for _, k := range regenerated {
		fresh[k.ID] = true
	}

	out := make(Ledger, len(schema.Kinds()))
	for _, k := range schema.Kinds() {
		if fresh[k.ID] {
			out[k.ID] = k.Version
		} else {
			out[k.ID] = old.Get(k.ID)
		}
	}
	return out
}

// Current returns the ledger of a version built entirely by this schema.
func Current(schema *core.Schema) Ledger {
	return Merge(schema, nil, schema.Kinds())
}
