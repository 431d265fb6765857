package core

import (
	"fmt"
	"path"
	"strings"
)

// Kind is one independently versioned artifact produced for every version.
type Kind struct {
	// ID is the stable identifier used in configuration and logs.
	ID string
	// Description is shown to humans.
	Description string
	// Version is the schema version. Bump it whenever the producer's output
	// for this kind changes in any way; archived versions recorded with a
	// lower number are rebuilt for this kind on the next run.
	Version uint32
	// Path is where the kind lives inside every archived tree: a single
	// file or the root of a subtree.
	Path string
	// LedgerKey is the key recording this kind's version in commit metadata.
	LedgerKey string
	// Aliases are older ledger keys still accepted when reading.
	Aliases []string
}

// Schema is the immutable table of artifact kinds known to this build.
type Schema struct {
	kinds []Kind
	byID  map[string]int
}

// NewSchema validates the kinds and returns a schema preserving their order.
func NewSchema(kinds ...Kind) (*Schema, error) {
	s := &Schema{
		kinds: make([]Kind, 0, len(kinds)),
		byID:  make(map[string]int, len(kinds)),
	}
	keys := make(map[string]string)

	for _, k := range kinds {
		if k.ID == "" {
			return nil, NewError(ErrConfig, "schema", fmt.Errorf("artifact kind without id"))
		}
		if _, dup := s.byID[k.ID]; dup {
			return nil, NewError(ErrConfig, "schema", fmt.Errorf("duplicate artifact kind %q", k.ID))
		}
		if k.Version == 0 {
			return nil, NewError(ErrConfig, "schema", fmt.Errorf("artifact kind %q: schema version must be at least 1", k.ID))
		}

		clean := path.Clean(k.Path)
		if k.Path == "" || clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return nil, NewError(ErrConfig, "schema", fmt.Errorf("artifact kind %q: invalid repository path %q", k.ID, k.Path))
		}
		k.Path = clean

		if k.LedgerKey == "" {
			k.LedgerKey = k.ID + "_version"
		}
		for _, key := range append([]string{k.LedgerKey}, k.Aliases...) {
			if owner, taken := keys[key]; taken {
				return nil, NewError(ErrConfig, "schema", fmt.Errorf("ledger key %q used by both %q and %q", key, owner, k.ID))
			}
			keys[key] = k.ID
		}

		for _, other := range s.kinds {
			if PathWithin(k.Path, other.Path) || PathWithin(other.Path, k.Path) {
				return nil, NewError(ErrConfig, "schema", fmt.Errorf("artifact kinds %q and %q have overlapping paths %q and %q", other.ID, k.ID, other.Path, k.Path))
			}
		}

		s.byID[k.ID] = len(s.kinds)
		s.kinds = append(s.kinds, k)
	}
	return s, nil
}

// MustSchema is NewSchema for static tables; it panics on invalid input.
func MustSchema(kinds ...Kind) *Schema {
	s, err := NewSchema(kinds...)
	if err != nil {
		panic(err)
	}
	return s
}

// Kinds returns the kinds in table order. The slice is a copy.
func (s *Schema) Kinds() []Kind {
	out := make([]Kind, len(s.kinds))
	copy(out, s.kinds)
	return out
}

// Kind looks up a kind by id.
func (s *Schema) Kind(id string) (Kind, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Kind{}, false
	}
	return s.kinds[i], true
}

// Paths returns the repository paths owned by the given kinds.
func Paths(kinds []Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.Path
	}
	return out
}

// IDs returns the ids of the given kinds.
func IDs(kinds []Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.ID
	}
	return out
}

// PathWithin reports whether p equals prefix or lies below it.
// Both are slash-separated repository paths.
func PathWithin(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// DefaultSchema is the artifact table compiled into strata.
var DefaultSchema = MustSchema(
	Kind{
		ID:          "decompiled_classes",
		Description: "decompiled classes",
		Version:     3,
		Path:        "src",
		LedgerKey:   "decompiled_classes_version",
		Aliases:     []string{"output_version"},
	},
	Kind{
		ID:          "libraries",
		Description: "libraries.txt",
		Version:     1,
		Path:        "libraries.txt",
		LedgerKey:   "libraries_output_version",
	},
)
