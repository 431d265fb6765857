package git

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path   string `json:"path"`
	Branch string `json:"branch"`
	Bare   bool   `json:"bare"`
	Head   string `json:"head,omitempty"`
	Locked bool   `json:"locked"`
	Kinds  int    `json:"kinds"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	locked := s.locked
	s.mu.Unlock()

	state := StoreState{
		Path:   s.Path,
		Branch: s.config.Branch,
		Bare:   s.bare,
		Locked: locked,
		Kinds:  len(s.config.Schema.Kinds()),
	}
	if _, tip, err := s.head(); err == nil && !tip.IsZero() {
		state.Head = tip.String()
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
