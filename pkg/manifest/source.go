package manifest

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/strata/pkg/core"
)

// Source is a core.VersionSource backed by a manifest.
type Source struct {
	Location string // URL or file path, DefaultURL when empty
	Client   *http.Client
	Filter   Filter
	Logger   *slog.Logger

	// Mappings maps anchor version ids to mappings releases. When set, every
	// listing rebuilds the index Placeholders reads.
	Mappings map[string]string

	mu    sync.RWMutex
	index map[string]Mapping
}

// ListVersions fetches the manifest and applies the filter.
func (s *Source) ListVersions(ctx context.Context) ([]core.Version, error) {
	m, err := Fetch(ctx, s.Client, s.Location)
	if err != nil {
		return nil, err
	}

	versions, err := s.Filter.Apply(m.Versions)
	if err != nil {
		return nil, err
	}

	if len(s.Mappings) > 0 {
		index, missing := IndexMappings(m.Versions, s.Mappings)
		if len(missing) > 0 && s.Logger != nil {
			s.Logger.Warn("mapping versions not found in version manifest", "versions", missing)
		}
		s.mu.Lock()
		s.index = index
		s.mu.Unlock()
	}

	if s.Logger != nil {
		s.Logger.Info("found versions",
			"count", len(versions),
			"listed", len(m.Versions),
			"min", s.Filter.MinVersion,
			"max", s.Filter.MaxVersion,
			"snapshots", s.Filter.IncludeSnapshots,
		)
	}
	return versions, nil
}

// Placeholders returns the mapping substitutions of v from the last listing.
// Unknown versions map to empty values.
func (s *Source) Placeholders(v core.Version) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index[v.ID].Placeholders()
}

var _ core.VersionSource = (*Source)(nil)
