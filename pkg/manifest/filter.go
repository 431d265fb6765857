package manifest

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/strata/pkg/core"
)

// Filter selects the versions of a run from the full manifest.
type Filter struct {
	// MinVersion and MaxVersion bound the range by release time, inclusively.
	// An empty bound is open.
	MinVersion string
	MaxVersion string

	IncludeSnapshots  bool
	IncludeAprilFools bool

	// Exclude drops every version whose id matches one of these glob patterns.
	Exclude []string
}

// Apply returns the selected versions sorted by release time.
func (f Filter) Apply(entries []Entry) ([]core.Version, error) {
	for _, pattern := range f.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, core.NewError(core.ErrConfig, "filter versions", fmt.Errorf("invalid exclude pattern %q", pattern))
		}
	}

	sorted := sortByRelease(entries)

	lo, hi, err := f.bounds(sorted)
	if err != nil {
		return nil, err
	}

	var out []core.Version
	for _, e := range sorted {
		if !lo.IsZero() && e.ReleaseTime.Before(lo) {
			continue
		}
		if !hi.IsZero() && e.ReleaseTime.After(hi) {
			continue
		}
		if !f.IncludeSnapshots && core.VersionType(e.Type) == core.VersionSnapshot {
			continue
		}
		if !f.IncludeAprilFools && IsAprilFools(e.ReleaseTime) {
			continue
		}
		if f.excluded(e.ID) {
			continue
		}
		out = append(out, e.Version())
	}
	return out, nil
}

// bounds resolves the configured ids to release times.
func (f Filter) bounds(entries []Entry) (lo, hi time.Time, err error) {
	var minFound, maxFound bool
	for _, e := range entries {
		if f.MinVersion != "" && e.ID == f.MinVersion {
			lo, minFound = e.ReleaseTime, true
		}
		if f.MaxVersion != "" && e.ID == f.MaxVersion {
			hi, maxFound = e.ReleaseTime, true
		}
	}

	missingMin := f.MinVersion != "" && !minFound
	missingMax := f.MaxVersion != "" && !maxFound
	switch {
	case missingMin && missingMax:
		err = fmt.Errorf("neither minimum version %s nor maximum version %s found in version manifest", f.MinVersion, f.MaxVersion)
	case missingMin:
		err = fmt.Errorf("minimum version %s not found in version manifest", f.MinVersion)
	case missingMax:
		err = fmt.Errorf("maximum version %s not found in version manifest", f.MaxVersion)
	}
	if err != nil {
		return time.Time{}, time.Time{}, core.NewError(core.ErrConfig, "filter versions", err)
	}
	return lo, hi, nil
}

func (f Filter) excluded(id string) bool {
	for _, pattern := range f.Exclude {
		if ok, _ := doublestar.Match(pattern, id); ok {
			return true
		}
	}
	return false
}

// IsAprilFools reports whether a release time falls on the first of April,
// UTC, when joke versions are published.
func IsAprilFools(t time.Time) bool {
	u := t.UTC()
	return u.Month() == time.April && u.Day() == 1
}
