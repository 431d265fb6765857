// Package core holds the domain types shared by every strata component:
// versions, artifact kinds and their schema table, the producer and
// version-source boundaries, and the error taxonomy.
package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// VersionType classifies a version as published by the upstream manifest.
type VersionType string

const (
	VersionRelease  VersionType = "release"
	VersionSnapshot VersionType = "snapshot"
	VersionOldBeta  VersionType = "old_beta"
	VersionOldAlpha VersionType = "old_alpha"
)

// Version is one entry of the externally supplied version sequence.
// It is immutable input; its ID doubles as the tag name in the archive.
type Version struct {
	ID          string
	ReleaseTime time.Time
	Type        VersionType
}

// IsSnapshot reports whether the version is a development snapshot.
func (v Version) IsSnapshot() bool {
	return v.Type == VersionSnapshot
}

func (v Version) String() string {
	return v.ID
}

// SortVersions orders versions by release time, oldest first.
// The sort is stable so equal release times keep their input order.
func SortVersions(versions []Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].ReleaseTime.Before(versions[j].ReleaseTime)
	})
}

// ValidateSequence checks the invariants the archive driver relies on:
// a non-empty list, unique ids usable as tag names, ascending release time.
func ValidateSequence(versions []Version) error {
	if len(versions) == 0 {
		return NewError(ErrConfig, "validate versions", fmt.Errorf("no versions to archive"))
	}

	seen := make(map[string]struct{}, len(versions))
	for i, v := range versions {
		if err := validateTagName(v.ID); err != nil {
			return &Error{Kind: ErrConfig, Op: "validate versions", Version: v.ID, Err: err}
		}
		if _, dup := seen[v.ID]; dup {
			return &Error{Kind: ErrConfig, Op: "validate versions", Version: v.ID, Err: fmt.Errorf("duplicate version id")}
		}
		seen[v.ID] = struct{}{}

		if i > 0 && v.ReleaseTime.Before(versions[i-1].ReleaseTime) {
			return &Error{
				Kind:    ErrConfig,
				Op:      "validate versions",
				Version: v.ID,
				Err:     fmt.Errorf("released before %s; versions must be sorted by release time", versions[i-1].ID),
			}
		}
	}
	return nil
}

// validateTagName rejects ids that git would refuse as a tag name, following
// the rules of git check-ref-format for the part after refs/tags/.
func validateTagName(id string) error {
	if id == "" {
		return fmt.Errorf("version id cannot be empty")
	}
	invalid := func(reason string) error {
		return fmt.Errorf("version id %q is not a valid tag name: %s", id, reason)
	}

	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return invalid("control character")
		}
	}
	if strings.ContainsAny(id, " ~^:?*[\\") {
		return invalid("forbidden character")
	}
	if id == "@" {
		return invalid("reserved name")
	}
	if strings.HasPrefix(id, "-") {
		return invalid("leading dash")
	}
	if strings.HasSuffix(id, ".") {
		return invalid("trailing dot")
	}
	if strings.Contains(id, "..") || strings.Contains(id, "@{") {
		return invalid("forbidden sequence")
	}

	for _, part := range strings.Split(id, "/") {
		switch {
		case part == "":
			return invalid("empty path component")
		case strings.HasPrefix(part, "."):
			return invalid("path component starts with a dot")
		case strings.HasSuffix(part, ".lock"):
			return invalid("path component ends with .lock")
		}
	}
	return nil
}
