package manifest

import "sort"

// Placeholders a mapping index fills in for every version.
const (
	MappingVersionKey = "mapping_version"
	MappingReleaseKey = "mapping_release"
)

// Mapping is the mappings release a version is built against.
type Mapping struct {
	Version string // anchor version the mappings were published for
	Release string
}

// IndexMappings assigns every listed version the newest anchor at or before
// it in release order. anchors maps an anchor version id to its mappings
// release; anchors with an empty release are ignored. Versions older than
// the first anchor get the zero Mapping.
//
// The index must be built over the full manifest, not the filtered run, so
// that a version keeps its anchor when the anchor itself is filtered out.
// Anchors the manifest does not list are returned in missing, sorted.
func IndexMappings(entries []Entry, anchors map[string]string) (index map[string]Mapping, missing []string) {
	index = make(map[string]Mapping, len(entries))
	seen := make(map[string]bool, len(anchors))

	var current Mapping
	for _, e := range sortByRelease(entries) {
		if release := anchors[e.ID]; release != "" {
			current = Mapping{Version: e.ID, Release: release}
			seen[e.ID] = true
		}
		index[e.ID] = current
	}

	for id, release := range anchors {
		if release != "" && !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return index, missing
}

// Placeholders returns the substitutions of m, empty when no mappings apply.
func (m Mapping) Placeholders() map[string]string {
	return map[string]string{
		MappingVersionKey: m.Version,
		MappingReleaseKey: m.Release,
	}
}

func sortByRelease(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReleaseTime.Before(sorted[j].ReleaseTime)
	})
	return sorted
}
