// Package manifest reads the launcher version manifest and turns it into
// the ordered version list of a run.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aretw0/strata/pkg/core"
)

// DefaultURL is the public launcher manifest.
const DefaultURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// Entry is one version as listed by the manifest.
type Entry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url,omitempty"`
	Time        time.Time `json:"time"`
	ReleaseTime time.Time `json:"releaseTime"`
}

// Version converts the entry to the archive's domain type.
func (e Entry) Version() core.Version {
	return core.Version{ID: e.ID, ReleaseTime: e.ReleaseTime, Type: core.VersionType(e.Type)}
}

// Manifest is the decoded manifest document.
type Manifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []Entry `json:"versions"`
}

// Decode parses a manifest document.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode version manifest: %w", err)
	}
	for i, e := range m.Versions {
		if e.ID == "" {
			return nil, fmt.Errorf("version manifest entry %d has no id", i)
		}
		if e.ReleaseTime.IsZero() {
			return nil, fmt.Errorf("version manifest entry %s has no release time", e.ID)
		}
	}
	return &m, nil
}

// Fetch loads the manifest from an http(s) URL or, for anything else, a
// local file path. A nil client means http.DefaultClient.
func Fetch(ctx context.Context, client *http.Client, location string) (*Manifest, error) {
	if location == "" {
		location = DefaultURL
	}

	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location)
		if err != nil {
			return nil, &core.Error{Kind: core.ErrConfig, Op: "fetch version manifest", Path: location, Err: err}
		}
		defer f.Close()
		m, err := Decode(f)
		if err != nil {
			return nil, &core.Error{Kind: core.ErrConfig, Op: "fetch version manifest", Path: location, Err: err}
		}
		return m, nil
	}

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &core.Error{Kind: core.ErrConfig, Op: "fetch version manifest", Path: location, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &core.Error{Kind: core.ErrConfig, Op: "fetch version manifest", Path: location, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.Error{
			Kind: core.ErrConfig,
			Op:   "fetch version manifest",
			Path: location,
			Err:  fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	m, err := Decode(resp.Body)
	if err != nil {
		return nil, &core.Error{Kind: core.ErrConfig, Op: "fetch version manifest", Path: location, Err: err}
	}
	return m, nil
}
