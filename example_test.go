package strata_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/archive"
	"github.com/aretw0/strata/pkg/core"
)

// Example_basic archives two versions with an in-process producer, then
// runs again to show that nothing is regenerated.
func Example_basic() {
	tmpDir, err := os.MkdirTemp("", "strata-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	path, err := strata.Init(tmpDir)
	if err != nil {
		log.Fatal(err)
	}

	versions := core.VersionList{
		{ID: "1.0", ReleaseTime: time.Date(2011, 11, 18, 0, 0, 0, 0, time.UTC), Type: core.VersionRelease},
		{ID: "1.1", ReleaseTime: time.Date(2012, 1, 12, 0, 0, 0, 0, time.UTC), Type: core.VersionRelease},
	}
	producer := core.ProduceFunc(func(ctx context.Context, v core.Version, kinds []core.Kind) (core.Outputs, error) {
		out := make(core.Outputs)
		for _, k := range kinds {
			root := filepath.Join(tmpDir, "out", v.ID, k.ID)
			if err := os.MkdirAll(filepath.Dir(root), 0755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(root, []byte(v.ID+"\n"), 0644); err != nil {
				return nil, err
			}
			out[k.ID] = core.Output{Root: root}
		}
		return out, nil
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		report, err := strata.Run(ctx, path, strata.WithProducer(producer), strata.WithVersionSource(versions))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("committed=%d retagged=%d\n", report.Count(archive.StateCommitted), report.Count(archive.StateRetagged))
	}

	// Output:
	// committed=2 retagged=0
	// committed=0 retagged=2
}
