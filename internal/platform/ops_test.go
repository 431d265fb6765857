package platform_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/strata/internal/platform"
	"github.com/aretw0/strata/pkg/archive"
	"github.com/aretw0/strata/pkg/core"
)

func testVersions(ids ...string) core.VersionList {
	base := time.Date(2012, time.March, 1, 0, 0, 0, 0, time.UTC)
	out := make(core.VersionList, len(ids))
	for i, id := range ids {
		out[i] = core.Version{ID: id, ReleaseTime: base.Add(time.Duration(i) * time.Hour), Type: core.VersionRelease}
	}
	return out
}

// fileProducer writes a single class file and a library list per version.
func fileProducer(t *testing.T, calls *[]string) core.Producer {
	dir := t.TempDir()
	return core.ProduceFunc(func(ctx context.Context, v core.Version, kinds []core.Kind) (core.Outputs, error) {
		*calls = append(*calls, v.ID)
		out := make(core.Outputs)
		for _, k := range kinds {
			root := filepath.Join(dir, v.ID, k.ID)
			switch k.ID {
			case "decompiled_classes":
				if err := os.MkdirAll(root, 0755); err != nil {
					return nil, err
				}
				if err := os.WriteFile(filepath.Join(root, "Main.java"), []byte("// "+v.ID), 0644); err != nil {
					return nil, err
				}
				out[k.ID] = core.Output{Root: root, IsDir: true}
			case "libraries":
				if err := os.MkdirAll(filepath.Dir(root), 0755); err != nil {
					return nil, err
				}
				if err := os.WriteFile(root, []byte("lwjgl.jar\n"), 0644); err != nil {
					return nil, err
				}
				out[k.ID] = core.Output{Root: root}
			}
		}
		return out, nil
	})
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, platform.ConfigFileName)
	cfg := `repository = "repo"
branch = "main"

[author]
name = "Test"
email = "test@test.local"
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "workspace")

	path, err := platform.Init(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, platform.ConfigFileName), path)

	cfg, err := platform.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, platform.DefaultConfig().Branch, cfg.Branch)

	_, err = os.Stat(filepath.Join(dir, "repository", ".git"))
	assert.NoError(t, err, "repository must be initialized")

	t.Run("Keeps Existing Config", func(t *testing.T) {
		custom := []byte("repository = \"elsewhere\"\n")
		require.NoError(t, os.WriteFile(path, custom, 0644))

		_, err := platform.Init(dir)
		require.NoError(t, err)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, custom, got)

		_, err = os.Stat(filepath.Join(dir, "elsewhere", ".git"))
		assert.NoError(t, err)
	})
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)

	var calls []string
	opts := []platform.Option{
		platform.WithProducer(fileProducer(t, &calls)),
		platform.WithVersionSource(testVersions("1.2.5", "1.3.1", "1.4.2")),
	}

	report, err := platform.Run(context.Background(), path, opts...)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(archive.StateCommitted))
	assert.Equal(t, []string{"1.2.5", "1.3.1", "1.4.2"}, calls)

	again, err := platform.Run(context.Background(), path, opts...)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Count(archive.StateRetagged))
	assert.Equal(t, report.Head, again.Head)
	assert.Len(t, calls, 3, "a rerun must not call the producer")

	statuses, err := platform.Status(context.Background(), path, opts...)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	for _, st := range statuses {
		assert.True(t, st.Current(), "version %s", st.Version)
	}
}

func TestStatus_MissingRepository(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)

	_, err := platform.Status(context.Background(), path,
		platform.WithVersionSource(testVersions("1.0")),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStore), "got %v", err)

	_, err = os.Stat(filepath.Join(dir, "repo"))
	assert.True(t, os.IsNotExist(err), "status must not create the repository")
}

func TestOpen_InjectedProducerSkipsProducerValidation(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)

	cfg, err := platform.LoadConfig(path)
	require.NoError(t, err)
	cfg.Producer = platform.ProducerConfig{}

	_, err = platform.Open(cfg)
	assert.True(t, errors.Is(err, core.ErrConfig), "got %v", err)

	var calls []string
	a, err := platform.Open(cfg, platform.WithProducer(fileProducer(t, &calls)))
	require.NoError(t, err)
	assert.NotNil(t, a.Driver)
	assert.Equal(t, filepath.Join(dir, "repo"), a.Store.Path)
}

const mappingTool = `#!/bin/sh
cat gradle.properties >> props.log
for a in "$@"; do
  case "$a" in
    classes) mkdir -p out/src && echo "class Main" > out/src/Main.java ;;
    libs) mkdir -p out && echo "lwjgl.jar" > out/libraries.txt ;;
  esac
done
`

func TestRun_MappingPropertiesFollowFullManifest(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()

	manifest := `{"versions": [
  {"id": "1.2.1", "type": "release", "time": "2012-03-01T00:00:00+00:00", "releaseTime": "2012-03-01T00:00:00+00:00"},
  {"id": "1.1", "type": "release", "time": "2012-01-12T00:00:00+00:00", "releaseTime": "2012-01-12T00:00:00+00:00"},
  {"id": "1.0", "type": "release", "time": "2011-11-18T00:00:00+00:00", "releaseTime": "2011-11-18T00:00:00+00:00"}
]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool.sh"), []byte(mappingTool), 0755))

	path := filepath.Join(dir, platform.ConfigFileName)
	cfg := `repository = "repo"
manifest_url = "manifest.json"
min_version = "1.1"

[author]
name = "Test"
email = "test@test.local"

[producer]
work_dir = "work"
executable = "./tool.sh"
args = []
prepare = []

[producer.kinds.decompiled_classes]
args = ["classes"]
output = "out/src"

[producer.kinds.libraries]
args = ["libs"]
output = "out/libraries.txt"

[producer.mappings]
"1.0" = "2011.12.01"
"1.2.1" = "2012.04.01"
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	report, err := platform.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(archive.StateCommitted))

	log, err := os.ReadFile(filepath.Join(dir, "work", "props.log"))
	require.NoError(t, err)
	// 1.0 is filtered out of the run but still anchors 1.1.
	assert.Equal(t, "version=1.1\n"+
		"minecraft_version=1.1\nparchment_mc_version=1.0\nparchment_version=2011.12.01\n"+
		"version=1.2.1\n"+
		"minecraft_version=1.2.1\nparchment_mc_version=1.2.1\nparchment_version=2012.04.01\n",
		string(log))
}
