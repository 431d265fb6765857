package platform

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/strata/internal/atomicfile"
	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/manifest"
)

// ConfigFileName is the name of the run configuration file.
const ConfigFileName = "strata.toml"

// AuthorConfig is the identity archive commits are written with.
type AuthorConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// TaskConfig maps one artifact kind to the tool invocation producing it.
type TaskConfig struct {
	Args   []string `toml:"args"`
	Output string   `toml:"output"`
}

// ToolchainConfig locates the build tool, downloaded on first use.
type ToolchainConfig struct {
	URL        string `toml:"url"`
	Dir        string `toml:"dir"`
	Executable string `toml:"executable"`
}

// ProducerConfig configures the external build tool.
type ProducerConfig struct {
	WorkDir        string                `toml:"work_dir"`
	Executable     string                `toml:"executable,omitempty"`
	Args           []string              `toml:"args"`
	Prepare        []string              `toml:"prepare"`
	PropertiesFile string                `toml:"properties_file"`
	Properties     map[string]string     `toml:"properties"`
	Env            []string              `toml:"env,omitempty"`
	Toolchain      ToolchainConfig       `toml:"toolchain"`
	Kinds          map[string]TaskConfig `toml:"kinds"`

	// Mappings maps anchor version ids to the mappings release published for
	// them; an empty release disables a default anchor. Every version is
	// built against its newest anchor, exposed as {mapping_version} and
	// {mapping_release}.
	Mappings map[string]string `toml:"mappings"`
}

// Config is the content of strata.toml.
type Config struct {
	Repository        string         `toml:"repository"`
	Branch            string         `toml:"branch"`
	Bare              bool           `toml:"bare"`
	ManifestURL       string         `toml:"manifest_url"`
	MinVersion        string         `toml:"min_version"`
	MaxVersion        string         `toml:"max_version"`
	IncludeSnapshots  bool           `toml:"include_snapshots"`
	IncludeAprilFools bool           `toml:"include_april_fools"`
	Exclude           []string       `toml:"exclude,omitempty"`
	Author            AuthorConfig   `toml:"author"`
	Producer          ProducerConfig `toml:"producer"`

	// dir is the directory relative paths resolve against.
	dir string
}

// DefaultConfig returns the configuration of a fresh archive: every version
// of the public manifest, decompiled with Gradle.
func DefaultConfig() Config {
	return Config{
		Repository:  "repository",
		Branch:      "main",
		ManifestURL: manifest.DefaultURL,
		Producer: ProducerConfig{
			WorkDir:        "decompilationWorkArea",
			Args:           []string{"--stacktrace", "--parallel", "--configuration-cache"},
			Prepare:        []string{"--stop"},
			PropertiesFile: "gradle.properties",
			Properties: map[string]string{
				"minecraft_version":    "{version}",
				"parchment_mc_version": "{mapping_version}",
				"parchment_version":    "{mapping_release}",
			},
			Mappings: map[string]string{
				"1.16.5": "2022.03.06",
				"1.17.1": "2021.12.12",
				"1.18.2": "2022.11.06",
				"1.19.2": "2022.11.27",
				"1.19.3": "2023.06.25",
				"1.19.4": "2023.06.26",
				"1.20.1": "2023.09.03",
				"1.20.2": "2023.12.10",
				"1.20.3": "2023.12.31",
				"1.20.4": "2024.04.14",
				"1.20.6": "2024.06.16",
				"1.21":   "2024.07.28",
			},
			Toolchain: ToolchainConfig{
				URL:        "https://services.gradle.org/distributions/gradle-8.12-bin.zip",
				Dir:        "decompilationWorkArea/gradle-install/8.12",
				Executable: "bin/gradle",
			},
			Kinds: map[string]TaskConfig{
				"decompiled_classes": {Args: []string{"unpackSourcesIntoKnownDir"}, Output: "decompiledSources"},
				"libraries":          {Args: []string{"exportLibraries"}, Output: "build/libraries.txt"},
			},
		},
	}
}

// LoadConfig reads path over the defaults, then applies STRATA_*
// environment overrides and validates the archive settings. Producer
// settings are checked by Open, against the schema in use.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, &core.Error{Kind: core.ErrConfig, Op: "load config", Path: path, Err: err}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, &core.Error{Kind: core.ErrConfig, Op: "load config", Path: path, Err: fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))}
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return Config{}, &core.Error{Kind: core.ErrConfig, Op: "load config", Path: path, Err: err}
	}
	cfg.dir = abs

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, &core.Error{Kind: core.ErrConfig, Op: "load config", Path: path, Err: err}
	}
	if err := cfg.validateArchive(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteConfig writes cfg to path as TOML.
func WriteConfig(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnv overrides scalar settings from STRATA_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"STRATA_REPOSITORY":   &cfg.Repository,
		"STRATA_BRANCH":       &cfg.Branch,
		"STRATA_MANIFEST_URL": &cfg.ManifestURL,
		"STRATA_MIN_VERSION":  &cfg.MinVersion,
		"STRATA_MAX_VERSION":  &cfg.MaxVersion,
		"STRATA_AUTHOR_NAME":  &cfg.Author.Name,
		"STRATA_AUTHOR_EMAIL": &cfg.Author.Email,
		"STRATA_WORK_DIR":     &cfg.Producer.WorkDir,
		"STRATA_EXECUTABLE":   &cfg.Producer.Executable,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"STRATA_BARE":                &cfg.Bare,
		"STRATA_INCLUDE_SNAPSHOTS":   &cfg.IncludeSnapshots,
		"STRATA_INCLUDE_APRIL_FOOLS": &cfg.IncludeAprilFools,
	}
	for name, dst := range bools {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}

	if v, ok := lookup("STRATA_EXCLUDE"); ok && v != "" {
		cfg.Exclude = splitAndTrim(v)
	}
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func invalid(format string, args ...any) error {
	return core.NewError(core.ErrConfig, "validate config", fmt.Errorf(format, args...))
}

// Validate checks the settings a run depends on against the artifact table.
func (c Config) Validate(schema *core.Schema) error {
	if err := c.validateArchive(); err != nil {
		return err
	}
	return c.validateProducer(schema)
}

func (c Config) validateArchive() error {
	if c.Repository == "" {
		return invalid("repository path is required")
	}
	if c.Branch == "" || strings.ContainsAny(c.Branch, " ~^:?*[\\") || strings.HasPrefix(c.Branch, "-") {
		return invalid("invalid branch name %q", c.Branch)
	}
	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return invalid("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}

// validateProducer checks the command producer settings, which only matter
// when no other producer is injected.
func (c Config) validateProducer(schema *core.Schema) error {
	p := c.Producer
	if p.WorkDir == "" {
		return invalid("producer.work_dir is required")
	}
	if p.Executable == "" && (p.Toolchain.Dir == "" || p.Toolchain.Executable == "") {
		return invalid("producer needs either executable or toolchain.dir and toolchain.executable")
	}
	for _, k := range schema.Kinds() {
		task, ok := p.Kinds[k.ID]
		if !ok {
			return invalid("producer.kinds has no task for kind %s", k.ID)
		}
		if task.Output == "" {
			return invalid("producer.kinds.%s.output is required", k.ID)
		}
	}
	for id := range p.Kinds {
		if _, ok := schema.Kind(id); !ok {
			return invalid("producer.kinds.%s does not name a known kind", id)
		}
	}
	return nil
}

// Resolve makes a configured path absolute relative to the config file.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// Filter returns the version selection of the config.
func (c Config) Filter() manifest.Filter {
	return manifest.Filter{
		MinVersion:        c.MinVersion,
		MaxVersion:        c.MaxVersion,
		IncludeSnapshots:  c.IncludeSnapshots,
		IncludeAprilFools: c.IncludeAprilFools,
		Exclude:           c.Exclude,
	}
}

// ManifestLocation returns the manifest URL, or the resolved path when the
// manifest is a local file.
func (c Config) ManifestLocation() string {
	if strings.HasPrefix(c.ManifestURL, "http://") || strings.HasPrefix(c.ManifestURL, "https://") {
		return c.ManifestURL
	}
	return c.Resolve(c.ManifestURL)
}
