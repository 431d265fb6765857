package strata

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/strata/internal/platform"
	"github.com/aretw0/strata/pkg/archive"
	"github.com/aretw0/strata/pkg/core"
)

// --- Types ---

// Config is the content of strata.toml.
type Config = platform.Config

// Archive is a wired store and driver.
type Archive = platform.Archive

// Report summarizes one run.
type Report = archive.Report

// VersionStatus describes what the archive holds for one version.
type VersionStatus = archive.VersionStatus

// ConfigFileName is the name of the run configuration file.
const ConfigFileName = platform.ConfigFileName

// --- Configuration ---

// Option defines a functional option for configuring strata.
type Option = platform.Option

// WithLogger sets the logger of every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithProducer replaces the configured command producer.
func WithProducer(p core.Producer) Option {
	return platform.WithProducer(p)
}

// WithVersionSource replaces the version manifest as the source of versions.
func WithVersionSource(src core.VersionSource) Option {
	return platform.WithVersionSource(src)
}

// WithSchema overrides the artifact table.
func WithSchema(s *core.Schema) Option {
	return platform.WithSchema(s)
}

// WithHTTPClient sets the client for manifest and toolchain downloads.
func WithHTTPClient(c *http.Client) Option {
	return platform.WithHTTPClient(c)
}

// WithAutoInit controls whether a missing repository is created.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithForceTemp forces the repository into a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the sandbox applied under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Operations ---

// Init writes a default strata.toml into dir unless one exists and creates
// the repository. It returns the path of the config file.
func Init(dir string, opts ...Option) (string, error) {
	return platform.Init(dir, opts...)
}

// Run archives every version listed by the source configured in configPath.
// An empty configPath is looked up from the working directory upwards.
func Run(ctx context.Context, configPath string, opts ...Option) (*Report, error) {
	return platform.Run(ctx, configPath, opts...)
}

// Status reports what a run would do for each version, without writing.
func Status(ctx context.Context, configPath string, opts ...Option) ([]VersionStatus, error) {
	return platform.Status(ctx, configPath, opts...)
}

// Open wires the archive described by cfg.
func Open(cfg Config, opts ...Option) (*Archive, error) {
	return platform.Open(cfg, opts...)
}

// DefaultConfig returns the configuration written by Init.
func DefaultConfig() Config {
	return platform.DefaultConfig()
}

// LoadConfig reads strata.toml and applies STRATA_* environment overrides.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// FindRoot looks upwards from startDir for the directory holding strata.toml.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
