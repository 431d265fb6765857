package platform

import (
	"log/slog"
	"net/http"

	"github.com/aretw0/strata/pkg/core"
)

// options holds the internal configuration for wiring an archive.
type options struct {
	logger     *slog.Logger
	producer   core.Producer
	source     core.VersionSource
	schema     *core.Schema
	httpClient *http.Client
	autoInit   bool
	forceTemp  bool
	devSafety  bool
}

// Option defines a functional option for configuring strata.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		schema:    core.DefaultSchema,
		autoInit:  true,
		devSafety: true,
	}
}

// WithLogger sets the logger of every wired component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithProducer replaces the configured command producer.
func WithProducer(p core.Producer) Option {
	return func(o *options) {
		o.producer = p
	}
}

// WithVersionSource replaces the manifest as the source of versions.
func WithVersionSource(src core.VersionSource) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithSchema overrides the artifact table compiled into the binary.
func WithSchema(s *core.Schema) Option {
	return func(o *options) {
		o.schema = s
	}
}

// WithHTTPClient sets the client used for the manifest and toolchain downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithAutoInit controls whether a missing repository is created. Enabled by default.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.autoInit = auto
	}
}

// WithForceTemp re-roots the repository into the temporary directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox applied when running via `go run` or
// `go test`: the repository is moved into the temporary directory so an
// experiment never rewrites a real archive. Enabled by default.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}
