package archive

import (
	"log/slog"

	"github.com/aretw0/strata/pkg/core"
)

// options holds the configuration of a Driver.
type options struct {
	store    Store
	producer core.Producer
	source   core.VersionSource
	schema   *core.Schema
	logger   *slog.Logger
}

// Option configures a Driver.
type Option func(*options)

// WithStore sets the archive the driver reads and writes. Required.
func WithStore(s Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithProducer sets the collaborator that generates stale artifacts.
// A driver without one can still retag up-to-date versions and report
// status, but fails as soon as a version needs building.
func WithProducer(p core.Producer) Option {
	return func(o *options) {
		o.producer = p
	}
}

// WithVersionSource sets where RunFromSource reads the versions of a run.
func WithVersionSource(src core.VersionSource) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithSchema overrides the artifact table. Defaults to the store's own
// schema when it exposes one, core.DefaultSchema otherwise.
func WithSchema(s *core.Schema) Option {
	return func(o *options) {
		o.schema = s
	}
}

// WithLogger sets the logger for progress reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
