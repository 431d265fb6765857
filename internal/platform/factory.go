package platform

import (
	"strings"

	"github.com/aretw0/strata/pkg/archive"
	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/git"
	"github.com/aretw0/strata/pkg/manifest"
	"github.com/aretw0/strata/pkg/producer"
)

// Archive is a fully wired archive: its store and the driver running over it.
type Archive struct {
	Config Config
	Store  *git.Store
	Driver *archive.Driver
}

// Open wires the store, the version source, the producer and the driver
// described by cfg. Options replace individual components.
func Open(cfg Config, opts ...Option) (*Archive, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.validateArchive(); err != nil {
		return nil, err
	}
	if o.producer == nil {
		if err := cfg.validateProducer(o.schema); err != nil {
			return nil, err
		}
	}

	repoPath := resolveRepository(cfg, o)
	store, err := git.Open(git.Config{
		Path:        repoPath,
		AutoInit:    o.autoInit,
		Bare:        cfg.Bare,
		Branch:      cfg.Branch,
		AuthorName:  cfg.Author.Name,
		AuthorEmail: cfg.Author.Email,
		Schema:      o.schema,
		Logger:      o.logger,
	})
	if err != nil {
		return nil, err
	}

	// An injected source carries no mapping index; mapping placeholders
	// then expand to nothing.
	placeholders := func(core.Version) map[string]string { return manifest.Mapping{}.Placeholders() }
	source := o.source
	if source == nil {
		ms := &manifest.Source{
			Location: cfg.ManifestLocation(),
			Client:   o.httpClient,
			Filter:   cfg.Filter(),
			Logger:   o.logger,
			Mappings: cfg.Producer.Mappings,
		}
		placeholders = ms.Placeholders
		source = ms
	}

	prod := o.producer
	if prod == nil {
		cmd, err := newProducer(cfg, o, placeholders)
		if err != nil {
			return nil, err
		}
		prod = cmd
	}

	driver, err := archive.New(
		archive.WithStore(store),
		archive.WithProducer(prod),
		archive.WithVersionSource(source),
		archive.WithSchema(o.schema),
		archive.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	return &Archive{Config: cfg, Store: store, Driver: driver}, nil
}

func resolveRepository(cfg Config, o *options) string {
	path := cfg.Resolve(cfg.Repository)
	useTemp := o.forceTemp || (o.devSafety && IsDevRun())
	resolved := ResolveRepositoryPath(path, useTemp)

	if o.logger != nil && resolved != path {
		o.logger.Warn("running in SAFE MODE (dev sandbox), repository re-rooted", "original_path", path, "resolved_path", resolved)
	}
	return resolved
}

func newProducer(cfg Config, o *options, placeholders func(core.Version) map[string]string) (*producer.Command, error) {
	p := cfg.Producer

	kinds := make(map[string]producer.Task, len(p.Kinds))
	for id, task := range p.Kinds {
		kinds[id] = producer.Task{Args: task.Args, Output: task.Output}
	}

	pc := producer.Config{
		WorkDir:        cfg.Resolve(p.WorkDir),
		Executable:     resolveExecutable(cfg, p.Executable),
		Args:           p.Args,
		Prepare:        p.Prepare,
		PropertiesFile: p.PropertiesFile,
		Properties:     p.Properties,
		Placeholders:   placeholders,
		Env:            p.Env,
		Kinds:          kinds,
		Logger:         o.logger,
	}
	if p.Executable == "" {
		pc.Toolchain = &producer.Toolchain{
			URL:        p.Toolchain.URL,
			Dir:        cfg.Resolve(p.Toolchain.Dir),
			Executable: p.Toolchain.Executable,
			Client:     o.httpClient,
			Logger:     o.logger,
		}
	}

	cmd, err := producer.New(pc)
	if err != nil {
		return nil, core.Tag(core.ErrConfig, "wire producer", "", err)
	}
	return cmd, nil
}

// resolveExecutable treats bare names as PATH lookups and anything with a
// separator as a path relative to the config file.
func resolveExecutable(cfg Config, exe string) string {
	if !strings.ContainsAny(exe, `/\`) {
		return exe
	}
	return cfg.Resolve(exe)
}
