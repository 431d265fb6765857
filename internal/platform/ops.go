package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/strata/pkg/archive"
	"github.com/aretw0/strata/pkg/core"
)

// Init prepares dir as a strata workspace: it writes a default strata.toml
// unless one exists and creates the repository it points at.
// It returns the path of the config file.
func Init(dir string, opts ...Option) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &core.Error{Kind: core.ErrConfig, Op: "init", Path: dir, Err: err}
	}

	path := filepath.Join(dir, ConfigFileName)
	if !hasFile(dir, ConfigFileName) {
		if err := WriteConfig(path, DefaultConfig()); err != nil {
			return "", &core.Error{Kind: core.ErrConfig, Op: "init", Path: path, Err: err}
		}
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return "", err
	}

	// The repository is created as a side effect of opening it.
	if _, err := Open(cfg, append(opts[:len(opts):len(opts)], WithAutoInit(true))...); err != nil {
		return "", err
	}
	return path, nil
}

// Run loads the config at configPath and archives every version its source
// lists.
func Run(ctx context.Context, configPath string, opts ...Option) (*archive.Report, error) {
	a, err := load(configPath, opts...)
	if err != nil {
		return nil, err
	}
	return a.Driver.RunFromSource(ctx)
}

// Status loads the config at configPath and reports what the archive holds
// for every version its source lists, without changing anything.
func Status(ctx context.Context, configPath string, opts ...Option) ([]archive.VersionStatus, error) {
	a, err := load(configPath, append(opts[:len(opts):len(opts)], WithAutoInit(false))...)
	if err != nil {
		return nil, err
	}
	return a.Driver.StatusFromSource(ctx)
}

func load(configPath string, opts ...Option) (*Archive, error) {
	if configPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		found, err := FindConfig(wd)
		if err != nil {
			return nil, core.NewError(core.ErrConfig, "find config", err)
		}
		configPath = found
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return Open(cfg, opts...)
}
