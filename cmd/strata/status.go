package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/strata"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	statusFormat string
	statusState  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the archive holds and what a run would regenerate",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := slog.Default()

		if statusState {
			path, err := resolveConfig()
			if err != nil {
				fatal("Failed to find config", err)
			}
			cfg, err := strata.LoadConfig(path)
			if err != nil {
				fatal("Failed to load config", err)
			}
			a, err := strata.Open(cfg, strata.WithAutoInit(false), strata.WithLogger(logger))
			if err != nil {
				fatal("Failed to open archive", err)
			}
			state := map[string]any{
				a.Store.ComponentType():  a.Store.State(),
				a.Driver.ComponentType(): a.Driver.State(),
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(state); err != nil {
				fatal("Failed to encode state", err)
			}
			return
		}

		statuses, err := strata.Status(ctx, configPath, strata.WithLogger(logger))
		if err != nil {
			fatal("Status failed", err)
		}

		switch statusFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(statuses); err != nil {
				fatal("Failed to encode status", err)
			}
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(statuses); err != nil {
				fatal("Failed to encode status", err)
			}
			enc.Close()
		case "text":
			pending := 0
			for _, st := range statuses {
				switch {
				case !st.Archived:
					pending++
					fmt.Printf("%-24s %s\n", st.Version, warning("missing"))
				case len(st.Stale) > 0:
					pending++
					fmt.Printf("%-24s %s %s\n", st.Version, warning("stale"), strings.Join(st.Stale, ", "))
				default:
					fmt.Printf("%-24s %s %s\n", st.Version, success("current"), muted(st.Commit[:12]))
				}
			}
			fmt.Printf("\n%s of %d versions need building\n", important(fmt.Sprint(pending)), len(statuses))
		default:
			fatal("Invalid format", fmt.Errorf("unknown format %q, expected text, json or yaml", statusFormat))
		}
	},
}

// resolveConfig returns --config or the strata.toml found above the working directory.
func resolveConfig() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := strata.FindRoot(wd)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, strata.ConfigFileName), nil
}

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "text", "Output format: text, json or yaml")
	statusCmd.Flags().BoolVar(&statusState, "state", false, "Print the internal state of the store and driver instead")
	rootCmd.AddCommand(statusCmd)
}
