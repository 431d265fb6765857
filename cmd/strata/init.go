package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/strata"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default strata.toml and create the archive repository",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var dir string
		if len(args) == 1 {
			dir = args[0]
		} else {
			wd, err := os.Getwd()
			if err != nil {
				fatal("Failed to get CWD", err)
			}
			dir = wd
		}

		path, err := strata.Init(dir, strata.WithLogger(slog.Default()))
		if err != nil {
			fatal("Failed to initialize workspace", err)
		}

		fmt.Println("Initialized strata workspace, config at", important(path))
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
