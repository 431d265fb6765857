package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/strata/pkg/core"
	"github.com/spf13/cobra"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the artifact kinds and their current schema versions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, k := range core.DefaultSchema.Kinds() {
			fmt.Printf("%s v%d\n", important(k.ID), k.Version)
			fmt.Printf("  path:       %s\n", k.Path)
			fmt.Printf("  ledger key: %s\n", k.LedgerKey)
			if len(k.Aliases) > 0 {
				fmt.Printf("  aliases:    %s\n", strings.Join(k.Aliases, ", "))
			}
			if k.Description != "" {
				fmt.Printf("  %s\n", muted(k.Description))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}
