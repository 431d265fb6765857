package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/archive"
	"github.com/spf13/cobra"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Archive every configured version, regenerating only stale artifacts",
	Long: `Run walks the configured versions oldest first. Versions whose recorded
schema versions are all current are retagged onto the rebuilt branch as they
are; the others are sent to the producer for the stale kinds only.

Interrupting a run leaves every tag written so far intact; the next run
resumes from them.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := strata.Run(ctx, configPath, strata.WithLogger(slog.Default()))
		if err != nil {
			fatal("Run failed", err)
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				fatal("Failed to encode report", err)
			}
			return
		}

		for _, o := range report.Outcomes {
			if o.State == archive.StateCommitted {
				fmt.Printf("%-24s %s %v\n", o.Version, success(string(o.State)), o.Regenerated)
				continue
			}
			fmt.Printf("%-24s %s\n", o.Version, muted(string(o.State)))
		}
		fmt.Printf("\n%s committed, %s retagged in %s, head %s\n",
			important(fmt.Sprint(report.Count(archive.StateCommitted))),
			important(fmt.Sprint(report.Count(archive.StateRetagged))),
			report.Finished.Sub(report.Started).Round(time.Millisecond),
			report.Head,
		)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run report as JSON")
	rootCmd.AddCommand(runCmd)
}
