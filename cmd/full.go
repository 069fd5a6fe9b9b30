package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var fullDays int

// fullCmd runs one backfill pass over the last N days and exits.
var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run a one-shot backfill over the last N days",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		days := fullDays
		if days <= 0 {
			days = rt.cfg.Ingest.DaysBack
		}
		cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
		return rt.pipeline.Run(ctx, rt.groups, cutoff)
	},
}

func init() {
	fullCmd.Flags().IntVar(&fullDays, "days", 0, "days of history to collect (default: ingest.days_back)")
	rootCmd.AddCommand(fullCmd)
}
