package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"social-ingest/internal/redisclient"
	"social-ingest/internal/storage"
)

// pingCmd probes the configured backing stores.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check Postgres and Redis connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		sink, err := storage.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer sink.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "postgres: ok")

		if cfg.Redis.Addr != "" {
			rdb := redisclient.New(cfg.Redis)
			defer rdb.Close()
			if _, err := rdb.Ping(ctx).Result(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "redis: ok")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
