package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"social-ingest/internal/metrics"
	"social-ingest/worker"
)

// dailyCmd runs the daemon: an immediate catch-up pass, then a rolling
// refresh at every UTC midnight.
var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Run the daily rolling-refresh daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		rt, err := buildRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		refresher := &worker.DailyRefresher{
			Pipeline: rt.pipeline,
			Rotator:  rt.sink,
			Groups:   rt.groups,
		}
		if rt.store != nil {
			refresher.Book = rt.store
		}

		if addr := rt.cfg.Ingest.MetricsAddr; addr != "" {
			go func() {
				slog.Info("metrics listener started", "addr", addr)
				if err := metrics.Serve(ctx, addr); err != nil {
					slog.Error("metrics listener failed", "error", err)
				}
			}()
		}

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			log.Printf("received signal: %s, shutting down", s)
			cancel()
		}()

		mgr := worker.NewManager(refresher)
		return mgr.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(dailyCmd)
}
