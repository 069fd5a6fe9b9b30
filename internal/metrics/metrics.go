// Package metrics exposes ingestion counters; the daily worker can serve
// them on an optional /metrics listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_pages_fetched_total",
		Help: "Provider pages fetched, by source.",
	}, []string{"source"})

	PostsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_posts_emitted_total",
		Help: "Canonical posts emitted by collectors, by source.",
	}, []string{"source"})

	CommentBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_comment_batches_total",
		Help: "Batched comment requests issued, by source.",
	}, []string{"source"})

	StageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_stage_errors_total",
		Help: "Recovered errors, by pipeline stage.",
	}, []string{"stage"})

	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_runs_completed_total",
		Help: "Full ingestion runs completed.",
	})
)

// Serve runs a /metrics listener until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
