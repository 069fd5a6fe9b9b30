// Package ingest orchestrates a run: fan out over topic groups, collect
// each source inside the window, normalize, enrich, and persist.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"social-ingest/internal/collector"
	"social-ingest/internal/metrics"
	"social-ingest/internal/model"
	"social-ingest/internal/normalize"
	"social-ingest/internal/sentiment"
)

// Sink is where finished batches go. *storage.PostgresSink satisfies it.
type Sink interface {
	SaveBatch(ctx context.Context, table string, posts []model.CanonicalPost) error
}

// Pipeline wires the per-platform collectors to the classifier and sink.
type Pipeline struct {
	Collectors  map[model.SourceType]collector.Collector
	Classifier  sentiment.Classifier
	Sink        Sink
	Concurrency int // groups processed in parallel
}

func (p *Pipeline) concurrency() int {
	if p.Concurrency > 0 {
		return p.Concurrency
	}
	return 4
}

// Run processes every group against the window [cutoff, now]. Groups are
// independent: one group's storage or collection failure is logged and
// reported in the joined error, but never stops its siblings. A second
// Run over the same window is a no-op at the storage layer.
func (p *Pipeline) Run(ctx context.Context, groups []Group, cutoff time.Time) error {
	runID := uuid.NewString()
	started := time.Now()
	slog.Info("ingestion run started",
		"run_id", runID, "groups", len(groups), "cutoff", cutoff.UTC().Format(time.RFC3339))

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())
	for _, group := range groups {
		group := group
		g.Go(func() error {
			if err := p.runGroup(gctx, runID, group, cutoff); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("group %s: %w", group.Topic, err))
				mu.Unlock()
			}
			return nil // group failures do not cancel siblings
		})
	}
	_ = g.Wait()

	slog.Info("ingestion run finished",
		"run_id", runID, "elapsed", time.Since(started).Round(time.Millisecond), "failed_groups", len(errs))
	metrics.RunsCompleted.Inc()
	return errors.Join(errs...)
}

// runGroup walks one topic through the stage sequence. Collection output
// is accumulated per source slot and concatenated in list order, so two
// runs over identical provider state produce identical batches no matter
// how the goroutines interleave.
func (p *Pipeline) runGroup(ctx context.Context, runID string, group Group, cutoff time.Time) error {
	log := slog.With("run_id", runID, "topic", group.Topic, "table", group.Table)
	if len(group.Sources) == 0 {
		log.Warn("group has no sources, nothing to ingest")
		return nil
	}

	log.Info("group stage", "stage", "fetching", "sources", len(group.Sources))
	slots := make([][]model.RawPost, len(group.Sources))
	var collectErr error
	var mu sync.Mutex
	cg, cgctx := errgroup.WithContext(ctx)
	cg.SetLimit(p.concurrency())
	for i, src := range group.Sources {
		i, src := i, src
		cg.Go(func() error {
			col, ok := p.Collectors[src.Type]
			if !ok {
				log.Warn("no collector for source type", "source", src.Type, "link", src.Link)
				return nil
			}
			posts, err := col.Collect(cgctx, src.Link, cutoff)
			slots[i] = posts // partial output is kept even on error
			if err != nil {
				mu.Lock()
				collectErr = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = cg.Wait()

	var raw []model.RawPost
	for _, s := range slots {
		raw = append(raw, s...)
	}

	// A cancelled run still flushes whatever the collectors gathered; a
	// full restart is expensive. The remaining stages run on a detached,
	// bounded context.
	tailCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		tailCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
	}

	log.Info("group stage", "stage", "normalizing", "raw_posts", len(raw))
	rows := make([]model.CanonicalPost, 0, len(raw))
	for _, r := range raw {
		row, err := normalize.Canonical(r, group.Table)
		if err != nil {
			log.Warn("dropping unnormalizable post", "error", err)
			metrics.StageErrors.WithLabelValues("normalize").Inc()
			continue
		}
		rows = append(rows, row)
	}

	log.Info("group stage", "stage", "enriching", "rows", len(rows))
	rows = sentiment.Enrich(tailCtx, p.Classifier, rows)

	if len(rows) == 0 {
		log.Info("group stage", "stage", "ready", "rows", 0)
		return collectErr
	}
	if err := p.Sink.SaveBatch(tailCtx, group.Table, rows); err != nil {
		log.Error("group stage", "stage", "failed", "error", err)
		metrics.StageErrors.WithLabelValues("store").Inc()
		return err
	}
	log.Info("group stage", "stage", "ready", "rows", len(rows))
	return collectErr
}
