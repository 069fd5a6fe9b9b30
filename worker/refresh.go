package worker

import (
	"context"
	"log/slog"
	"time"

	"social-ingest/internal/ingest"
)

// Rotator trims a topic table's oldest day; *storage.PostgresSink
// satisfies it.
type Rotator interface {
	DeleteOldestDay(ctx context.Context, table string) (int64, error)
	OldestDay(ctx context.Context, table string) (time.Time, bool, error)
}

// Bookkeeper records per-table refresh watermarks; *storage.RedisStore
// satisfies it. Optional.
type Bookkeeper interface {
	MarkRefreshed(ctx context.Context, table string, at time.Time) error
	LastRefreshed(ctx context.Context, table string) (time.Time, bool, error)
}

// Runner is the ingestion entry point the refresher drives.
type Runner interface {
	Run(ctx context.Context, groups []ingest.Group, cutoff time.Time) error
}

// DailyRefresher keeps every topic table a rolling N-day window: once per
// UTC day it drops each table's oldest day and ingests the most recent
// one. A catch-up pass runs immediately at startup so a restarted daemon
// does not wait until midnight.
type DailyRefresher struct {
	Pipeline Runner
	Rotator  Rotator
	Book     Bookkeeper
	Groups   []ingest.Group
	Now      func() time.Time
}

func (w *DailyRefresher) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// nextMidnightUTC returns the first UTC midnight strictly after t.
func nextMidnightUTC(t time.Time) time.Time {
	t = t.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.Add(24 * time.Hour)
}

func (w *DailyRefresher) Start(ctx context.Context) error {
	w.runOnce(ctx)

	for {
		wake := nextMidnightUTC(w.now())
		t := time.NewTimer(wake.Sub(w.now()))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce rotates every table, then ingests the last 24 hours. Rotation
// failures are per-table: a table that cannot be trimmed still gets fresh
// rows, it just carries an extra day until the next successful rotation.
func (w *DailyRefresher) runOnce(ctx context.Context) {
	started := w.now().UTC()
	for _, g := range w.Groups {
		w.rotate(ctx, g.Table)
	}

	cutoff := started.Add(-24 * time.Hour)
	if err := w.Pipeline.Run(ctx, w.Groups, cutoff); err != nil {
		slog.Error("daily-refresh: ingestion finished with failures", "error", err)
	}

	if w.Book != nil {
		for _, g := range w.Groups {
			if err := w.Book.MarkRefreshed(ctx, g.Table, started); err != nil {
				slog.Warn("daily-refresh: watermark write failed", "table", g.Table, "error", err)
			}
		}
	}
	slog.Info("daily-refresh: cycle complete",
		"tables", len(w.Groups), "cutoff", cutoff.Format(time.RFC3339), "elapsed", time.Since(started).Round(time.Millisecond))
}

func (w *DailyRefresher) rotate(ctx context.Context, table string) {
	if w.Book != nil {
		if last, ok, err := w.Book.LastRefreshed(ctx, table); err == nil && ok {
			if gap := w.now().UTC().Sub(last); gap > 48*time.Hour {
				slog.Warn("daily-refresh: table missed cycles", "table", table, "last_refreshed", last.Format(time.RFC3339))
			}
		}
	}
	if oldest, ok, err := w.Rotator.OldestDay(ctx, table); err == nil && ok {
		slog.Info("daily-refresh: rotating", "table", table, "oldest", oldest.Format(time.RFC3339))
	}
	deleted, err := w.Rotator.DeleteOldestDay(ctx, table)
	if err != nil {
		slog.Error("daily-refresh: rotation failed", "table", table, "error", err)
		return
	}
	slog.Info("daily-refresh: oldest day dropped", "table", table, "rows", deleted)
}
