package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"social-ingest/internal/ingest"
)

type fakeRotator struct {
	deleted []string
	failFor string
}

func (r *fakeRotator) DeleteOldestDay(ctx context.Context, table string) (int64, error) {
	if table == r.failFor {
		return 0, errors.New("relation is locked")
	}
	r.deleted = append(r.deleted, table)
	return 42, nil
}

func (r *fakeRotator) OldestDay(ctx context.Context, table string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

type fakeRunner struct {
	cutoffs []time.Time
	groups  [][]ingest.Group
}

func (r *fakeRunner) Run(ctx context.Context, groups []ingest.Group, cutoff time.Time) error {
	r.cutoffs = append(r.cutoffs, cutoff)
	r.groups = append(r.groups, groups)
	return nil
}

func TestNextMidnightUTC(t *testing.T) {
	at := time.Date(2024, 3, 10, 22, 15, 0, 0, time.UTC)
	want := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if got := nextMidnightUTC(at); !got.Equal(want) {
		t.Fatalf("nextMidnightUTC = %v, want %v", got, want)
	}
	// Exactly midnight schedules the following midnight, not itself.
	if got := nextMidnightUTC(want); !got.Equal(want.Add(24 * time.Hour)) {
		t.Fatalf("nextMidnightUTC at midnight = %v", got)
	}
}

func TestRunOnceRotatesThenIngests(t *testing.T) {
	now := time.Date(2024, 3, 11, 0, 0, 5, 0, time.UTC)
	rot := &fakeRotator{}
	run := &fakeRunner{}
	w := &DailyRefresher{
		Pipeline: run,
		Rotator:  rot,
		Groups:   []ingest.Group{{Topic: "a", Table: "a"}, {Topic: "b", Table: "b"}},
		Now:      func() time.Time { return now },
	}
	w.runOnce(context.Background())

	if len(rot.deleted) != 2 {
		t.Fatalf("rotated %d tables, want 2", len(rot.deleted))
	}
	if len(run.cutoffs) != 1 {
		t.Fatalf("ingestion ran %d times, want 1", len(run.cutoffs))
	}
	if want := now.Add(-24 * time.Hour); !run.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff = %v, want %v", run.cutoffs[0], want)
	}
}

func TestRunOnceRotationFailureDoesNotBlockIngest(t *testing.T) {
	rot := &fakeRotator{failFor: "stuck"}
	run := &fakeRunner{}
	w := &DailyRefresher{
		Pipeline: run,
		Rotator:  rot,
		Groups:   []ingest.Group{{Topic: "stuck", Table: "stuck"}, {Topic: "ok", Table: "ok"}},
		Now:      time.Now,
	}
	w.runOnce(context.Background())

	if len(run.groups) != 1 || len(run.groups[0]) != 2 {
		t.Fatalf("ingestion did not cover both groups: %v", run.groups)
	}
	if len(rot.deleted) != 1 || rot.deleted[0] != "ok" {
		t.Fatalf("deleted = %v, want only the healthy table", rot.deleted)
	}
}

func TestStartRunsCatchUpPassThenStops(t *testing.T) {
	rot := &fakeRotator{}
	run := &fakeRunner{}
	w := &DailyRefresher{
		Pipeline: run,
		Rotator:  rot,
		Groups:   []ingest.Group{{Topic: "a", Table: "a"}},
		Now:      time.Now,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(run.cutoffs) != 1 {
		t.Fatalf("catch-up pass ran %d times, want 1", len(run.cutoffs))
	}
}
