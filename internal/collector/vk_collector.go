package collector

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"social-ingest/internal/metrics"
	"social-ingest/internal/model"
	"social-ingest/internal/pace"
	"social-ingest/internal/vk"
)

// wallAPI is the slice of the VK client the collector uses.
type wallAPI interface {
	ResolveOwner(ctx context.Context, groupURL string) (int64, error)
	WallPage(ctx context.Context, ownerID int64, offset, count int) ([]vk.WallItem, error)
	CommentsBatch(ctx context.Context, ownerID int64, postIDs []int64, perPost int) (map[int64]vk.Thread, error)
}

// ResolutionCache caches owner-id lookups across runs. Optional; a nil
// cache means every run resolves fresh.
type ResolutionCache interface {
	GetOwnerID(ctx context.Context, source, name string) (int64, bool, error)
	SetOwnerID(ctx context.Context, source, name string, id int64, ttl time.Duration) error
}

const resolveTTL = 24 * time.Hour

// VKCollector walks a community wall backward by offset until posts fall
// below the cutoff.
type VKCollector struct {
	API        wallAPI
	Pacer      *pace.Pacer
	Cache      ResolutionCache
	PageSize   int
	BatchSize  int
	CommentCap int
}

func (c *VKCollector) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return 100
}

func (c *VKCollector) resolve(ctx context.Context, link string) (int64, error) {
	if c.Cache != nil {
		if id, ok, err := c.Cache.GetOwnerID(ctx, string(model.SourceVK), link); err == nil && ok {
			return id, nil
		}
	}
	id, err := pace.Do(ctx, c.Pacer, func(ctx context.Context) (int64, error) {
		return c.API.ResolveOwner(ctx, link)
	})
	if err != nil {
		return 0, err
	}
	if c.Cache != nil {
		if cerr := c.Cache.SetOwnerID(ctx, string(model.SourceVK), link, id, resolveTTL); cerr != nil {
			slog.Warn("resolution cache write failed", "source", model.SourceVK, "link", link, "error", cerr)
		}
	}
	return id, nil
}

// Collect walks the wall newest-first and returns every post dated inside
// [cutoff, now], each with its comment thread attached. An unresolvable
// group logs and returns empty. Unreadable pages are skipped and the walk
// continues at the next offset, up to maxSkippedPages in a row.
func (c *VKCollector) Collect(ctx context.Context, link string, cutoff time.Time) ([]model.RawPost, error) {
	owner, err := c.resolve(ctx, link)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("group resolution failed, skipping source",
			"source", model.SourceVK, "link", link, "error", err)
		metrics.StageErrors.WithLabelValues("resolve").Inc()
		return nil, nil
	}

	agg := &VKCommentAggregator{
		API:        c.API,
		Pacer:      c.Pacer,
		OwnerID:    owner,
		BatchSize:  c.BatchSize,
		PerPostCap: c.CommentCap,
	}

	cutoffUnix := cutoff.Unix()
	size := c.pageSize()
	seen := make(map[int64]struct{})
	var out []model.RawPost
	skipped := 0

	for offset := 0; ; offset += size {
		items, err := pace.Do(ctx, c.Pacer, func(ctx context.Context) ([]vk.WallItem, error) {
			return c.API.WallPage(ctx, owner, offset, size)
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			slog.Warn("wall page unreadable, skipping",
				"source", model.SourceVK, "link", link, "offset", offset, "error", err)
			metrics.StageErrors.WithLabelValues("fetch").Inc()
			skipped++
			if skipped >= maxSkippedPages {
				break
			}
			continue
		}
		skipped = 0
		metrics.PagesFetched.WithLabelValues(string(model.SourceVK)).Inc()
		if len(items) == 0 {
			break
		}

		// Pinned posts sit first regardless of date; they never end the
		// walk, only genuinely old posts do.
		reachedCutoff := false
		kept := make([]vk.WallItem, 0, len(items))
		for _, it := range items {
			if it.Date < cutoffUnix {
				if it.IsPinned == 0 {
					reachedCutoff = true
				}
				continue
			}
			if _, dup := seen[it.ID]; dup {
				continue
			}
			seen[it.ID] = struct{}{}
			kept = append(kept, it)
		}

		posts, err := c.buildPosts(ctx, agg, link, kept)
		if err != nil {
			return out, err
		}
		out = append(out, posts...)
		if reachedCutoff {
			break
		}
	}
	metrics.PostsEmitted.WithLabelValues(string(model.SourceVK)).Add(float64(len(out)))
	return out, nil
}

// buildPosts attaches comment threads to a page's kept items and rewrites
// mention markup concurrently. Output preserves the page's newest-first
// order.
func (c *VKCollector) buildPosts(ctx context.Context, agg *VKCommentAggregator, link string, items []vk.WallItem) ([]model.RawPost, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	threads, err := agg.FetchComments(ctx, ids)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(items))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			texts[i] = vk.RewriteMentions(it.Text)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.RawPost, 0, len(items))
	for i, it := range items {
		cm := threads[it.ID]
		out = append(out, model.VKPost{
			ID:           it.ID,
			Date:         it.Date,
			Text:         texts[i],
			Likes:        it.Likes.Count,
			Reposts:      it.Reposts.Count,
			Views:        it.Views.Count,
			GroupLink:    link,
			CommentsText: cm.Text,
			CommentCount: cm.Count,
		})
	}
	return out, nil
}
