package collector

import (
	"context"
	"log/slog"
	"time"

	"social-ingest/internal/metrics"
	"social-ingest/internal/model"
	"social-ingest/internal/pace"
	"social-ingest/internal/telegram"
)

// messageAPI is the slice of the Telegram client the collector uses.
type messageAPI interface {
	Resolve(ctx context.Context, channelURL string) (string, error)
	History(ctx context.Context, username string, offsetID int64, limit int) ([]telegram.Message, error)
	Replies(ctx context.Context, username string, messageID int64, limit int) ([]telegram.Message, error)
}

// TelegramCollector walks a channel backward by offset id until messages
// fall below the cutoff.
type TelegramCollector struct {
	API        messageAPI
	Pacer      *pace.Pacer
	PageSize   int
	CommentCap int
}

func (c *TelegramCollector) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return 100
}

// Collect walks channel history newest-first and returns every message
// dated inside [cutoff, now], with reply threads attached for messages
// that have any. An unresolvable channel logs and returns empty. Unlike
// the offset-addressed wall walk, an unreadable history page ends the
// walk: the cursor is the last message id of the previous page, so there
// is no position to resume from past a failed page.
func (c *TelegramCollector) Collect(ctx context.Context, link string, cutoff time.Time) ([]model.RawPost, error) {
	username, err := pace.Do(ctx, c.Pacer, func(ctx context.Context) (string, error) {
		return c.API.Resolve(ctx, link)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("channel resolution failed, skipping source",
			"source", model.SourceTelegram, "link", link, "error", err)
		metrics.StageErrors.WithLabelValues("resolve").Inc()
		return nil, nil
	}

	agg := &TelegramCommentAggregator{
		API:        c.API,
		Pacer:      c.Pacer,
		Username:   username,
		PerPostCap: c.CommentCap,
	}

	cutoffUnix := cutoff.Unix()
	size := c.pageSize()
	seen := make(map[int64]struct{})
	var out []model.RawPost
	var offsetID int64

	for {
		msgs, err := pace.Do(ctx, c.Pacer, func(ctx context.Context) ([]telegram.Message, error) {
			return c.API.History(ctx, username, offsetID, size)
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			slog.Warn("history page unreadable, stopping walk",
				"source", model.SourceTelegram, "channel", username, "offset_id", offsetID, "error", err)
			metrics.StageErrors.WithLabelValues("fetch").Inc()
			break
		}
		metrics.PagesFetched.WithLabelValues(string(model.SourceTelegram)).Inc()
		if len(msgs) == 0 {
			break
		}
		offsetID = msgs[len(msgs)-1].ID

		reachedCutoff := false
		kept := make([]telegram.Message, 0, len(msgs))
		for _, m := range msgs {
			if m.Date < cutoffUnix {
				reachedCutoff = true
				continue
			}
			// Service messages (joins, pins) carry no text; skip them.
			if m.Text == "" {
				continue
			}
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			kept = append(kept, m)
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
	metrics.PostsEmitted.WithLabelValues(string(model.SourceTelegram)).Add(float64(len(out)))
	return out, nil
}

// buildPosts fetches reply threads for messages that report any replies
// and assembles raw records in page order.
func (c *TelegramCollector) buildPosts(ctx context.Context, agg *TelegramCommentAggregator, link string, msgs []telegram.Message) ([]model.RawPost, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	var withReplies []int64
	for _, m := range msgs {
		if m.Replies.Replies > 0 {
			withReplies = append(withReplies, m.ID)
		}
	}
	threads, err := agg.FetchComments(ctx, withReplies)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawPost, 0, len(msgs))
	for _, m := range msgs {
		cm := threads[m.ID]
		out = append(out, model.TelegramPost{
			ID:           m.ID,
			Date:         m.Date,
			Text:         m.Text,
			Views:        m.Views,
			Forwards:     m.Forwards,
			Reactions:    m.ReactionTotal(),
			ChannelURL:   link,
			CommentsText: cm.Text,
			CommentCount: cm.Count,
		})
	}
	return out, nil
}
