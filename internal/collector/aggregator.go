package collector

import (
	"context"
	"log/slog"

	"social-ingest/internal/metrics"
	"social-ingest/internal/model"
	"social-ingest/internal/pace"
	"social-ingest/internal/telegram"
	"social-ingest/internal/vk"
)

// wallCommentsAPI is the slice of the VK client the aggregator uses.
type wallCommentsAPI interface {
	CommentsBatch(ctx context.Context, ownerID int64, postIDs []int64, perPost int) (map[int64]vk.Thread, error)
}

// VKCommentAggregator batches post ids into composite execute calls, at
// most BatchSize per request.
type VKCommentAggregator struct {
	API        wallCommentsAPI
	Pacer      *pace.Pacer
	OwnerID    int64
	BatchSize  int
	PerPostCap int
}

func (a *VKCommentAggregator) batchSize() int {
	if a.BatchSize > 0 {
		return a.BatchSize
	}
	return 25
}

func (a *VKCommentAggregator) perPost() int {
	if a.PerPostCap > 0 {
		return a.PerPostCap
	}
	return 100
}

// FetchComments resolves threads for postIDs in ceil(len/BatchSize)
// composite requests. A failed batch logs and maps its ids to empty
// threads; the remaining batches still run.
func (a *VKCommentAggregator) FetchComments(ctx context.Context, postIDs []int64) (map[int64]Comments, error) {
	out := make(map[int64]Comments, len(postIDs))
	size := a.batchSize()
	for i := 0; i < len(postIDs); i += size {
		j := i + size
		if j > len(postIDs) {
			j = len(postIDs)
		}
		chunk := postIDs[i:j]
		metrics.CommentBatches.WithLabelValues(string(model.SourceVK)).Inc()
		threads, err := pace.Do(ctx, a.Pacer, func(ctx context.Context) (map[int64]vk.Thread, error) {
			return a.API.CommentsBatch(ctx, a.OwnerID, chunk, a.perPost())
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			slog.Warn("comment batch failed, continuing without",
				"source", model.SourceVK, "owner_id", a.OwnerID, "posts", len(chunk), "error", err)
			metrics.StageErrors.WithLabelValues("comments").Inc()
			for _, id := range chunk {
				out[id] = Comments{}
			}
			continue
		}
		for _, id := range chunk {
			out[id] = JoinComments(threads[id].Texts)
		}
	}
	return out, nil
}

// repliesAPI is the slice of the Telegram client the aggregator uses.
type repliesAPI interface {
	Replies(ctx context.Context, username string, messageID int64, limit int) ([]telegram.Message, error)
}

// TelegramCommentAggregator fetches reply threads one message at a time;
// the gateway has no composite call.
type TelegramCommentAggregator struct {
	API        repliesAPI
	Pacer      *pace.Pacer
	Username   string
	PerPostCap int
}

func (a *TelegramCommentAggregator) perPost() int {
	if a.PerPostCap > 0 {
		return a.PerPostCap
	}
	return 100
}

// FetchComments resolves reply threads for postIDs. A failed lookup maps
// that id to an empty thread and moves on.
func (a *TelegramCommentAggregator) FetchComments(ctx context.Context, postIDs []int64) (map[int64]Comments, error) {
	out := make(map[int64]Comments, len(postIDs))
	for _, id := range postIDs {
		metrics.CommentBatches.WithLabelValues(string(model.SourceTelegram)).Inc()
		replies, err := pace.Do(ctx, a.Pacer, func(ctx context.Context) ([]telegram.Message, error) {
			return a.API.Replies(ctx, a.Username, id, a.perPost())
		})
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			slog.Warn("reply thread failed, continuing without",
				"source", model.SourceTelegram, "channel", a.Username, "message_id", id, "error", err)
			metrics.StageErrors.WithLabelValues("comments").Inc()
			out[id] = Comments{}
			continue
		}
		texts := make([]string, 0, len(replies))
		for _, r := range replies {
			texts = append(texts, r.Text)
		}
		out[id] = JoinComments(texts)
	}
	return out, nil
}
