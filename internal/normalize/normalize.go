// Package normalize maps each platform's raw post record into the
// canonical row shape. Pure mapping, no I/O.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"social-ingest/internal/model"
)

// ErrBadTimestamp is returned for records whose provider timestamp cannot
// be interpreted; such records are dropped, never defaulted to "now".
var ErrBadTimestamp = errors.New("normalize: unparsable post timestamp")

// mapping is one row of the column correspondence table: the canonical
// column and the native field it comes from on each platform. An empty
// native name means the platform does not report the field and the
// canonical default applies (0 for counters, "" for text).
type mapping struct {
	Canonical string
	VK        string
	Telegram  string
}

// columnMap is the explicit field-correspondence table between the
// platform schemas and the canonical schema. Its order fixes the
// canonical column order so downstream DDL stays stable.
var columnMap = []mapping{
	{"source_type", "type", "type"},
	{"channel_url", "group_link", "channel_url"},
	{"post_id", "post_id", "post_id"},
	{"posted_at", "date", "date"},
	{"text", "text", "text"},
	{"views", "views", "views"},
	{"forwards", "reposts", "forwards"},
	{"reactions", "likes", "reactions"},
	{"comments_text", "all_comments", "all_comments"},
	{"comment_count", "count_comments", "count_comments"},
	{"sentiment", "", ""},
	{"table_name", "table_name", "table_name"},
}

// Columns returns the canonical column order, de-duplicating any mapping
// collisions while keeping the first occurrence.
func Columns() []string {
	seen := make(map[string]struct{}, len(columnMap))
	out := make([]string, 0, len(columnMap))
	for _, m := range columnMap {
		if _, ok := seen[m.Canonical]; ok {
			continue
		}
		seen[m.Canonical] = struct{}{}
		out = append(out, m.Canonical)
	}
	return out
}

// Canonical maps one raw platform record into a CanonicalPost bound to
// the given topic table. One normalization path exists per variant of the
// RawPost union.
func Canonical(raw model.RawPost, table string) (model.CanonicalPost, error) {
	switch p := raw.(type) {
	case model.VKPost:
		at, err := postedAt(p.Date)
		if err != nil {
			return model.CanonicalPost{}, fmt.Errorf("vk post %d: %w", p.ID, err)
		}
		return model.CanonicalPost{
			SourceType:   model.SourceVK,
			ChannelURL:   p.GroupLink,
			PostID:       strconv.FormatInt(p.ID, 10),
			PostedAt:     at,
			Text:         p.Text,
			Views:        nonNegative(p.Views),
			Forwards:     nonNegative(p.Reposts),
			Reactions:    nonNegative(p.Likes),
			CommentsText: p.CommentsText,
			CommentCount: nonNegative(p.CommentCount),
			Sentiment:    model.SentimentUnset,
			TableName:    table,
		}, nil
	case model.TelegramPost:
		at, err := postedAt(p.Date)
		if err != nil {
			return model.CanonicalPost{}, fmt.Errorf("telegram post %d: %w", p.ID, err)
		}
		return model.CanonicalPost{
			SourceType:   model.SourceTelegram,
			ChannelURL:   p.ChannelURL,
			PostID:       strconv.FormatInt(p.ID, 10),
			PostedAt:     at,
			Text:         p.Text,
			Views:        nonNegative(p.Views),
			Forwards:     nonNegative(p.Forwards),
			Reactions:    nonNegative(p.Reactions),
			CommentsText: p.CommentsText,
			CommentCount: nonNegative(p.CommentCount),
			Sentiment:    model.SentimentUnset,
			TableName:    table,
		}, nil
	default:
		return model.CanonicalPost{}, fmt.Errorf("normalize: unknown raw post variant %T", raw)
	}
}

func postedAt(unix int64) (time.Time, error) {
	if unix <= 0 {
		return time.Time{}, ErrBadTimestamp
	}
	return time.Unix(unix, 0).UTC(), nil
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
