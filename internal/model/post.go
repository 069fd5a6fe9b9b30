package model

import "time"

// SourceType identifies the platform a post originated from.
type SourceType string

const (
	SourceVK       SourceType = "vk"
	SourceTelegram SourceType = "tg"
)

// SentimentLabel is the enrichment outcome for a post's comment thread.
type SentimentLabel string

const (
	SentimentUnset    SentimentLabel = ""
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
	SentimentPositive SentimentLabel = "positive"
)

// CommentDelimiter joins individual comment bodies inside CommentsText.
// The ASCII record separator cannot be typed into a post or comment on
// either platform, so the sequence never collides with user content and
// splits back losslessly.
const CommentDelimiter = "\n\x1e\n"

// CanonicalPost is the unified row shape all platform records are mapped
// into before storage. Once enriched it is immutable; stages hand new
// values downstream instead of mutating in place.
type CanonicalPost struct {
	SourceType   SourceType     `json:"source_type"`
	ChannelURL   string         `json:"channel_url"`
	PostID       string         `json:"post_id"`
	PostedAt     time.Time      `json:"posted_at"` // always UTC
	Text         string         `json:"text"`
	Views        int64          `json:"views"`
	Forwards     int64          `json:"forwards"`
	Reactions    int64          `json:"reactions"`
	CommentsText string         `json:"comments_text"`
	CommentCount int64          `json:"comment_count"`
	Sentiment    SentimentLabel `json:"sentiment"`
	TableName    string         `json:"table_name"`
}

// RawPost is the tagged union of per-platform post records. Exactly one
// normalization path exists per variant; see internal/normalize.
type RawPost interface {
	Source() SourceType
}

// VKPost is a raw wall post as returned by the VK API, with its comment
// thread already aggregated.
type VKPost struct {
	ID           int64
	Date         int64 // unix seconds as reported by the provider
	Text         string
	Likes        int64
	Reposts      int64
	Views        int64
	GroupLink    string
	CommentsText string
	CommentCount int64
}

func (VKPost) Source() SourceType { return SourceVK }

// TelegramPost is a raw channel message with its reply thread aggregated.
type TelegramPost struct {
	ID           int64
	Date         int64 // unix seconds as reported by the provider
	Text         string
	Views        int64
	Forwards     int64
	Reactions    int64
	ChannelURL   string
	CommentsText string
	CommentCount int64
}

func (TelegramPost) Source() SourceType { return SourceTelegram }
