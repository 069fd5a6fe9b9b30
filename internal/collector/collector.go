// Package collector walks platform sources backward in time to a cutoff,
// aggregating each post's comment thread along the way.
package collector

import (
	"context"
	"strings"
	"time"

	"social-ingest/internal/model"
)

// Collector produces the raw posts of one source inside [cutoff, now],
// newest first. A source that cannot be resolved yields an empty result,
// not an error; errors are reserved for cancellation and unrecoverable
// provider failures, and even then the partial result is returned so the
// caller can flush it.
type Collector interface {
	Collect(ctx context.Context, link string, cutoff time.Time) ([]model.RawPost, error)
}

// Comments is one post's aggregated comment thread.
type Comments struct {
	Text  string
	Count int64
}

// CommentAggregator resolves comment threads for a batch of post ids.
// Implementations batch ids into composite provider requests where the
// platform supports it. A failed batch yields empty results for exactly
// the ids of that batch; sibling batches are unaffected.
type CommentAggregator interface {
	FetchComments(ctx context.Context, postIDs []int64) (map[int64]Comments, error)
}

// JoinComments concatenates non-empty comment bodies with the canonical
// delimiter. Count reflects the texts actually joined, not the
// platform's raw total.
func JoinComments(texts []string) Comments {
	kept := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			kept = append(kept, strings.TrimSpace(t))
		}
	}
	return Comments{
		Text:  strings.Join(kept, model.CommentDelimiter),
		Count: int64(len(kept)),
	}
}

// maxSkippedPages bounds how many consecutive unreadable pages a walk
// tolerates before giving up on the source's remainder.
const maxSkippedPages = 3
