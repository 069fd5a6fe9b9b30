// Package sentiment labels comment threads as neutral, negative or
// positive. The classifier is an explicitly injected handle, never
// ambient state.
package sentiment

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"social-ingest/internal/model"
)

// Classifier is the external sentiment model boundary.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.SentimentLabel, error)
}

// enrichWorkers bounds per-batch classifier parallelism. Rows are
// independent, so labeling runs concurrently but writes by index to keep
// output order deterministic.
const enrichWorkers = 8

// Label guards the classifier: empty or whitespace-only input
// short-circuits to neutral without invoking it, and a classifier
// failure or out-of-vocabulary answer degrades to neutral instead of
// killing the row.
func Label(ctx context.Context, c Classifier, text string) model.SentimentLabel {
	if strings.TrimSpace(text) == "" {
		return model.SentimentNeutral
	}
	if c == nil {
		return model.SentimentNeutral
	}
	label, err := c.Classify(ctx, text)
	if err != nil {
		slog.Warn("sentiment: classify failed, defaulting to neutral", "err", err)
		return model.SentimentNeutral
	}
	switch label {
	case model.SentimentNeutral, model.SentimentNegative, model.SentimentPositive:
		return label
	default:
		slog.Warn("sentiment: unexpected label, defaulting to neutral", "label", string(label))
		return model.SentimentNeutral
	}
}

// Enrich returns a new batch with every row's sentiment assigned from its
// aggregated comment text. Input rows are not mutated.
func Enrich(ctx context.Context, c Classifier, posts []model.CanonicalPost) []model.CanonicalPost {
	out := make([]model.CanonicalPost, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichWorkers)
	for i := range posts {
		i := i
		g.Go(func() error {
			row := posts[i]
			row.Sentiment = Label(gctx, c, row.CommentsText)
			out[i] = row
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; degradation is per-row
	return out
}
