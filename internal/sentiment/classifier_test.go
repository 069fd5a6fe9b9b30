package sentiment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"social-ingest/internal/model"
)

type fakeClassifier struct {
	calls int32
	label model.SentimentLabel
	err   error
}

func (f *fakeClassifier) Classify(context.Context, string) (model.SentimentLabel, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.label, f.err
}

func TestLabelBlankInputSkipsClassifier(t *testing.T) {
	f := &fakeClassifier{label: model.SentimentNegative}
	for _, text := range []string{"", "   ", "\n\t "} {
		if got := Label(context.Background(), f, text); got != model.SentimentNeutral {
			t.Errorf("Label(%q) = %q, want neutral", text, got)
		}
	}
	if n := atomic.LoadInt32(&f.calls); n != 0 {
		t.Fatalf("classifier invoked %d times for blank input, want 0", n)
	}
}

func TestLabelNilClassifierDefaultsNeutral(t *testing.T) {
	if got := Label(context.Background(), nil, "some comments"); got != model.SentimentNeutral {
		t.Fatalf("got %q, want neutral", got)
	}
}

func TestLabelClassifierErrorDefaultsNeutral(t *testing.T) {
	f := &fakeClassifier{err: errors.New("model unavailable")}
	if got := Label(context.Background(), f, "angry comments"); got != model.SentimentNeutral {
		t.Fatalf("got %q, want neutral", got)
	}
}

func TestLabelUnknownAnswerDefaultsNeutral(t *testing.T) {
	f := &fakeClassifier{label: model.SentimentLabel("sarcastic")}
	if got := Label(context.Background(), f, "hmm"); got != model.SentimentNeutral {
		t.Fatalf("got %q, want neutral", got)
	}
}

func TestEnrichAssignsLabelsPreservingOrder(t *testing.T) {
	f := &fakeClassifier{label: model.SentimentPositive}
	posts := []model.CanonicalPost{
		{PostID: "1", CommentsText: "great stuff"},
		{PostID: "2", CommentsText: ""},
		{PostID: "3", CommentsText: "love it"},
	}
	got := Enrich(context.Background(), f, posts)
	if len(got) != 3 {
		t.Fatalf("got %d rows", len(got))
	}
	if got[0].PostID != "1" || got[1].PostID != "2" || got[2].PostID != "3" {
		t.Fatalf("row order changed: %+v", got)
	}
	if got[0].Sentiment != model.SentimentPositive || got[2].Sentiment != model.SentimentPositive {
		t.Fatalf("labels not assigned: %+v", got)
	}
	if got[1].Sentiment != model.SentimentNeutral {
		t.Fatalf("empty comments should label neutral, got %q", got[1].Sentiment)
	}
	// input batch untouched
	if posts[0].Sentiment != model.SentimentUnset {
		t.Fatalf("input mutated: %+v", posts[0])
	}
	if n := atomic.LoadInt32(&f.calls); n != 2 {
		t.Fatalf("classifier invoked %d times, want 2 (blank row skipped)", n)
	}
}

func TestParseLabel(t *testing.T) {
	for in, want := range map[string]model.SentimentLabel{
		"neutral":    model.SentimentNeutral,
		" Negative.": model.SentimentNegative,
		"POSITIVE":   model.SentimentPositive,
	} {
		got, err := parseLabel(in)
		if err != nil || got != want {
			t.Errorf("parseLabel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseLabel("mixed"); err == nil {
		t.Error("expected error for out-of-vocabulary answer")
	}
}
