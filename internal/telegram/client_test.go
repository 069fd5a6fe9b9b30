package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"social-ingest/internal/pace"
)

func TestUsername(t *testing.T) {
	cases := map[string]string{
		"https://t.me/somechannel":  "somechannel",
		"https://t.me/somechannel/": "somechannel",
		"t.me/other":                "other",
	}
	for in, want := range cases {
		got, err := Username(in)
		if err != nil {
			t.Fatalf("Username(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Username(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := Username("   "); !errors.Is(err, ErrUnresolved) {
		t.Errorf("expected ErrUnresolved for blank URL, got %v", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "")
	_, err := c.Resolve(context.Background(), "https://t.me/private_channel")
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}

func TestHistoryPaginationParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/news/messages" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("offset_id"); got != "500" {
			t.Fatalf("offset_id = %q", got)
		}
		_, _ = w.Write([]byte(`{"messages":[
			{"id":499,"date":1700000100,"text":"newer","views":10,"forwards":1,
			 "reactions":{"results":[{"count":3},{"count":2}]},"replies":{"replies":4}},
			{"id":498,"date":1700000000,"text":"older"}
		]}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "")
	msgs, err := c.History(context.Background(), "news", 500, 100)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].ReactionTotal() != 5 {
		t.Fatalf("reaction total = %d, want 5", msgs[0].ReactionTotal())
	}
	if msgs[0].Replies.Replies != 4 {
		t.Fatalf("replies = %d", msgs[0].Replies.Replies)
	}
}

func TestFloodWaitMapsToRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "")
	_, err := c.History(context.Background(), "news", 0, 100)
	var rl *pace.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rl.Wait != 17*time.Second {
		t.Fatalf("wait = %s, want 17s", rl.Wait)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "")
	_, err := c.Replies(context.Background(), "news", 42, 100)
	if !pace.IsTransient(err) {
		t.Fatalf("expected transient, got %v", err)
	}
}
