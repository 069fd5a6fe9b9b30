package vk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"social-ingest/internal/pace"
)

func newTestServer(t *testing.T, handler func(method string, params url.Values) (string, int)) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		method := strings.TrimPrefix(r.URL.Path, "/method/")
		body, status := handler(method, r.PostForm)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "5.199", "test-token")
}

func TestResolveOwnerGroup(t *testing.T) {
	_, c := newTestServer(t, func(method string, params url.Values) (string, int) {
		if method != "utils.resolveScreenName" {
			t.Fatalf("unexpected method %s", method)
		}
		if got := params.Get("screen_name"); got != "somegroup" {
			t.Fatalf("screen_name = %q", got)
		}
		return `{"response":{"type":"group","object_id":123}}`, 200
	})
	id, err := c.ResolveOwner(context.Background(), "https://vk.com/somegroup")
	if err != nil {
		t.Fatalf("ResolveOwner: %v", err)
	}
	if id != -123 {
		t.Fatalf("owner id = %d, want -123", id)
	}
}

func TestResolveOwnerClubPathSkipsAPI(t *testing.T) {
	_, c := newTestServer(t, func(method string, params url.Values) (string, int) {
		t.Fatalf("unexpected API call %s", method)
		return "", 500
	})
	id, err := c.ResolveOwner(context.Background(), "https://vk.com/club777")
	if err != nil {
		t.Fatalf("ResolveOwner: %v", err)
	}
	if id != -777 {
		t.Fatalf("owner id = %d, want -777", id)
	}
}

func TestResolveOwnerUnknownType(t *testing.T) {
	_, c := newTestServer(t, func(string, url.Values) (string, int) {
		return `{"response":{"type":"application","object_id":5}}`, 200
	})
	_, err := c.ResolveOwner(context.Background(), "https://vk.com/someapp")
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}

func TestWallPageDecodesCounters(t *testing.T) {
	_, c := newTestServer(t, func(method string, params url.Values) (string, int) {
		if method != "wall.get" {
			t.Fatalf("unexpected method %s", method)
		}
		// likes as object, views as bare int: both shapes appear in the wild
		return `{"response":{"items":[
			{"id":10,"date":1700000000,"text":"hello","likes":{"count":5},"reposts":{"count":2},"views":99,"comments":{"count":3}}
		]}}`, 200
	})
	items, err := c.WallPage(context.Background(), -1, 0, 100)
	if err != nil {
		t.Fatalf("WallPage: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items", len(items))
	}
	it := items[0]
	if it.Likes.Count != 5 || it.Views.Count != 99 || it.Comments.Count != 3 {
		t.Fatalf("counters decoded wrong: %+v", it)
	}
}

func TestCallMapsRateLimitError(t *testing.T) {
	_, c := newTestServer(t, func(string, url.Values) (string, int) {
		return `{"error":{"error_code":6,"error_msg":"Too many requests per second"}}`, 200
	})
	_, err := c.WallPage(context.Background(), -1, 0, 100)
	var rl *pace.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
}

func TestCallMarksServerErrorsTransient(t *testing.T) {
	_, c := newTestServer(t, func(string, url.Values) (string, int) {
		return "bad gateway", 502
	})
	_, err := c.WallPage(context.Background(), -1, 0, 100)
	if !pace.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCommentsBatchOneRequestPositionalResults(t *testing.T) {
	var calls int
	var gotCode string
	_, c := newTestServer(t, func(method string, params url.Values) (string, int) {
		if method != "execute" {
			t.Fatalf("unexpected method %s", method)
		}
		calls++
		gotCode = params.Get("code")
		return `{"response":[
			{"count":2,"items":[{"text":"first"},{"text":"second"}]},
			false,
			{"count":0,"items":[]}
		]}`, 200
	})
	threads, err := c.CommentsBatch(context.Background(), -1, []int64{11, 12, 13}, 100)
	if err != nil {
		t.Fatalf("CommentsBatch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("execute called %d times, want 1", calls)
	}
	if !strings.Contains(gotCode, `"post_id": 12`) {
		t.Fatalf("VKScript missing post id: %s", gotCode)
	}
	if got := threads[11].Texts; len(got) != 2 || got[0] != "first" {
		t.Fatalf("thread 11 = %v", got)
	}
	if len(threads[12].Texts) != 0 {
		t.Fatalf("failed sub-call should yield empty thread, got %v", threads[12].Texts)
	}
	if len(threads[13].Texts) != 0 {
		t.Fatalf("thread 13 = %v", threads[13].Texts)
	}
}

func TestRewriteMentions(t *testing.T) {
	in := "thanks [id123|Ivan] and [club45|Our Group], also [artist|Some Label]"
	got := RewriteMentions(in)
	want := "thanks https://vk.com/id123 and https://vk.com/club45, also Some Label"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestCounterUnmarshalShapes(t *testing.T) {
	var c Counter
	if err := json.Unmarshal([]byte(`{"count":7}`), &c); err != nil || c.Count != 7 {
		t.Fatalf("object shape: %v %d", err, c.Count)
	}
	if err := json.Unmarshal([]byte(`13`), &c); err != nil || c.Count != 13 {
		t.Fatalf("int shape: %v %d", err, c.Count)
	}
}
