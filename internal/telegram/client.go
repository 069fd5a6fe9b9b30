// Package telegram reads channel history through an MTProto HTTP gateway:
// newest-first message pages by offset id, plus per-message reply threads.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"social-ingest/internal/pace"
)

// ErrUnresolved means a channel URL could not be resolved (private,
// deleted, malformed).
var ErrUnresolved = errors.New("telegram: channel unresolved")

type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Message mirrors the gateway's message shape.
type Message struct {
	ID        int64  `json:"id"`
	Date      int64  `json:"date"` // unix seconds
	Text      string `json:"text"`
	Views     int64  `json:"views"`
	Forwards  int64  `json:"forwards"`
	Reactions struct {
		Results []struct {
			Count int64 `json:"count"`
		} `json:"results"`
	} `json:"reactions"`
	Replies struct {
		Replies int64 `json:"replies"`
	} `json:"replies"`
}

// ReactionTotal sums counts across all reaction kinds.
func (m Message) ReactionTotal() int64 {
	var n int64
	for _, r := range m.Reactions.Results {
		n += r.Count
	}
	return n
}

// Username extracts the channel username from a t.me-style URL.
func Username(channelURL string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(channelURL), "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s", ErrUnresolved, channelURL)
	}
	parts := strings.Split(trimmed, "/")
	name := parts[len(parts)-1]
	if name == "" {
		return "", fmt.Errorf("%w: %s", ErrUnresolved, channelURL)
	}
	return name, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return pace.Transient(err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnresolved, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &pace.RateLimitedError{Wait: floodWait(resp)}
	case resp.StatusCode >= 500:
		return pace.Transient(fmt.Errorf("telegram: %s status %d", path, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("telegram: %s status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pace.Transient(fmt.Errorf("telegram: %s malformed response: %w", path, err))
	}
	return nil
}

// floodWait reads the flood-wait duration from the 429 response.
func floodWait(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// Resolve checks that the channel exists and is readable.
func (c *Client) Resolve(ctx context.Context, channelURL string) (string, error) {
	name, err := Username(channelURL)
	if err != nil {
		return "", err
	}
	var res struct {
		ID int64 `json:"id"`
	}
	if err := c.get(ctx, "/channels/"+url.PathEscape(name), nil, &res); err != nil {
		return "", err
	}
	return name, nil
}

// History fetches one page of channel messages, newest first. offsetID=0
// starts at the most recent message; otherwise the page starts below the
// given message id.
func (c *Client) History(ctx context.Context, username string, offsetID int64, limit int) ([]Message, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if offsetID > 0 {
		q.Set("offset_id", strconv.FormatInt(offsetID, 10))
	}
	var res struct {
		Messages []Message `json:"messages"`
	}
	if err := c.get(ctx, "/channels/"+url.PathEscape(username)+"/messages", q, &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}

// Replies fetches up to limit replies to one message.
func (c *Client) Replies(ctx context.Context, username string, messageID int64, limit int) ([]Message, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	path := "/channels/" + url.PathEscape(username) + "/messages/" + strconv.FormatInt(messageID, 10) + "/replies"
	var res struct {
		Messages []Message `json:"messages"`
	}
	if err := c.get(ctx, path, q, &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}
