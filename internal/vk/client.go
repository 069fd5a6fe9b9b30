// Package vk is a minimal client for the VK wall API: paginated wall
// reads, screen-name resolution, and execute-batched comment lookups.
package vk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"social-ingest/internal/pace"
)

// ErrUnresolved means a group URL could not be resolved to a platform
// entity (private, deleted, malformed).
var ErrUnresolved = errors.New("vk: source unresolved")

type Client struct {
	baseURL string
	version string
	token   string
	client  *http.Client
}

// NewClient creates a VK API client. baseURL defaults to the public API
// endpoint.
func NewClient(baseURL, version, token string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.vk.com"
	}
	if strings.TrimSpace(version) == "" {
		version = "5.199"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Counter tolerates both counter encodings the API emits: a bare integer
// or an object with a count field.
type Counter struct {
	Count int64
}

func (c *Counter) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '{' {
		var v struct {
			Count int64 `json:"count"`
		}
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		c.Count = v.Count
		return nil
	}
	return json.Unmarshal(b, &c.Count)
}

// WallItem mirrors the subset of wall.get fields this pipeline uses.
type WallItem struct {
	ID       int64   `json:"id"`
	Date     int64   `json:"date"`
	Text     string  `json:"text"`
	Likes    Counter `json:"likes"`
	Reposts  Counter `json:"reposts"`
	Views    Counter `json:"views"`
	Comments Counter `json:"comments"`
	IsPinned int     `json:"is_pinned"`
	PostType string  `json:"post_type"`
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *apiError       `json:"error"`
}

// VK error codes that signal client-side throttling.
const (
	errCodeTooManyRequests = 6
	errCodeRateLimit       = 29
)

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("access_token", c.token)
	params.Set("v", c.version)
	endpoint := fmt.Sprintf("%s/method/%s", c.baseURL, url.PathEscape(method))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.client.Do(req)
	if err != nil {
		return pace.Transient(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return &pace.RateLimitedError{Wait: retryAfter(resp)}
	}
	if resp.StatusCode >= 500 {
		return pace.Transient(fmt.Errorf("vk: %s status %d", method, resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vk: %s status %d", method, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return pace.Transient(fmt.Errorf("vk: %s malformed response: %w", method, err))
	}
	if env.Error != nil {
		switch env.Error.Code {
		case errCodeTooManyRequests, errCodeRateLimit:
			return &pace.RateLimitedError{}
		default:
			return fmt.Errorf("vk: %s error %d: %s", method, env.Error.Code, env.Error.Message)
		}
	}
	if out != nil {
		if err := json.Unmarshal(env.Response, out); err != nil {
			return pace.Transient(fmt.Errorf("vk: %s malformed payload: %w", method, err))
		}
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

var clubPathRe = regexp.MustCompile(`^(?:club|public)(\d+)$`)

// ScreenNameFromURL extracts the trailing path element of a group URL.
func ScreenNameFromURL(groupURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(groupURL))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnresolved, groupURL)
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "", fmt.Errorf("%w: %s", ErrUnresolved, groupURL)
	}
	return path, nil
}

// ResolveOwner turns a group URL into the numeric owner id the wall API
// expects. Communities carry a negative id. clubNNN/publicNNN paths
// short-circuit without an API call.
func (c *Client) ResolveOwner(ctx context.Context, groupURL string) (int64, error) {
	screenName, err := ScreenNameFromURL(groupURL)
	if err != nil {
		return 0, err
	}
	if m := clubPathRe.FindStringSubmatch(screenName); m != nil {
		id, _ := strconv.ParseInt(m[1], 10, 64)
		return -id, nil
	}
	var res struct {
		Type     string `json:"type"`
		ObjectID int64  `json:"object_id"`
	}
	params := url.Values{"screen_name": {screenName}}
	if err := c.call(ctx, "utils.resolveScreenName", params, &res); err != nil {
		return 0, err
	}
	switch res.Type {
	case "group":
		return -res.ObjectID, nil
	case "page", "user":
		return res.ObjectID, nil
	default:
		return 0, fmt.Errorf("%w: %s resolved to %q", ErrUnresolved, screenName, res.Type)
	}
}

// WallPage fetches one page of wall posts, newest first.
func (c *Client) WallPage(ctx context.Context, ownerID int64, offset, count int) ([]WallItem, error) {
	var res struct {
		Items []WallItem `json:"items"`
	}
	params := url.Values{
		"owner_id": {strconv.FormatInt(ownerID, 10)},
		"offset":   {strconv.Itoa(offset)},
		"count":    {strconv.Itoa(count)},
	}
	if err := c.call(ctx, "wall.get", params, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Thread holds the retrieved comment bodies for one post.
type Thread struct {
	Texts []string
}

// CommentsBatch fetches comment threads for up to 25 posts in a single
// execute call. The VKScript issues one wall.getComments per post id and
// returns the results positionally.
func (c *Client) CommentsBatch(ctx context.Context, ownerID int64, postIDs []int64, perPost int) (map[int64]Thread, error) {
	if len(postIDs) == 0 {
		return map[int64]Thread{}, nil
	}
	var code strings.Builder
	code.WriteString("return [\n")
	for _, id := range postIDs {
		fmt.Fprintf(&code, "API.wall.getComments({\"owner_id\": %d, \"post_id\": %d, \"count\": %d}),\n", ownerID, id, perPost)
	}
	code.WriteString("];")

	var raw []json.RawMessage
	params := url.Values{"code": {code.String()}}
	if err := c.call(ctx, "execute", params, &raw); err != nil {
		return nil, err
	}
	out := make(map[int64]Thread, len(postIDs))
	for i, id := range postIDs {
		var thread Thread
		if i < len(raw) {
			// failed sub-calls come back as false; skip those
			var res struct {
				Items []struct {
					Text string `json:"text"`
				} `json:"items"`
			}
			if err := json.Unmarshal(raw[i], &res); err == nil {
				for _, it := range res.Items {
					if strings.TrimSpace(it.Text) != "" {
						thread.Texts = append(thread.Texts, it.Text)
					}
				}
			}
		}
		out[id] = thread
	}
	return out, nil
}
