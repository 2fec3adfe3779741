package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Per-call deadlines. Writes wait longer than reads because they can sit
// behind a long transaction; broadcast longest of all since it fans out
// to every user in one transaction.
const (
	healthTimeout    = 5 * time.Second
	readTimeout      = 10 * time.Second
	writeTimeout     = 30 * time.Second
	streamTimeout    = 60 * time.Second
	pollTimeout      = 60 * time.Second
	notifTimeout     = 60 * time.Second
	broadcastTimeout = 120 * time.Second
)

// Client is a thin JSON client for the chat API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

type conversation struct {
	ID string `json:"id"`
}

type notification struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

type broadcastResult struct {
	Recipients int `json:"recipients"`
}

type unreadCountResult struct {
	UnreadCount int64 `json:"unread_count"`
}

type markReadResult struct {
	MarkedRead int `json:"marked_read"`
}

// do issues one request under its own deadline. The response body is
// decoded into out only for a 200 answer; other statuses are drained and
// reported through the returned code.
func (c *Client) do(ctx context.Context, timeout time.Duration, method string, path string, query url.Values, body any, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) Health(ctx context.Context) (int, error) {
	return c.do(ctx, healthTimeout, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) CreateConversation(ctx context.Context, title string) (string, int, error) {
	var conv conversation
	status, err := c.do(ctx, writeTimeout, http.MethodPost, "/api/conversations", nil,
		map[string]any{"title": title}, &conv)
	return conv.ID, status, err
}

func (c *Client) ListConversations(ctx context.Context) (int, error) {
	return c.do(ctx, readTimeout, http.MethodGet, "/api/conversations", nil, nil, nil)
}

func (c *Client) AddMessage(ctx context.Context, conversationID string, content string, tokenCount int) (int, error) {
	body := map[string]any{"content": content, "role": "user", "token_count": tokenCount}
	return c.do(ctx, writeTimeout, http.MethodPost, "/api/conversations/"+conversationID+"/messages", nil, body, nil)
}

func (c *Client) StreamMessage(ctx context.Context, conversationID string, content string, tokenCount int) (int, error) {
	body := map[string]any{"content": content, "token_count": tokenCount}
	return c.do(ctx, streamTimeout, http.MethodPost, "/api/conversations/"+conversationID+"/stream", nil, body, nil)
}

func (c *Client) GetMessages(ctx context.Context, conversationID string) (int, error) {
	return c.do(ctx, readTimeout, http.MethodGet, "/api/conversations/"+conversationID+"/messages", nil, nil, nil)
}

// SearchMessages returns how many messages matched.
func (c *Client) SearchMessages(ctx context.Context, term string) (int, int, error) {
	var results []json.RawMessage
	status, err := c.do(ctx, writeTimeout, http.MethodGet, "/api/conversations/search",
		url.Values{"q": {term}}, nil, &results)
	return len(results), status, err
}

func (c *Client) UnreadCount(ctx context.Context, userID string) (int64, int, error) {
	var out unreadCountResult
	status, err := c.do(ctx, writeTimeout, http.MethodGet, "/api/notifications/unread-count",
		url.Values{"user_id": {userID}}, nil, &out)
	return out.UnreadCount, status, err
}

func (c *Client) MarkAllRead(ctx context.Context, userID string) (int, int, error) {
	var out markReadResult
	status, err := c.do(ctx, notifTimeout, http.MethodPost, "/api/notifications/mark-read",
		url.Values{"user_id": {userID}}, nil, &out)
	return out.MarkedRead, status, err
}

// ListNotifications returns how many notifications the user has.
func (c *Client) ListNotifications(ctx context.Context, userID string) (int, int, error) {
	var results []json.RawMessage
	status, err := c.do(ctx, notifTimeout, http.MethodGet, "/api/notifications",
		url.Values{"user_id": {userID}}, nil, &results)
	return len(results), status, err
}

// PollNotifications long-polls; the server holds the request until
// something arrives or its attempt budget runs out.
func (c *Client) PollNotifications(ctx context.Context, userID string, since string) ([]notification, int, error) {
	query := url.Values{"user_id": {userID}}
	if since != "" {
		query.Set("since", since)
	}
	var notifs []notification
	status, err := c.do(ctx, pollTimeout, http.MethodGet, "/api/notifications/poll", query, nil, &notifs)
	return notifs, status, err
}

func (c *Client) Broadcast(ctx context.Context, serializable bool, payload map[string]any) (int, int, error) {
	path := "/api/notifications/broadcast"
	if serializable {
		path = "/api/notifications/broadcast-serializable"
	}
	var out broadcastResult
	status, err := c.do(ctx, broadcastTimeout, http.MethodPost, path, nil,
		map[string]any{"type": "system", "payload": payload}, &out)
	return out.Recipients, status, err
}
