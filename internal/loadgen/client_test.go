package loadgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string]string
	body   map[string]any
}

// newRecordingServer answers every request with the given status and
// payload and records what arrived.
func newRecordingServer(t *testing.T, status int, payload any) (*Client, *[]recordedRequest) {
	t.Helper()

	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path, query: map[string]string{}}
		for k := range r.URL.Query() {
			rec.query[k] = r.URL.Query().Get(k)
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		seen = append(seen, rec)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if payload != nil {
			_ = json.NewEncoder(w).Encode(payload)
		}
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL), &seen
}

func TestClient_CreateConversation(t *testing.T) {
	client, seen := newRecordingServer(t, http.StatusOK, map[string]any{"id": "c-123"})

	id, status, err := client.CreateConversation(context.Background(), "User 4 conversation")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "c-123", id)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/conversations", req.path)
	assert.Equal(t, "User 4 conversation", req.body["title"])
}

func TestClient_AddMessage(t *testing.T) {
	client, seen := newRecordingServer(t, http.StatusOK, map[string]any{"id": "m-1"})

	status, err := client.AddMessage(context.Background(), "c-123", "What is a race condition?", 10)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	req := (*seen)[0]
	assert.Equal(t, "/api/conversations/c-123/messages", req.path)
	assert.Equal(t, "user", req.body["role"])
	assert.Equal(t, float64(10), req.body["token_count"])
}

func TestClient_StreamMessage(t *testing.T) {
	client, seen := newRecordingServer(t, http.StatusOK,
		map[string]any{"chunks": []string{"a", "b"}, "full_response": "ab"})

	status, err := client.StreamMessage(context.Background(), "c-123", "Explain the CAP theorem.", 8)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "/api/conversations/c-123/stream", (*seen)[0].path)
}

func TestClient_SearchMessages(t *testing.T) {
	client, seen := newRecordingServer(t, http.StatusOK,
		[]map[string]any{{"id": "m1"}, {"id": "m2"}})

	matches, status, err := client.SearchMessages(context.Background(), "deadlock")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, matches)

	req := (*seen)[0]
	assert.Equal(t, "/api/conversations/search", req.path)
	assert.Equal(t, "deadlock", req.query["q"])
}

func TestClient_NotificationCalls(t *testing.T) {
	userID := "00000000-0000-4000-9000-000000000002"

	t.Run("unread count", func(t *testing.T) {
		client, seen := newRecordingServer(t, http.StatusOK, map[string]any{"unread_count": 9})

		count, status, err := client.UnreadCount(context.Background(), userID)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, int64(9), count)
		assert.Equal(t, userID, (*seen)[0].query["user_id"])
	})

	t.Run("mark read", func(t *testing.T) {
		client, seen := newRecordingServer(t, http.StatusOK, map[string]any{"marked_read": 4})

		marked, status, err := client.MarkAllRead(context.Background(), userID)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 4, marked)
		assert.Equal(t, http.MethodPost, (*seen)[0].method)
		assert.Equal(t, "/api/notifications/mark-read", (*seen)[0].path)
	})

	t.Run("list", func(t *testing.T) {
		client, _ := newRecordingServer(t, http.StatusOK, []map[string]any{{"id": "n1"}})

		count, status, err := client.ListNotifications(context.Background(), userID)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 1, count)
	})
}

func TestClient_PollNotifications(t *testing.T) {
	userID := "00000000-0000-4000-9000-000000000000"

	t.Run("since omitted on first poll", func(t *testing.T) {
		client, seen := newRecordingServer(t, http.StatusOK, []map[string]any{})

		_, status, err := client.PollNotifications(context.Background(), userID, "")

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		req := (*seen)[0]
		assert.Equal(t, "/api/notifications/poll", req.path)
		assert.Equal(t, userID, req.query["user_id"])
		_, hasSince := req.query["since"]
		assert.False(t, hasSince)
	})

	t.Run("since and created_at round-trip", func(t *testing.T) {
		client, seen := newRecordingServer(t, http.StatusOK,
			[]map[string]any{{"id": "n1", "created_at": "2026-08-20T10:00:00Z"}})

		notifs, status, err := client.PollNotifications(context.Background(), userID, "2026-08-20T09:00:00Z")

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		require.Len(t, notifs, 1)
		assert.Equal(t, "2026-08-20T10:00:00Z", notifs[0].CreatedAt)
		assert.Equal(t, "2026-08-20T09:00:00Z", (*seen)[0].query["since"])
	})
}

func TestClient_Broadcast(t *testing.T) {
	t.Run("default endpoint", func(t *testing.T) {
		client, seen := newRecordingServer(t, http.StatusOK,
			map[string]any{"broadcast": true, "recipients": 40})

		recipients, status, err := client.Broadcast(context.Background(), false, map[string]any{"message": "hi"})

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 40, recipients)

		req := (*seen)[0]
		assert.Equal(t, "/api/notifications/broadcast", req.path)
		assert.Equal(t, "system", req.body["type"])
		assert.Equal(t, map[string]any{"message": "hi"}, req.body["payload"])
	})

	t.Run("serializable endpoint", func(t *testing.T) {
		client, seen := newRecordingServer(t, http.StatusOK, map[string]any{"recipients": 1})

		_, _, err := client.Broadcast(context.Background(), true, nil)

		require.NoError(t, err)
		assert.Equal(t, "/api/notifications/broadcast-serializable", (*seen)[0].path)
	})
}

func TestClient_NonOKStatusIsNotAnError(t *testing.T) {
	client, _ := newRecordingServer(t, http.StatusServiceUnavailable, map[string]any{"detail": "pool exhausted"})

	status, err := client.AddMessage(context.Background(), "c-1", "hello", 2)

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestClient_CancelledContext(t *testing.T) {
	client, _ := newRecordingServer(t, http.StatusOK, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Health(ctx)
	assert.Error(t, err)
}
