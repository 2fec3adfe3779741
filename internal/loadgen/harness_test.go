package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarpis/chatdb/internal/logging"
)

func newTestHarness(cfg *Config) *Harness {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewHarness(cfg, logger)
	h.healthEvery = time.Millisecond
	return h
}

func TestWaitForHealthy_RecoversAfterFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := newTestHarness(&Config{AppURL: srv.URL})

	err := h.waitForHealthy(context.Background())

	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int64(3))
}

func TestWaitForHealthy_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newTestHarness(&Config{AppURL: srv.URL})
	h.healthBudget = 2

	err := h.waitForHealthy(context.Background())

	assert.ErrorIs(t, err, errUnhealthy)
}

func TestAssignedUserIDs(t *testing.T) {
	h := newTestHarness(&Config{MultiUserCount: 3})

	ids := h.assignedUserIDs()

	require.Len(t, ids, 3)
	assert.Equal(t, "00000000-0000-4000-9000-000000000000", ids[0])
	assert.Equal(t, "00000000-0000-4000-9000-000000000002", ids[2])

	h = newTestHarness(&Config{MultiUserCount: 1})
	assert.Nil(t, h.assignedUserIDs())
}

func TestStartDelay_SpreadsUsersAcrossRampUp(t *testing.T) {
	h := newTestHarness(&Config{NumUsers: 4, RampUp: 8 * time.Second})

	assert.Equal(t, time.Duration(0), h.startDelay(0))
	assert.Equal(t, 2*time.Second, h.startDelay(1))
	assert.Equal(t, 6*time.Second, h.startDelay(3))
}

func TestJitter_StaysWithinHalfToOneAndAHalf(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		j := jitter(base)
		assert.GreaterOrEqual(t, j, base/2)
		assert.LessOrEqual(t, j, base*3/2)
	}
}

func TestPickMessage_TokensAreTwiceTheWordCount(t *testing.T) {
	for i := 0; i < 50; i++ {
		message, tokens := pickMessage()
		assert.NotEmpty(t, message)
		words := 0
		inWord := false
		for _, r := range message {
			if r == ' ' {
				inWord = false
			} else if !inWord {
				inWord = true
				words++
			}
		}
		assert.Equal(t, words*2, tokens)
	}
}

// loadCounters tracks which endpoints a fake server saw.
type loadCounters struct {
	conversations atomic.Int64
	messages      atomic.Int64
	streams       atomic.Int64
	reads         atomic.Int64
	searches      atomic.Int64
	broadcasts    atomic.Int64
	polls         atomic.Int64
	markReads     atomic.Int64
}

func newFakeAppServer(t *testing.T) (*httptest.Server, *loadCounters) {
	t.Helper()
	counters := &loadCounters{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "healthy"})
	})
	mux.HandleFunc("POST /api/conversations", func(w http.ResponseWriter, r *http.Request) {
		counters.conversations.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "33333333-4444-4555-8666-777777777777"})
	})
	mux.HandleFunc("GET /api/conversations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]any{})
	})
	mux.HandleFunc("GET /api/conversations/search", func(w http.ResponseWriter, r *http.Request) {
		counters.searches.Add(1)
		_ = json.NewEncoder(w).Encode([]any{})
	})
	mux.HandleFunc("POST /api/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		counters.messages.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "m1"})
	})
	mux.HandleFunc("POST /api/conversations/{id}/stream", func(w http.ResponseWriter, r *http.Request) {
		counters.streams.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"chunks": []string{"ok"}, "full_response": "ok"})
	})
	mux.HandleFunc("GET /api/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		counters.reads.Add(1)
		_ = json.NewEncoder(w).Encode([]any{})
	})
	mux.HandleFunc("POST /api/notifications/broadcast", func(w http.ResponseWriter, r *http.Request) {
		counters.broadcasts.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"broadcast": true, "recipients": 2})
	})
	mux.HandleFunc("GET /api/notifications/poll", func(w http.ResponseWriter, r *http.Request) {
		counters.polls.Add(1)
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": "n1", "created_at": "2026-08-20T10:00:00Z"}})
	})
	mux.HandleFunc("GET /api/notifications/unread-count", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"unread_count": 1})
	})
	mux.HandleFunc("POST /api/notifications/mark-read", func(w http.ResponseWriter, r *http.Request) {
		counters.markReads.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"marked_read": 1})
	})
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]any{})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, counters
}

func TestHarness_RunNormalMode(t *testing.T) {
	srv, counters := newFakeAppServer(t)

	cfg := &Config{
		AppURL:           srv.URL,
		NumUsers:         2,
		RequestDelay:     5 * time.Millisecond,
		RampUp:           0,
		StreamRatio:      0.5,
		ReadRatio:        1.0,
		SearchEnabled:    true,
		SearchRatio:      1.0,
		BroadcastEnabled: true,
		BroadcastInterval: 10 * time.Millisecond,
		PollEnabled:      true,
		PollRatio:        1.0,
		MarkReadRatio:    1.0,
		MultiUserCount:   2,
	}
	h := newTestHarness(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	err := h.Run(ctx)

	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled),
		"run should end with the context, got %v", err)
	assert.Greater(t, counters.conversations.Load(), int64(0))
	assert.Greater(t, counters.messages.Load()+counters.streams.Load(), int64(0))
	assert.Greater(t, counters.reads.Load(), int64(0))
	assert.Greater(t, counters.searches.Load(), int64(0))
	assert.Greater(t, counters.broadcasts.Load(), int64(0))
	assert.Greater(t, counters.polls.Load(), int64(0))
	assert.Greater(t, counters.markReads.Load(), int64(0))
}

func TestHarness_RunBurstMode(t *testing.T) {
	srv, counters := newFakeAppServer(t)

	cfg := &Config{
		AppURL:           srv.URL,
		NumUsers:         1,
		RequestDelay:     5 * time.Millisecond,
		RampUp:           0,
		BurstMode:        true,
		BurstConcurrency: 4,
	}
	h := newTestHarness(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := h.Run(ctx)

	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled),
		"run should end with the context, got %v", err)
	assert.Greater(t, counters.conversations.Load(), int64(0))
	assert.GreaterOrEqual(t, counters.messages.Load(), int64(cfg.BurstConcurrency),
		"each burst fires BurstConcurrency parallel writes")
}
