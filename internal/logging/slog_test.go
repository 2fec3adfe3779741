package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

// decodeLines parses each JSON log record written to buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "log line: %s", line)
		records = append(records, rec)
	}
	return records
}

func TestSlogLogger_LevelsAndAttrs(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "poll empty", "user_id", "u1")
	log.Info(ctx, "created conversation", "conv_id", "c1")
	log.Warn(ctx, "request failed", "status", 503)
	log.Error(ctx, "db init error", "attempt", 3)

	records := decodeLines(t, buf)
	require.Len(t, records, 4)

	assert.Equal(t, "DEBUG", records[0]["level"])
	assert.Equal(t, "poll empty", records[0]["msg"])
	assert.Equal(t, "u1", records[0]["user_id"])

	assert.Equal(t, "INFO", records[1]["level"])
	assert.Equal(t, "c1", records[1]["conv_id"])

	assert.Equal(t, "WARN", records[2]["level"])
	assert.Equal(t, float64(503), records[2]["status"])

	assert.Equal(t, "ERROR", records[3]["level"])
	assert.Equal(t, float64(3), records[3]["attempt"])
}

func TestSlogLogger_WithCarriesAttrs(t *testing.T) {
	log, buf := newTestLogger(t)

	child := log.With("module", "loadgen", "user", 7)
	child.Info(context.Background(), "user starting", "delay", "2s")

	records := decodeLines(t, buf)
	require.Len(t, records, 1)
	assert.Equal(t, "loadgen", records[0]["module"])
	assert.Equal(t, float64(7), records[0]["user"])
	assert.Equal(t, "2s", records[0]["delay"])
}

func TestSlogLogger_ChildDoesNotMutateParent(t *testing.T) {
	log, buf := newTestLogger(t)

	_ = log.With("module", "http_server")
	log.Info(context.Background(), "plain")

	records := decodeLines(t, buf)
	require.Len(t, records, 1)
	_, ok := records[0]["module"]
	assert.False(t, ok, "parent logger must not inherit child attrs")
}
