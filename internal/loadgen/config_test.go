package loadgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearLoadgenEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_URL", "NUM_USERS", "REQUEST_DELAY", "STREAM_RATIO", "RAMP_UP_SECONDS",
		"READ_RATIO", "BURST_MODE", "BURST_CONCURRENCY", "SEARCH_ENABLED", "SEARCH_RATIO",
		"BROADCAST_ENABLED", "BROADCAST_INTERVAL", "BROADCAST_SERIALIZABLE",
		"POLL_ENABLED", "POLL_RATIO", "UNREAD_CHECK_RATIO", "MARK_READ_RATIO",
		"LIST_NOTIFS_RATIO", "MULTI_USER_COUNT",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearLoadgenEnv(t)

	cfg := LoadConfig()

	assert.Equal(t, "http://app:8000", cfg.AppURL)
	assert.Equal(t, 3, cfg.NumUsers)
	assert.Equal(t, 2*time.Second, cfg.RequestDelay)
	assert.Equal(t, 0.3, cfg.StreamRatio)
	assert.Equal(t, 10*time.Second, cfg.RampUp)
	assert.Equal(t, 0.3, cfg.ReadRatio)
	assert.False(t, cfg.BurstMode)
	assert.Equal(t, 1, cfg.BurstConcurrency)
	assert.False(t, cfg.SearchEnabled)
	assert.Equal(t, 0.0, cfg.SearchRatio)
	assert.False(t, cfg.BroadcastEnabled)
	assert.Equal(t, 30*time.Second, cfg.BroadcastInterval)
	assert.False(t, cfg.BroadcastSerializable)
	assert.False(t, cfg.PollEnabled)
	assert.Equal(t, 0.0, cfg.PollRatio)
	assert.Equal(t, 0.0, cfg.UnreadCheckRatio)
	assert.Equal(t, 0.0, cfg.MarkReadRatio)
	assert.Equal(t, 0.0, cfg.ListNotifsRatio)
	assert.Equal(t, 1, cfg.MultiUserCount)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearLoadgenEnv(t)
	t.Setenv("APP_URL", "http://localhost:9000")
	t.Setenv("NUM_USERS", "25")
	t.Setenv("REQUEST_DELAY", "0.5")
	t.Setenv("STREAM_RATIO", "0.9")
	t.Setenv("RAMP_UP_SECONDS", "0")
	t.Setenv("BURST_MODE", "YES")
	t.Setenv("BURST_CONCURRENCY", "8")
	t.Setenv("SEARCH_ENABLED", "1")
	t.Setenv("SEARCH_RATIO", "0.25")
	t.Setenv("BROADCAST_ENABLED", "true")
	t.Setenv("BROADCAST_INTERVAL", "2.5")
	t.Setenv("BROADCAST_SERIALIZABLE", "1")
	t.Setenv("POLL_ENABLED", "no")
	t.Setenv("MULTI_USER_COUNT", "10")

	cfg := LoadConfig()

	assert.Equal(t, "http://localhost:9000", cfg.AppURL)
	assert.Equal(t, 25, cfg.NumUsers)
	assert.Equal(t, 500*time.Millisecond, cfg.RequestDelay)
	assert.Equal(t, 0.9, cfg.StreamRatio)
	assert.Equal(t, time.Duration(0), cfg.RampUp)
	assert.True(t, cfg.BurstMode)
	assert.Equal(t, 8, cfg.BurstConcurrency)
	assert.True(t, cfg.SearchEnabled)
	assert.Equal(t, 0.25, cfg.SearchRatio)
	assert.True(t, cfg.BroadcastEnabled)
	assert.Equal(t, 2500*time.Millisecond, cfg.BroadcastInterval)
	assert.True(t, cfg.BroadcastSerializable)
	assert.False(t, cfg.PollEnabled)
	assert.Equal(t, 10, cfg.MultiUserCount)
}

func TestLoadConfig_MalformedValuesKeepDefaults(t *testing.T) {
	clearLoadgenEnv(t)
	t.Setenv("NUM_USERS", "plenty")
	t.Setenv("STREAM_RATIO", "most")
	t.Setenv("REQUEST_DELAY", "soon")
	t.Setenv("BURST_MODE", "banana")

	cfg := LoadConfig()

	assert.Equal(t, 3, cfg.NumUsers)
	assert.Equal(t, 0.3, cfg.StreamRatio)
	assert.Equal(t, 2*time.Second, cfg.RequestDelay)
	assert.False(t, cfg.BurstMode, "unrecognized boolean reads as false")
}
