// Package loadgen drives configurable load against a running chatdb
// server: simulated chat users, write bursts against a shared counter,
// periodic broadcasts and notification long-pollers. Intensity is tuned
// through environment variables; light settings keep the server healthy,
// heavy ones expose pool exhaustion and lock contention.
package loadgen

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config collects the environment-driven knobs. Ratios are fractions in
// [0,1]; delays arrive as float seconds (REQUEST_DELAY=0.5 is 500ms).
type Config struct {
	AppURL       string
	NumUsers     int
	RequestDelay time.Duration
	StreamRatio  float64
	RampUp       time.Duration
	ReadRatio    float64

	BurstMode        bool
	BurstConcurrency int

	SearchEnabled bool
	SearchRatio   float64

	BroadcastEnabled      bool
	BroadcastInterval     time.Duration
	BroadcastSerializable bool

	PollEnabled      bool
	PollRatio        float64
	UnreadCheckRatio float64
	MarkReadRatio    float64
	ListNotifsRatio  float64
	MultiUserCount   int
}

func LoadConfig() *Config {
	return &Config{
		AppURL:       envStr("APP_URL", "http://app:8000"),
		NumUsers:     envInt("NUM_USERS", 3),
		RequestDelay: envSeconds("REQUEST_DELAY", 2.0),
		StreamRatio:  envFloat("STREAM_RATIO", 0.3),
		RampUp:       envSeconds("RAMP_UP_SECONDS", 10),
		ReadRatio:    envFloat("READ_RATIO", 0.3),

		BurstMode:        envBool("BURST_MODE", false),
		BurstConcurrency: envInt("BURST_CONCURRENCY", 1),

		SearchEnabled: envBool("SEARCH_ENABLED", false),
		SearchRatio:   envFloat("SEARCH_RATIO", 0.0),

		BroadcastEnabled:      envBool("BROADCAST_ENABLED", false),
		BroadcastInterval:     envSeconds("BROADCAST_INTERVAL", 30.0),
		BroadcastSerializable: envBool("BROADCAST_SERIALIZABLE", false),

		PollEnabled:      envBool("POLL_ENABLED", false),
		PollRatio:        envFloat("POLL_RATIO", 0.0),
		UnreadCheckRatio: envFloat("UNREAD_CHECK_RATIO", 0.0),
		MarkReadRatio:    envFloat("MARK_READ_RATIO", 0.0),
		ListNotifsRatio:  envFloat("LIST_NOTIFS_RATIO", 0.0),
		MultiUserCount:   envInt("MULTI_USER_COUNT", 1),
	}
}

func envStr(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// envBool treats "true", "1" and "yes" (any case) as true and anything
// else as false.
func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func envSeconds(key string, def float64) time.Duration {
	return time.Duration(envFloat(key, def) * float64(time.Second))
}
