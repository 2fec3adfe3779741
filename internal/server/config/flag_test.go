package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-m", "-x", "-q", "-u", "-n", "-i", "-k", "-y", "-z", "-w"})

func TestParseFlags(t *testing.T) {

	// Test cases
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-m", "3", "-x", "12",
			"-q", "5", "-u", "user1", "-n", "4", "-i", "2", "-k", "15",
			"-y", "100", "-z", "400", "-w", "7",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrHTTP:   "127.0.0.1:9090",
				DatabaseDSN:        "db",
				PoolMinConns:       3,
				PoolMaxConns:       12,
				PoolAcquireTimeout: 5 * time.Second,
				DefaultUserID:      "user1",
				SeedUserCount:      4,
				PollInterval:       2 * time.Second,
				PollAttempts:       15,
				StreamDelayMin:     100 * time.Millisecond,
				StreamDelayMax:     400 * time.Millisecond,
				ShutdownTimeout:    7 * time.Second,
			}},
		{name: "Test2 partial args keep other fields", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-m", "5",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrHTTP: "127.0.0.1:9090",
				PoolMinConns:     5,
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {

				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
