package config

import (
	"flag"
	"os"
	"time"

	"github.com/mkarpis/chatdb/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   PostgreSQL DSN
//	-m int      pool minimum (warm) connections
//	-x int      pool maximum connections
//	-q int      pool acquire timeout, seconds
//	-u string   default user id for unauthenticated requests
//	-n int      deterministic users seeded at startup
//	-i int      long-poll interval, seconds
//	-k int      long-poll attempt budget
//	-y int      streaming delay minimum, milliseconds
//	-z int      streaming delay maximum, milliseconds
//	-w int      shutdown grace period, seconds
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers (seconds or milliseconds as
//     listed above) and then converted to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-m", "-x", "-q", "-u", "-n", "-i", "-k", "-y", "-z", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	poolMinConns := fs.Int("m", int(config.PoolMinConns), "pool min connections")
	poolMaxConns := fs.Int("x", int(config.PoolMaxConns), "pool max connections")
	poolAcquireTimeout := fs.Int("q", int(config.PoolAcquireTimeout.Seconds()), "pool acquire timeout (in seconds)")

	fs.StringVar(&config.DefaultUserID, "u", config.DefaultUserID, "default user id")
	fs.IntVar(&config.SeedUserCount, "n", config.SeedUserCount, "users seeded at startup")

	pollInterval := fs.Int("i", int(config.PollInterval.Seconds()), "poll interval (in seconds)")
	fs.IntVar(&config.PollAttempts, "k", config.PollAttempts, "poll attempts")

	streamDelayMin := fs.Int("y", int(config.StreamDelayMin.Milliseconds()), "stream delay min (in milliseconds)")
	streamDelayMax := fs.Int("z", int(config.StreamDelayMax.Milliseconds()), "stream delay max (in milliseconds)")

	shutdownTimeout := fs.Int("w", int(config.ShutdownTimeout.Seconds()), "shutdown timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PoolMinConns = int32(*poolMinConns)
	config.PoolMaxConns = int32(*poolMaxConns)
	config.PoolAcquireTimeout = time.Duration(*poolAcquireTimeout) * time.Second
	config.PollInterval = time.Duration(*pollInterval) * time.Second
	config.StreamDelayMin = time.Duration(*streamDelayMin) * time.Millisecond
	config.StreamDelayMax = time.Duration(*streamDelayMax) * time.Millisecond
	config.ShutdownTimeout = time.Duration(*shutdownTimeout) * time.Second
}
