package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mkarpis/chatdb/internal/flagx"
	"github.com/mkarpis/chatdb/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// This struct is an intermediate DTO (Data Transfer Object) used only for
// reading JSON configuration files. After unmarshalling, its fields are
// copied into the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP   string         `json:"endpoint_addr_http"`
	DatabaseDSN        string         `json:"database_dsn"`
	PoolMinConns       int32          `json:"pool_min_conns"`
	PoolMaxConns       int32          `json:"pool_max_conns"`
	PoolAcquireTimeout timex.Duration `json:"pool_acquire_timeout"`
	DefaultUserID      string         `json:"default_user_id"`
	SeedUserCount      int            `json:"seed_user_count"`
	PollInterval       timex.Duration `json:"poll_interval"`
	PollAttempts       int            `json:"poll_attempts"`
	StreamDelayMin     timex.Duration `json:"stream_delay_min"`
	StreamDelayMax     timex.Duration `json:"stream_delay_max"`
	ShutdownTimeout    timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is:
//
//	The -c or -config command-line flags.
//	If it is not set, no JSON file is loaded.
//
// If the file path is found, parseJson attempts to read and unmarshal it
// into a JsonConfig. The resulting values are copied into the target
// Config. The JSON file is expected to be complete; omitted fields come
// through as zero values. If the file cannot be read or contains invalid
// JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.PoolMinConns = c.PoolMinConns
	config.PoolMaxConns = c.PoolMaxConns
	config.PoolAcquireTimeout = time.Duration(c.PoolAcquireTimeout.Duration)
	config.DefaultUserID = c.DefaultUserID
	config.SeedUserCount = c.SeedUserCount
	config.PollInterval = time.Duration(c.PollInterval.Duration)
	config.PollAttempts = c.PollAttempts
	config.StreamDelayMin = time.Duration(c.StreamDelayMin.Duration)
	config.StreamDelayMax = time.Duration(c.StreamDelayMax.Duration)
	config.ShutdownTimeout = time.Duration(c.ShutdownTimeout.Duration)
}
