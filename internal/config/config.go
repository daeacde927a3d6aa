// Package config loads the TOML configuration described by section 6 of the
// indexer's external interfaces: a [worker], [server], [backfill] and
// repeatable [processors.<name>] section.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"bento-indexer/internal/types"
)

// WorkerConfig drives the tail-follow sync loop.
type WorkerConfig struct {
	DatabaseURL     string `toml:"database_url"`
	Network         string `toml:"network"`
	RPCURL          string `toml:"rpc_url"`
	RequestInterval int64  `toml:"request_interval"`
	Step            int64  `toml:"step"`
	Backstep        int64  `toml:"backstep"`
	Fetchers        int    `toml:"fetchers"`
}

// ServerConfig drives the read-API.
type ServerConfig struct {
	Port string `toml:"port"`
}

// BackfillConfig drives bounded-range backfill.
type BackfillConfig struct {
	Workers         int   `toml:"workers"`
	Step            int64 `toml:"step"`
	Backstep        int64 `toml:"backstep"`
	RequestInterval int64 `toml:"request_interval"`
}

// Config is the fully decoded TOML document.
type Config struct {
	Worker     WorkerConfig                      `toml:"worker"`
	Server     ServerConfig                      `toml:"server"`
	Backfill   BackfillConfig                     `toml:"backfill"`
	Processors map[string]map[string]interface{} `toml:"processors"`

	// Log is ambient, not part of spec.md's TOML surface, but is read from
	// the same file under [log] when present so operators have one config
	// file instead of two.
	Log LogConfig `toml:"log"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level    string `toml:"level"`
	Encoding string `toml:"encoding"`
}

// Load reads and decodes the TOML file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
}

// ResolveNetwork applies a --network CLI override, falling back to the
// config's [worker].network value, and finally to the NETWORK environment
// variable / mainnet default.
func (c *Config) ResolveNetwork(override string) types.Network {
	if override != "" {
		return types.ParseNetwork(override)
	}
	if c.Worker.Network != "" {
		return types.ParseNetwork(c.Worker.Network)
	}
	return types.NetworkFromEnv()
}

// Validate enforces the handful of required fields; everything else has a
// workable zero value or is optional by spec.
func (c *Config) Validate() error {
	if c.Worker.DatabaseURL == "" {
		return fmt.Errorf("config invalid: [worker].database_url is required")
	}
	return nil
}
