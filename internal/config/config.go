package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Seed    SeedConfig
	Events  EventsConfig
	Relay   RelayConfig
	Log     LogConfig
	API     APIConfig
}

type ServerConfig struct {
	Port           int
	MaxConnections int
	MCPStdio       bool
}

// StorageConfig selects where profiles live. "memory" keeps them in the
// process only; "sqlite" mirrors them to DataDir and enables the outbox.
type StorageConfig struct {
	Backend string
	DataDir string
}

type SeedConfig struct {
	Enabled bool
}

type EventsConfig struct {
	Exchange string
	AMQPURL  string
}

type RelayConfig struct {
	PollInterval time.Duration
}

type LogConfig struct {
	Level string
}

type APIConfig struct {
	Token string
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           4100,
			MaxConnections: 256,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			DataDir: defaultDataDir(),
		},
		Seed: SeedConfig{
			Enabled: true,
		},
		Events: EventsConfig{
			Exchange: "profile.events",
		},
		Relay: RelayConfig{
			PollInterval: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in layers: defaults, then the JSON file at
// $XDG_CONFIG_HOME/profiledir/config.json, then PROFILEDIR_* environment
// variables. A .env file in the working directory is loaded into the
// environment first; variables already set are not replaced.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("invalid server.max_connections %d", c.Server.MaxConnections)
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("invalid storage.backend %q: must be %q or %q", c.Storage.Backend, BackendMemory, BackendSQLite)
	}
	if c.Storage.Backend == BackendSQLite && c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required for the sqlite backend")
	}
	return nil
}
