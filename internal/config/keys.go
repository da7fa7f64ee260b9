package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

func (t keyType) String() string {
	switch t {
	case kInt:
		return "integer"
	case kBool:
		return "bool"
	case kDuration:
		return "duration"
	default:
		return "string"
	}
}

func (t keyType) parse(raw string) (any, error) {
	switch t {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

// keySpec binds a dotted config key to a Config field. The environment
// variable is derived from the key: server.port -> PROFILEDIR_SERVER_PORT.
type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

func envName(key string) string {
	return "PROFILEDIR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func stringKey(key string, field func(*Config) *string) keySpec {
	return keySpec{
		key: key, typ: kString, env: envName(key),
		apply:   func(cfg *Config, v any) { *field(cfg) = v.(string) },
		extract: func(cfg Config) any { return *field(&cfg) },
	}
}

func intKey(key string, field func(*Config) *int) keySpec {
	return keySpec{
		key: key, typ: kInt, env: envName(key),
		apply:   func(cfg *Config, v any) { *field(cfg) = v.(int) },
		extract: func(cfg Config) any { return *field(&cfg) },
	}
}

func boolKey(key string, field func(*Config) *bool) keySpec {
	return keySpec{
		key: key, typ: kBool, env: envName(key),
		apply:   func(cfg *Config, v any) { *field(cfg) = v.(bool) },
		extract: func(cfg Config) any { return *field(&cfg) },
	}
}

func durationKey(key string, field func(*Config) *time.Duration) keySpec {
	return keySpec{
		key: key, typ: kDuration, env: envName(key),
		apply:   func(cfg *Config, v any) { *field(cfg) = v.(time.Duration) },
		extract: func(cfg Config) any { return *field(&cfg) },
	}
}

func secret(s keySpec) keySpec {
	s.secret = true
	return s
}

var specs = []keySpec{
	intKey("server.port", func(c *Config) *int { return &c.Server.Port }),
	intKey("server.max_connections", func(c *Config) *int { return &c.Server.MaxConnections }),
	boolKey("server.mcp_stdio", func(c *Config) *bool { return &c.Server.MCPStdio }),
	stringKey("storage.backend", func(c *Config) *string { return &c.Storage.Backend }),
	stringKey("storage.data_dir", func(c *Config) *string { return &c.Storage.DataDir }),
	boolKey("seed.enabled", func(c *Config) *bool { return &c.Seed.Enabled }),
	stringKey("events.exchange", func(c *Config) *string { return &c.Events.Exchange }),
	secret(stringKey("events.amqp_url", func(c *Config) *string { return &c.Events.AMQPURL })),
	durationKey("relay.poll_interval", func(c *Config) *time.Duration { return &c.Relay.PollInterval }),
	stringKey("log.level", func(c *Config) *string { return &c.Log.Level }),
	secret(stringKey("api.token", func(c *Config) *string { return &c.API.Token })),
}

// applyBackend copies non-secret values from the config file into cfg.
// Values that fail to parse are reported and the current value is kept.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.typ.parse(raw)
		if err != nil {
			warnf("config key %s=%q is not a valid %s: %v", s.key, raw, s.typ, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

// applyEnvOverrides applies every non-empty PROFILEDIR_* variable, secrets
// included.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.typ.parse(raw)
		if err != nil {
			warnf("env var %s=%q is not a valid %s: %v", s.env, raw, s.typ, err)
			continue
		}
		s.apply(cfg, v)
	}
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[WARN] "+format+". Using default value.\n", args...)
}
