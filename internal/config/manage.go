package config

import (
	"fmt"
	"strconv"
	"time"
)

// KeyInfo is one row of `profiledir config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists every non-secret key with its effective value in cfg.
func ShowAll(cfg Config) []KeyInfo {
	rows := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		if s.secret {
			continue
		}
		rows = append(rows, KeyInfo{Key: s.key, EnvVar: s.env, Value: fmt.Sprint(s.extract(cfg))})
	}
	return rows
}

// ValidKeys returns the names accepted by SetKey.
func ValidKeys() []string {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		if !s.secret {
			names = append(names, s.key)
		}
	}
	return names
}

// SetKey persists key=value in the user config file.
func SetKey(key, value string) error {
	return setKey(newPlatformBackend(), key, value)
}

func findSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func setKey(b ConfigBackend, key, value string) error {
	s, ok := findSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return fmt.Errorf("%s is a secret and can only be set through %s", key, s.env)
	}

	var err error
	switch s.typ {
	case kInt:
		var n int
		if n, err = strconv.Atoi(value); err == nil {
			return b.SetInt(key, n)
		}
	case kBool:
		_, err = strconv.ParseBool(value)
	case kDuration:
		_, err = time.ParseDuration(value)
	case kString:
		if key == "storage.backend" && value != BackendMemory && value != BackendSQLite {
			err = fmt.Errorf("must be %q or %q", BackendMemory, BackendSQLite)
		}
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
	return b.SetString(key, value)
}
