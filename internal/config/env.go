package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "TAXII"

// Env holds process-level defaults. CLI flags override them.
type Env struct {
	DBPath    string `envconfig:"DB_PATH" default:"taxii.db"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	SyncLimit int64  `envconfig:"SYNC_LIMIT" default:"0"`
}

// LoadEnv reads TAXII_DB_PATH, TAXII_LOG_LEVEL and TAXII_SYNC_LIMIT.
func LoadEnv() (cfg Env, err error) {
	err = envconfig.Process(EnvPrefix, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}
	if cfg.SyncLimit < 0 {
		return cfg, fmt.Errorf("%s_SYNC_LIMIT must not be negative, got %d", EnvPrefix, cfg.SyncLimit)
	}
	return cfg, nil
}

// Level parses LogLevel (debug, info, warn, error).
func (e Env) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(e.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", e.LogLevel, err)
	}
	return lvl, nil
}
