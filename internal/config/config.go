// Package config loads store settings from an optional YAML file and
// SNAPSTORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/snapstore/internal/history"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/registry"
)

// EnvPrefix prefixes every environment override, e.g. SNAPSTORE_MAX_SLOTS.
const EnvPrefix = "SNAPSTORE"

// Keys, shared by the YAML file and the environment.
const (
	KeyMaxSlots                 = "max_slots"
	KeyMaxMutations             = "max_mutations"
	KeyDeleteOutOfScopeVersions = "delete_out_of_scope_versions"
	KeyDB                       = "db"
	KeyLogLevel                 = "log_level"
)

// Config holds the settings a CLI run needs.
type Config struct {
	MaxSlots                 int    `json:"max_slots" yaml:"max_slots"`
	MaxMutations             int    `json:"max_mutations" yaml:"max_mutations"`
	DeleteOutOfScopeVersions bool   `json:"delete_out_of_scope_versions" yaml:"delete_out_of_scope_versions"`
	DB                       string `json:"db" yaml:"db"`
	LogLevel                 string `json:"log_level" yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		MaxSlots:     registry.DefaultMaxSlots,
		MaxMutations: 0,
		DB:           "snapstore.db",
		LogLevel:     "warn",
	}
}

// Load reads path (if non-empty) and applies environment overrides on top
// of Default. A named file that does not exist is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault(KeyMaxSlots, def.MaxSlots)
	v.SetDefault(KeyMaxMutations, def.MaxMutations)
	v.SetDefault(KeyDeleteOutOfScopeVersions, def.DeleteOutOfScopeVersions)
	v.SetDefault(KeyDB, def.DB)
	v.SetDefault(KeyLogLevel, def.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		MaxSlots:                 v.GetInt(KeyMaxSlots),
		MaxMutations:             v.GetInt(KeyMaxMutations),
		DeleteOutOfScopeVersions: v.GetBool(KeyDeleteOutOfScopeVersions),
		DB:                       v.GetString(KeyDB),
		LogLevel:                 v.GetString(KeyLogLevel),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting, joined.
func (c Config) Validate() error {
	const op = "config.Validate"

	var errs []error
	if c.MaxSlots <= 0 {
		errs = append(errs, record.NewError(record.ErrCodeInvalidArgument, op, "%s must be positive, got %d", KeyMaxSlots, c.MaxSlots))
	}
	if c.MaxMutations < 0 {
		errs = append(errs, record.NewError(record.ErrCodeInvalidArgument, op, "%s must not be negative, got %d", KeyMaxMutations, c.MaxMutations))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, record.NewError(record.ErrCodeInvalidArgument, op, "%s: %v", KeyLogLevel, err))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, err
	}
	return level, nil
}

// Logger returns a text logger writing to w at LogLevel. verbose lowers
// the level to debug.
func (c Config) Logger(w io.Writer, verbose bool) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// HistoryOptions returns the options that make a fresh History honor c.
func (c Config) HistoryOptions() []history.Option {
	return []history.Option{
		history.WithRegistry(registry.New(registry.WithMaxSlots(c.MaxSlots))),
		history.WithMaxMutations(c.MaxMutations),
		history.WithDeleteOutOfScopeVersions(c.DeleteOutOfScopeVersions),
	}
}
