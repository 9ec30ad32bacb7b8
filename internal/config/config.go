// Package config loads the server configuration with viper: built-in
// defaults first, then an optional banchi.yaml, then BANCHI_*
// environment variables, each layer overriding the one before.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything `banchi serve` needs at startup.
type Config struct {
	// Host and Port form the listen address.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// AuthToken protects the RPC endpoint when non-empty. The health
	// probe and the metrics scrape stay open either way.
	AuthToken string `mapstructure:"auth_token"`

	// DBDir points at the dictionary. Empty falls back to the same
	// resolution the CLI uses (BANCHI_DB_DIR, then ~/.banchi/db).
	DBDir string `mapstructure:"db_dir"`

	// ReadTimeout bounds reading a request. WriteTimeout stays zero by
	// default: the first reverse query may spend minutes building the
	// spatial index and must not be cut off mid-response.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel maps the configured level name onto slog's scale. Unknown
// names fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig reads banchi.yaml from dir when one is there and lets
// BANCHI_* variables override individual keys. An empty dir skips the
// file layer entirely.
func LoadConfig(dir string) (Config, error) {
	v := viper.New()
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 5000)
	v.SetDefault("auth_token", "")
	v.SetDefault("db_dir", "")
	v.SetDefault("read_timeout", 10*time.Second)
	v.SetDefault("write_timeout", time.Duration(0))
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("banchi")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir != "" {
		v.SetConfigName("banchi")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			// A missing file is fine, a broken one is not.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
