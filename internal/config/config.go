package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	DatabaseDriver string   `mapstructure:"database_driver"` // "sqlite" (default) or "postgres"
	DatabasePath   string   `mapstructure:"database_path"`   // SQLite file path
	DatabaseDSN    string   `mapstructure:"database_dsn"`    // Postgres connection string
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	RequestTimeoutSec  int `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = server default
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"` // Graceful shutdown wait
	ActionTimeoutSec   int `mapstructure:"action_timeout_sec"`   // Per-action executor timeout; a timeout halts the pipeline like a failure

	RateLimitPerMin int `mapstructure:"rate_limit_per_min"` // Per-IP write requests per minute; 0 = disabled
	RateLimitBurst  int `mapstructure:"rate_limit_burst"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/remedyd/")
	viper.AddConfigPath("$HOME/.remedyd")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("database_driver", "sqlite")
	viper.SetDefault("database_path", "./remedyd.db")
	viper.SetDefault("database_dsn", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("action_timeout_sec", 30)
	viper.SetDefault("rate_limit_per_min", 120)
	viper.SetDefault("rate_limit_burst", 60)

	// Environment variables
	viper.SetEnvPrefix("REMEDYD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Allow comma-separated origins from a single env value.
	if len(cfg.AllowedOrigins) == 1 && strings.Contains(cfg.AllowedOrigins[0], ",") {
		parts := strings.Split(cfg.AllowedOrigins[0], ",")
		cfg.AllowedOrigins = cfg.AllowedOrigins[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, p)
			}
		}
	}

	return &cfg, nil
}
