package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/dwpool/internal/memory"
)

// EnvPrefix prefixes every environment variable read into Config
const EnvPrefix = "POOLSIM"

// Config validation errors
var (
	ErrInvalidTracePath   = errors.New("trace_path cannot be empty")
	ErrInvalidDeviceLimit = errors.New("device_limit_bytes cannot be negative")
	ErrInvalidLogFormat   = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel    = errors.New("log_level must be debug, info, warn, or error")
)

// Config holds poolsim settings, read from POOLSIM_* environment variables
type Config struct {
	Pool             memory.PoolConfig `envconfig:"POOL"`
	DeviceLimitBytes int64             `envconfig:"DEVICE_LIMIT_BYTES" default:"0"` // 0 means unlimited
	LogFormat        string            `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel         string            `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr      string            `envconfig:"METRICS_ADDR" default:""` // empty disables /metrics
	TracePath        string            `envconfig:"TRACE_PATH" default:""`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Pool:             memory.DefaultPoolConfig(),
		DeviceLimitBytes: 0,
		LogFormat:        "json",
		LogLevel:         "info",
		MetricsAddr:      "",
		TracePath:        "",
	}
}

// LoadConfig loads the given .env files that exist, then reads the environment.
// Variables already set in the environment win over .env entries.
func LoadConfig(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.TracePath == "" {
		return ErrInvalidTracePath
	}
	if cfg.DeviceLimitBytes < 0 {
		return ErrInvalidDeviceLimit
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	return cfg.Pool.Validate()
}
