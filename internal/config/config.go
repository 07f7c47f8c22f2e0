// Package config loads mcqgen configuration.
//
// Values are resolved in this order, later sources winning:
//
//  1. `default` struct tags
//  2. the YAML file, when one is given
//  3. environment variables named by `env` struct tags
//
// Before any of that, .env files are loaded into the process environment:
// ENV_FILE if set, otherwise .env.local and then .env.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/mcqgen/internal/llm"
	"github.com/abhisek/mcqgen/internal/logger"
	"github.com/abhisek/mcqgen/internal/quiz"
)

// Config is the complete mcqgen configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Generation GenerationConfig `yaml:"generation"`
	Models     quiz.ModelIDs    `yaml:"models"`
	Retry      llm.RetryConfig  `yaml:"retry"`
	Log        logger.Config    `yaml:"log"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	DB         DBConfig         `yaml:"db"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host  string `yaml:"host" env:"MCQGEN_HOST"`
	Port  int    `yaml:"port" env:"MCQGEN_PORT" default:"8080"`
	Debug bool   `yaml:"debug" env:"MCQGEN_DEBUG"`

	ReadTimeout time.Duration `yaml:"read_timeout" env:"MCQGEN_READ_TIMEOUT" default:"30s"`
	// WriteTimeout must outlast generation.session_timeout or streams get cut.
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"MCQGEN_WRITE_TIMEOUT" default:"5m"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"MCQGEN_HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"MCQGEN_SHUTDOWN_TIMEOUT" default:"30s"`

	CORSOrigins []string `yaml:"cors_origins" env:"MCQGEN_CORS_ORIGINS" default:"[\"*\"]"`
}

// Address returns the listen address in host:port form.
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// GenerationConfig groups model sampling and session bounds.
type GenerationConfig struct {
	quiz.GenerationConfig `yaml:",inline"`
	quiz.SessionConfig    `yaml:",inline"`
}

// RateLimitConfig bounds generation requests per client IP.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" env:"MCQGEN_RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `yaml:"requests_per_minute" env:"MCQGEN_RATE_LIMIT_RPM" default:"30"`
	Burst             int  `yaml:"burst" env:"MCQGEN_RATE_LIMIT_BURST" default:"5"`
}

// DBConfig locates the event store.
type DBConfig struct {
	// Path is the sqlite file. Empty means store.DefaultDBPath.
	Path string `yaml:"path" env:"MCQGEN_DB"`
	// Disabled turns off session and LLM call persistence.
	Disabled bool `yaml:"disabled" env:"MCQGEN_DB_DISABLED"`
}

// Default returns a Config with only the tag defaults applied.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load resolves the configuration. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	// godotenv never overwrites variables that are already set, so the
	// first file to define a key wins.
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate reports every invalid field, joined.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, field, msg string) {
		if !ok {
			errs = append(errs, &ValidationError{Field: field, Message: msg})
		}
	}

	check(c.Server.Port >= 1 && c.Server.Port <= 65535, "server.port", "must be between 1 and 65535")
	check(c.Server.ShutdownTimeout >= 0, "server.shutdown_timeout", "must not be negative")
	check(c.Generation.MaxTokens > 0, "generation.max_tokens", "must be positive")
	check(c.Generation.Temperature >= 0 && c.Generation.Temperature <= 2, "generation.temperature", "must be between 0 and 2")
	check(c.Generation.IdleTimeout >= 0, "generation.idle_timeout", "must not be negative")
	check(c.Generation.Timeout >= 0, "generation.session_timeout", "must not be negative")
	check(c.Generation.MaxLineAttempts >= 0, "generation.max_line_attempts", "must not be negative")
	check(c.Retry.MaxAttempts >= 0, "retry.max_attempts", "must not be negative")
	if c.RateLimit.Enabled {
		check(c.RateLimit.RequestsPerMinute > 0, "rate_limit.requests_per_minute", "must be positive when enabled")
		check(c.RateLimit.Burst > 0, "rate_limit.burst", "must be positive when enabled")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, &ValidationError{Field: "log.level", Message: "must be one of: debug, info, warn, error"})
	}

	return errors.Join(errs...)
}

// PathFromEnv returns CONFIG_PATH, or an empty string when unset.
func PathFromEnv() string {
	return os.Getenv("CONFIG_PATH")
}
