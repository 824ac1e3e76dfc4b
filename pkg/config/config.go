// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Data sources a loader can read from
const (
	SourceMongo     = "mongo"
	SourceSnowflake = "snowflake"
)

// Config represents the application configuration
type Config struct {
	// Which backend the loader reads: mongo or snowflake
	Source string `envconfig:"SOURCE" default:"mongo"`

	// Snapshot cache and loading
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"1h"`
	LoadTimeout time.Duration `envconfig:"LOAD_TIMEOUT" default:"60s"`

	// Timezone for timestamps stored without an offset
	DefaultTimezone string `envconfig:"DEFAULT_TIMEZONE" default:"UTC"`

	// HTTP server
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// Persist pipeline diagnostics to PostgreSQL
	DiagnosticsSink bool `envconfig:"DIAGNOSTICS_SINK" default:"false"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	Mongo     *MongoConfig     `ignored:"true"`
	Snowflake *SnowflakeConfig `ignored:"true"`
	Postgres  *PostgresConfig  `ignored:"true"`
	Chat      *ChatConfig      `ignored:"true"`
}

// ChatConfig holds the language model settings of the chat assistant
type ChatConfig struct {
	APIKey      string        `envconfig:"GOOGLE_API_KEY"`
	Model       string        `envconfig:"CHAT_MODEL" default:"gemini-1.5-flash"`
	ContextFile string        `envconfig:"CHAT_CONTEXT_FILE" default:"training.txt"`
	BaseURL     string        `envconfig:"CHAT_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	Timeout     time.Duration `envconfig:"CHAT_TIMEOUT" default:"30s"`
}

// Enabled reports whether an API key is configured
func (c *ChatConfig) Enabled() bool {
	return c != nil && c.APIKey != ""
}

// LoadDotEnv reads variables from .env files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))

	// Load the source selected for the loader
	switch cfg.Source {
	case SourceMongo:
		mongoConfig, err := LoadMongoConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load MongoDB configuration: %w", err)
		}
		cfg.Mongo = mongoConfig
	case SourceSnowflake:
		snowConfig, err := LoadSnowflakeConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load Snowflake configuration: %w", err)
		}
		cfg.Snowflake = snowConfig
	}

	if cfg.DiagnosticsSink {
		pgConfig, err := LoadPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load PostgreSQL configuration: %w", err)
		}
		cfg.Postgres = pgConfig
	}

	chat := &ChatConfig{}
	if err := envconfig.Process("", chat); err != nil {
		return nil, fmt.Errorf("failed to read chat configuration: %w", err)
	}
	cfg.Chat = chat

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	switch c.Source {
	case SourceMongo:
		if c.Mongo == nil {
			return errors.New("mongo configuration is required")
		}
	case SourceSnowflake:
		if c.Snowflake == nil {
			return errors.New("snowflake configuration is required")
		}
	default:
		return fmt.Errorf("unsupported source %q (expected %s or %s)", c.Source, SourceMongo, SourceSnowflake)
	}

	if c.DiagnosticsSink && c.Postgres == nil {
		return errors.New("postgreSQL configuration is required when DIAGNOSTICS_SINK is enabled")
	}

	if c.CacheTTL <= 0 {
		return errors.New("cache TTL must be positive")
	}

	if c.LoadTimeout <= 0 {
		return errors.New("load timeout must be positive")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}

	return nil
}
