// pkg/config/database.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/snowflakedb/gosnowflake"
)

// MongoConfig holds MongoDB connection parameters.
// Keys come from the field names (MONGO_URI, MONGO_MAX_POOL_SIZE, ...).
// DB_NAME is read when MONGO_DATABASE is unset.
type MongoConfig struct {
	URI      string `required:"true"`
	Database string

	ClientsCollection      string `split_words:"true" default:"clients"`
	MembershipsCollection  string `split_words:"true" default:"memberships"`
	TransactionsCollection string `split_words:"true" default:"transactions"`

	MaxPoolSize    uint64        `split_words:"true" default:"10"`
	ConnectTimeout time.Duration `split_words:"true" default:"10s"`
}

// SnowflakeConfig holds Snowflake connection parameters
type SnowflakeConfig struct {
	User          string `required:"true"`
	Password      string
	Account       string `required:"true"`
	Warehouse     string `required:"true"`
	Database      string `default:"ANALYTICS"`
	Schema        string `default:"PUBLIC"`
	Role          string
	Authenticator string `default:"snowflake"`

	// Resolved from Authenticator
	AuthType gosnowflake.AuthType `ignored:"true"`

	ClientsTable      string `split_words:"true" default:"CLIENTS"`
	MembershipsTable  string `split_words:"true" default:"MEMBERSHIPS"`
	TransactionsTable string `split_words:"true" default:"TRANSACTIONS"`

	// Connection pool settings
	MaxOpenConns    int           `split_words:"true" default:"10"`
	MaxIdleConns    int           `split_words:"true" default:"5"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"10m"`
	ConnMaxIdleTime time.Duration `split_words:"true" default:"5m"`

	// Query timeout
	QueryTimeout time.Duration `split_words:"true" default:"5m"`
}

// PostgresConfig holds PostgreSQL connection parameters for the diagnostics sink
type PostgresConfig struct {
	Host     string `default:"localhost"`
	Port     int    `default:"5432"`
	User     string `required:"true"`
	Password string `required:"true"`
	Database string `envconfig:"DB" required:"true"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
	// database/sql driver name: pgx or postgres
	Driver string `default:"pgx"`

	// Connection pool settings
	MaxOpenConns    int           `split_words:"true" default:"5"`
	MaxIdleConns    int           `split_words:"true" default:"2"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"30m"`
	ConnMaxIdleTime time.Duration `split_words:"true" default:"10m"`

	// Statement timeout
	StatementTimeout time.Duration `split_words:"true" default:"30s"`
}

// LoadMongoConfig loads MongoDB configuration from MONGO_* variables
func LoadMongoConfig() (*MongoConfig, error) {
	cfg := &MongoConfig{}
	if err := envconfig.Process("mongo", cfg); err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		cfg.Database = os.Getenv("DB_NAME")
	}
	if cfg.Database == "" {
		return nil, errors.New("MONGO_DATABASE or DB_NAME is required")
	}
	return cfg, nil
}

// LoadSnowflakeConfig loads Snowflake configuration from SNOWFLAKE_* variables
func LoadSnowflakeConfig() (*SnowflakeConfig, error) {
	cfg := &SnowflakeConfig{}
	if err := envconfig.Process("snowflake", cfg); err != nil {
		return nil, err
	}

	authType, err := ParseAuthenticator(cfg.Authenticator)
	if err != nil {
		return nil, err
	}
	cfg.AuthType = authType

	if cfg.Password == "" && authType == gosnowflake.AuthTypeSnowflake {
		return nil, fmt.Errorf("SNOWFLAKE_PASSWORD is required for the %q authenticator", cfg.Authenticator)
	}

	return cfg, nil
}

// LoadPostgresConfig loads PostgreSQL configuration from POSTGRES_* variables
func LoadPostgresConfig() (*PostgresConfig, error) {
	cfg := &PostgresConfig{}
	if err := envconfig.Process("postgres", cfg); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case "pgx", "postgres":
	default:
		return nil, fmt.Errorf("unsupported POSTGRES_DRIVER %q (expected pgx or postgres)", cfg.Driver)
	}

	return cfg, nil
}

// ParseAuthenticator converts an authenticator name to the driver type
func ParseAuthenticator(name string) (gosnowflake.AuthType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snowflake":
		return gosnowflake.AuthTypeSnowflake, nil
	case "oauth":
		return gosnowflake.AuthTypeOAuth, nil
	case "externalbrowser":
		return gosnowflake.AuthTypeExternalBrowser, nil
	case "username_password_mfa":
		return gosnowflake.AuthTypeUsernamePasswordMFA, nil
	case "jwt":
		return gosnowflake.AuthTypeJwt, nil
	case "token":
		return gosnowflake.AuthTypeTokenAccessor, nil
	case "okta":
		return gosnowflake.AuthTypeOkta, nil
	default:
		return gosnowflake.AuthTypeSnowflake, fmt.Errorf("unsupported Snowflake authenticator %q", name)
	}
}

// ConnectionString returns a formatted PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}
