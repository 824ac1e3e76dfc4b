package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snowflakedb/gosnowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsForMongo(t *testing.T) {
	t.Setenv("SOURCE", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("MONGO_DATABASE", "cdp")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, SourceMongo, cfg.Source)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 60*time.Second, cfg.LoadTimeout)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	require.NotNil(t, cfg.Mongo)
	assert.Equal(t, "cdp", cfg.Mongo.Database)
	assert.Equal(t, "clients", cfg.Mongo.ClientsCollection)
	assert.Equal(t, uint64(10), cfg.Mongo.MaxPoolSize)
	assert.Nil(t, cfg.Snowflake)
	assert.Nil(t, cfg.Postgres)
	require.NotNil(t, cfg.Chat)
	assert.Equal(t, "gemini-1.5-flash", cfg.Chat.Model)
	assert.Equal(t, "training.txt", cfg.Chat.ContextFile)
}

func TestLoadConfigRequiresMongoURI(t *testing.T) {
	t.Setenv("SOURCE", "mongo")
	t.Setenv("MONGO_URI", "")
	t.Setenv("MONGO_DATABASE", "cdp")
	os.Unsetenv("MONGO_URI")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigMongoDatabaseFallsBackToDBName(t *testing.T) {
	t.Setenv("SOURCE", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("MONGO_DATABASE", "")
	os.Unsetenv("MONGO_DATABASE")
	t.Setenv("DB_NAME", "legacy")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Mongo.Database)

	t.Setenv("MONGO_DATABASE", "cdp")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "cdp", cfg.Mongo.Database)

	t.Setenv("MONGO_DATABASE", "")
	t.Setenv("DB_NAME", "")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigSnowflake(t *testing.T) {
	t.Setenv("SOURCE", "snowflake")
	t.Setenv("SNOWFLAKE_USER", "loader")
	t.Setenv("SNOWFLAKE_PASSWORD", "secret")
	t.Setenv("SNOWFLAKE_ACCOUNT", "acme-xy12345")
	t.Setenv("SNOWFLAKE_WAREHOUSE", "COMPUTE_WH")
	t.Setenv("SNOWFLAKE_CLIENTS_TABLE", "CRM_CLIENTS")
	t.Setenv("SNOWFLAKE_QUERY_TIMEOUT", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.Snowflake)

	assert.Equal(t, "CRM_CLIENTS", cfg.Snowflake.ClientsTable)
	assert.Equal(t, "MEMBERSHIPS", cfg.Snowflake.MembershipsTable)
	assert.Equal(t, 90*time.Second, cfg.Snowflake.QueryTimeout)
	assert.Equal(t, gosnowflake.AuthTypeSnowflake, cfg.Snowflake.AuthType)
}

func TestLoadConfigDiagnosticsSink(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("MONGO_DATABASE", "cdp")
	t.Setenv("DIAGNOSTICS_SINK", "true")
	t.Setenv("POSTGRES_USER", "cdp")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_DB", "analytics")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.Postgres)
	assert.Equal(t, "pgx", cfg.Postgres.Driver)
	assert.Equal(t,
		"host=localhost port=5432 user=cdp password=pw dbname=analytics sslmode=disable",
		cfg.Postgres.ConnectionString())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Source:      SourceMongo,
			Mongo:       &MongoConfig{URI: "mongodb://x", Database: "d"},
			CacheTTL:    time.Hour,
			LoadTimeout: time.Minute,
			LogLevel:    "info",
			LogFormat:   "json",
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source", func(c *Config) { c.Source = "csv" }},
		{"missing mongo", func(c *Config) { c.Mongo = nil }},
		{"sink without postgres", func(c *Config) { c.DiagnosticsSink = true }},
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseAuthenticator(t *testing.T) {
	auth, err := ParseAuthenticator("OAuth")
	require.NoError(t, err)
	assert.Equal(t, gosnowflake.AuthTypeOAuth, auth)

	_, err = ParseAuthenticator("carrier-pigeon")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CDP_DOTENV_VALUE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CDP_DOTENV_VALUE") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("CDP_DOTENV_VALUE"))
}
