// pkg/connector/snowflake.go
package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/config"
	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// SnowflakeLoader reads the raw collections from Snowflake tables
type SnowflakeLoader struct {
	db     *sql.DB
	logger *zap.Logger
	cfg    *config.SnowflakeConfig
}

// NewSnowflakeLoader creates a new Snowflake connection
func NewSnowflakeLoader(ctx context.Context, cfg *config.SnowflakeConfig) (*SnowflakeLoader, error) {
	if cfg == nil {
		return nil, errors.New("snowflake configuration cannot be nil")
	}
	logger := zap.L().Named("snowflake-connector")

	// Create DSN using Snowflake's DSN builder
	sfConfig := &sf.Config{
		Account:       cfg.Account,
		User:          cfg.User,
		Password:      cfg.Password,
		Database:      cfg.Database,
		Schema:        cfg.Schema,
		Warehouse:     cfg.Warehouse,
		Role:          cfg.Role,
		Authenticator: cfg.AuthType,
	}

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("schema", cfg.Schema),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := sf.DSN(sfConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	// Open connection pool
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	// Configure connection pool
	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Verify connection
	if err := PingWithTimeout(ctx, db, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	loader := &SnowflakeLoader{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}

	LogConnectionStats(logger, cfg.Database, db)
	return loader, nil
}

// Load fetches the three tables
func (l *SnowflakeLoader) Load(ctx context.Context) (model.RawTables, error) {
	names := [3]string{l.cfg.ClientsTable, l.cfg.MembershipsTable, l.cfg.TransactionsTable}
	return loadAll(ctx, l.logger, names, l.fetchTable)
}

func (l *SnowflakeLoader) fetchTable(ctx context.Context, table string) (*model.Table, error) {
	query := fmt.Sprintf("SELECT * FROM %s", qualifiedName(l.cfg.Database, l.cfg.Schema, table))

	queryCtx := ctx
	if l.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, l.cfg.QueryTimeout)
		defer cancel()
	}

	rows, err := l.db.QueryContext(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	columns = normalizeColumns(columns)

	var records []model.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, recordFromValues(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	l.logger.Debug("Fetched table",
		zap.String("table", table),
		zap.Int("rows", len(records)))

	return model.NewTable(table, records, columns...), nil
}

// normalizeColumns lower-cases Snowflake's upper-case identifiers so they line
// up with the document field names
func normalizeColumns(columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = strings.ToLower(col)
	}
	return out
}

// recordFromValues builds a record from scanned values. Text arrives as
// []byte from some drivers and is turned into a string.
func recordFromValues(columns []string, values []interface{}) model.Record {
	record := make(model.Record, len(columns))
	for i, col := range columns {
		switch v := values[i].(type) {
		case []byte:
			record[col] = string(v)
		default:
			record[col] = v
		}
	}
	return record
}

// qualifiedName quotes each non-empty part of a database.schema.table path
func qualifiedName(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(p, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, ".")
}

// Close closes the database connection
func (l *SnowflakeLoader) Close() error {
	l.logger.Info("Closing Snowflake connection")
	LogConnectionStats(l.logger, l.cfg.Database, l.db)
	return l.db.Close()
}
