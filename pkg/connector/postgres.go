// pkg/connector/postgres.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/config"
	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// DefaultDiagnosticsTable is where pipeline diagnostics are persisted
const DefaultDiagnosticsTable = "pipeline_diagnostics"

// StoredDiagnostic is one persisted diagnostic row
type StoredDiagnostic struct {
	ID              int64         `db:"id" json:"id"`
	SnapshotID      string        `db:"snapshot_id" json:"snapshot_id"`
	Kind            string        `db:"kind" json:"kind"`
	TableName       string        `db:"table_name" json:"table"`
	ColumnName      string        `db:"column_name" json:"column"`
	AffectedRows    int           `db:"affected_rows" json:"affected_rows"`
	SampleClientIDs pq.Int64Array `db:"sample_client_ids" json:"sample_client_ids"`
	Message         string        `db:"message" json:"message"`
	EmittedAt       time.Time     `db:"emitted_at" json:"emitted_at"`
	RecordedAt      time.Time     `db:"recorded_at" json:"recorded_at"`
}

// PostgresSink persists pipeline diagnostics into PostgreSQL
type PostgresSink struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
	table  string
}

// NewPostgresSink connects to PostgreSQL and ensures the diagnostics table exists
func NewPostgresSink(ctx context.Context, cfg *config.PostgresConfig) (*PostgresSink, error) {
	if cfg == nil {
		return nil, errors.New("postgres configuration cannot be nil")
	}
	logger := zap.L().Named("postgres-connector")

	// Log connection attempt
	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User),
		zap.String("driver", cfg.Driver))

	db, err := sqlx.Open(cfg.Driver, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	// Configure connection pool
	ApplyConnectionSettings(
		db.DB,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Verify connection
	if err := PingWithTimeout(ctx, db.DB, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	sink := &PostgresSink{
		db:     db,
		logger: logger,
		cfg:    cfg,
		table:  DefaultDiagnosticsTable,
	}

	if err := sink.setupDiagnosticsTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup diagnostics table: %w", err)
	}

	LogConnectionStats(logger, cfg.Database, db.DB)
	return sink, nil
}

func (s *PostgresSink) qualifiedTable() string {
	return pq.QuoteIdentifier("public") + "." + pq.QuoteIdentifier(s.table)
}

func createDiagnosticsTableSQL(qualified string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			snapshot_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL DEFAULT '',
			affected_rows INTEGER NOT NULL,
			sample_client_ids BIGINT[],
			message TEXT NOT NULL,
			emitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
			recorded_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`, qualified)
}

// setupDiagnosticsTable ensures the diagnostics table exists
func (s *PostgresSink) setupDiagnosticsTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createDiagnosticsTableSQL(s.qualifiedTable())); err != nil {
		return fmt.Errorf("failed to create diagnostics table: %w", err)
	}

	s.logger.Info("Ensured diagnostics table exists", zap.String("table", s.table))
	return nil
}

func (s *PostgresSink) timeout() time.Duration {
	if s.cfg.StatementTimeout > 0 {
		return s.cfg.StatementTimeout
	}
	return 30 * time.Second
}

// storedRows maps diagnostics onto insertable rows
func storedRows(snapshotID string, diags []model.Diagnostic) []StoredDiagnostic {
	rows := make([]StoredDiagnostic, 0, len(diags))
	for _, d := range diags {
		rows = append(rows, StoredDiagnostic{
			SnapshotID:      snapshotID,
			Kind:            d.Kind.String(),
			TableName:       d.Table,
			ColumnName:      d.Column,
			AffectedRows:    d.AffectedRows,
			SampleClientIDs: pq.Int64Array(d.SampleClientIDs),
			Message:         d.Message,
			EmittedAt:       d.EmittedAt,
		})
	}
	return rows
}

// Record inserts the diagnostics of one snapshot inside a transaction
func (s *PostgresSink) Record(ctx context.Context, snapshotID string, diags []model.Diagnostic) (err error) {
	if len(diags) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	// Begin transaction
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.Error(err))
			}
		}
	}()

	stmt, err := tx.PrepareNamedContext(ctx, fmt.Sprintf(`
		INSERT INTO %s
		(snapshot_id, kind, table_name, column_name, affected_rows,
		 sample_client_ids, message, emitted_at)
		VALUES (:snapshot_id, :kind, :table_name, :column_name, :affected_rows,
		 :sample_client_ids, :message, :emitted_at)
	`, s.qualifiedTable()))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range storedRows(snapshotID, diags) {
		if _, err = stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("failed to insert diagnostic: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Recorded pipeline diagnostics",
		zap.String("snapshotID", snapshotID),
		zap.Int("count", len(diags)))
	return nil
}

// Recent returns the latest persisted diagnostics, newest first
func (s *PostgresSink) Recent(ctx context.Context, limit int) ([]StoredDiagnostic, error) {
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	var out []StoredDiagnostic
	query := fmt.Sprintf(`
		SELECT id, snapshot_id, kind, table_name, column_name, affected_rows,
		       sample_client_ids, message, emitted_at, recorded_at
		FROM %s
		ORDER BY recorded_at DESC, id DESC
		LIMIT $1
	`, s.qualifiedTable())
	if err := s.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	return out, nil
}

// Close closes the database connection
func (s *PostgresSink) Close() error {
	s.logger.Info("Closing PostgreSQL connection")
	LogConnectionStats(s.logger, s.cfg.Database, s.db.DB)
	return s.db.Close()
}
