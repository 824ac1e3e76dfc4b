// pkg/connector/connector.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// Loader fetches the three raw collections from a backing store
type Loader interface {
	// Load returns clients, memberships and transactions as loose tables
	Load(ctx context.Context) (model.RawTables, error)

	// Close releases the underlying connection
	Close() error
}

// collectionFetcher reads one collection into a table
type collectionFetcher func(ctx context.Context, name string) (*model.Table, error)

// loadAll fetches the three collections concurrently. The first failure
// cancels the others.
func loadAll(ctx context.Context, logger *zap.Logger, names [3]string, fetch collectionFetcher) (model.RawTables, error) {
	var tables [3]*model.Table
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			t, err := fetch(gctx, name)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", name, err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.RawTables{}, err
	}

	// Tables keep their logical names whatever the source calls them
	tables[0].Name = model.ClientsTable
	tables[1].Name = model.MembershipsTable
	tables[2].Name = model.TransactionsTable

	logger.Info("Loaded raw collections",
		zap.Int("clients", tables[0].Len()),
		zap.Int("memberships", tables[1].Len()),
		zap.Int("transactions", tables[2].Len()),
		zap.Duration("duration", time.Since(start)))

	return model.RawTables{
		Clients:      tables[0],
		Memberships:  tables[1],
		Transactions: tables[2],
	}, nil
}

// ConnStats contains standardized connection statistics
type ConnStats struct {
	OpenConnections int
	InUse           int
	Idle            int
	MaxOpenConns    int
	WaitCount       int64
	WaitDuration    time.Duration
}

// GetConnectionStats returns connection pool statistics for logging
func GetConnectionStats(db *sql.DB) ConnStats {
	stats := db.Stats()
	return ConnStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		MaxOpenConns:    stats.MaxOpenConnections,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}
}

// LogConnectionStats logs connection pool statistics
func LogConnectionStats(logger *zap.Logger, name string, db *sql.DB) {
	stats := GetConnectionStats(db)
	logger.Debug("Connection pool stats",
		zap.String("database", name),
		zap.Int("open_connections", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int("max_open", stats.MaxOpenConns),
		zap.Int64("wait_count", stats.WaitCount),
		zap.Duration("wait_duration", stats.WaitDuration),
	)
}

// PingWithTimeout attempts to ping a database with a timeout
func PingWithTimeout(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- db.PingContext(pingCtx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-pingCtx.Done():
		return fmt.Errorf("ping timed out after %v: %w", timeout, pingCtx.Err())
	}
}

// ApplyConnectionSettings configures database connection pool settings
func ApplyConnectionSettings(db *sql.DB, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
	if maxIdleTime > 0 {
		db.SetConnMaxIdleTime(maxIdleTime)
	}
}
