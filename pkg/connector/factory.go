// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/config"
)

// ConnectorFactory creates the loader and the optional diagnostics sink
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLoader creates the loader for the configured source
func (f *ConnectorFactory) CreateLoader(ctx context.Context) (Loader, error) {
	f.logger.Info("Creating loader", zap.String("source", f.cfg.Source))

	switch f.cfg.Source {
	case config.SourceMongo:
		loader, err := NewMongoLoader(ctx, f.cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("failed to create MongoDB loader: %w", err)
		}
		return loader, nil
	case config.SourceSnowflake:
		loader, err := NewSnowflakeLoader(ctx, f.cfg.Snowflake)
		if err != nil {
			return nil, fmt.Errorf("failed to create Snowflake loader: %w", err)
		}
		return loader, nil
	default:
		return nil, fmt.Errorf("unsupported source %q", f.cfg.Source)
	}
}

// CreateDiagnosticsSink creates the PostgreSQL sink, or returns nil when the
// sink is disabled
func (f *ConnectorFactory) CreateDiagnosticsSink(ctx context.Context) (*PostgresSink, error) {
	if !f.cfg.DiagnosticsSink {
		return nil, nil
	}
	f.logger.Info("Creating PostgreSQL diagnostics sink")

	sink, err := NewPostgresSink(ctx, f.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL sink: %w", err)
	}
	return sink, nil
}
