// cmd/cdp/app.go
package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/cleaner"
	"github.com/David-Botos/customer-data-platform/pkg/config"
	"github.com/David-Botos/customer-data-platform/pkg/connector"
	"github.com/David-Botos/customer-data-platform/pkg/converter"
	"github.com/David-Botos/customer-data-platform/pkg/country"
	"github.com/David-Botos/customer-data-platform/pkg/logging"
	"github.com/David-Botos/customer-data-platform/pkg/snapshot"
)

// app holds the components shared by every command
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	converter *converter.TypeConverter
	matcher   *country.Matcher
	loader    connector.Loader
	sink      *connector.PostgresSink
	store     *snapshot.Store
}

func newApp(ctx context.Context, envFile string) (*app, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	tcConfig := converter.DefaultConfig()
	tcConfig.DefaultTimezone = cfg.DefaultTimezone
	a.converter, err = converter.NewTypeConverterWithConfig(logger.Named("converter"), tcConfig)
	if err != nil {
		logger.Warn("Falling back to UTC", zap.Error(err))
	}

	a.matcher, err = country.NewMatcher(logger, country.DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create country matcher: %w", err)
	}

	pipeline, err := cleaner.NewPipeline(logger, a.matcher, cleaner.WithConverter(a.converter))
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	factory := connector.NewConnectorFactory(cfg, logger)
	a.loader, err = factory.CreateLoader(ctx)
	if err != nil {
		return nil, err
	}

	opts := snapshot.Options{
		TTL:         cfg.CacheTTL,
		LoadTimeout: cfg.LoadTimeout,
	}
	a.sink, err = factory.CreateDiagnosticsSink(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	if a.sink != nil {
		opts.Sink = a.sink
	}

	a.store, err = snapshot.NewStore(a.loader, pipeline, logger, opts)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	return a, nil
}

func (a *app) close() {
	if a.loader != nil {
		if err := a.loader.Close(); err != nil {
			a.logger.Warn("Failed to close loader", zap.Error(err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("Failed to close diagnostics sink", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
