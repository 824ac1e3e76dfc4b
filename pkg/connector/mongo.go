// pkg/connector/mongo.go
package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/config"
	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// MongoLoader reads the raw collections from a MongoDB database
type MongoLoader struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
	cfg    *config.MongoConfig
}

// NewMongoLoader connects to MongoDB and verifies the primary is reachable
func NewMongoLoader(ctx context.Context, cfg *config.MongoConfig) (*MongoLoader, error) {
	if cfg == nil {
		return nil, errors.New("mongo configuration cannot be nil")
	}
	logger := zap.L().Named("mongo-connector")

	logger.Info("Connecting to MongoDB",
		zap.String("database", cfg.Database),
		zap.Uint64("maxPoolSize", cfg.MaxPoolSize))

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	return &MongoLoader{
		client: client,
		db:     client.Database(cfg.Database),
		logger: logger,
		cfg:    cfg,
	}, nil
}

// Load fetches every document of the three collections
func (l *MongoLoader) Load(ctx context.Context) (model.RawTables, error) {
	names := [3]string{l.cfg.ClientsCollection, l.cfg.MembershipsCollection, l.cfg.TransactionsCollection}
	return loadAll(ctx, l.logger, names, l.fetchCollection)
}

func (l *MongoLoader) fetchCollection(ctx context.Context, name string) (*model.Table, error) {
	cursor, err := l.db.Collection(name).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	l.logger.Debug("Fetched collection",
		zap.String("collection", name),
		zap.Int("documents", len(docs)))

	return documentsToTable(name, docs), nil
}

// documentsToTable converts decoded documents into a table; the column set is
// the union of the document keys
func documentsToTable(name string, docs []bson.M) *model.Table {
	rows := make([]model.Record, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, model.Record(doc))
	}
	return model.NewTable(name, rows)
}

// Close disconnects the client
func (l *MongoLoader) Close() error {
	l.logger.Info("Closing MongoDB connection")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return l.client.Disconnect(ctx)
}
