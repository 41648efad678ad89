package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func ConnectMongo(ctx context.Context, uri, dbName string, maxWait time.Duration, logger *zap.SugaredLogger) (*mongo.Database, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName("graphql-chat"))
	if err != nil {
		logger.Errorf("MongoDB connection failed: %v", err)
		return nil, nil, err
	}

	err = retry(ctx, "MongoDB", maxWait, logger, func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	})
	if err != nil {
		logger.Errorf("MongoDB ping failed: %v", err)
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	logger.Infow("MongoDB connected", "db", dbName)
	return client.Database(dbName), client, nil
}

// PingMongo reports whether the server answers within the context deadline.
func PingMongo(ctx context.Context, client *mongo.Client) error {
	return client.Ping(ctx, nil)
}
