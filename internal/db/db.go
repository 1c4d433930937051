package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/beenthere/btdt-api/internal/pkg/config"
)

const defaultRetries = 5

// Collection names used across the application.
const (
	UsersCollection = "Users"
	ShopsCollection = "Shops"
)

// Init creates the Mongo client and returns a handle on the configured
// database.
func Init(cfg *config.MongoConfig, logger *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	logger.Info("Initializing MongoDB client...")

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		logger.Error("Failed to create MongoDB client", zap.Error(err))
		return nil, nil, fmt.Errorf("failed creating mongo client: %w", err)
	}

	logger.Info("MongoDB client initialized", zap.String("database", cfg.Database))
	return client, client.Database(cfg.Database), nil
}

// WaitForDB pings the deployment with backoff until it answers or the retry
// budget is spent.
func WaitForDB(ctx context.Context, client *mongo.Client, logger *zap.Logger) bool {
	for attempts := 1; attempts <= defaultRetries; attempts++ {
		err := client.Ping(ctx, readpref.Primary())
		if err == nil {
			logger.Info("Database connection successful")
			return true
		}

		waitDuration := time.Duration(attempts) * 200 * time.Millisecond
		logger.Warn("Database ping failed, retrying...",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", defaultRetries),
			zap.Duration("wait_duration", waitDuration),
			zap.Error(err),
		)
		if attempts < defaultRetries {
			time.Sleep(waitDuration)
		}
	}
	logger.Error("Database connection failed after multiple retries")
	return false
}

// EnsureIndexes creates the indexes the store layer relies on. Email
// uniqueness backs the registration conflict check; the session index keeps
// the per-request membership lookup cheap.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	users := db.Collection(UsersCollection)

	_, err := users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "sessions.session_id", Value: 1}},
		},
	})
	if err != nil {
		logger.Error("Failed to create user indexes", zap.Error(err))
		return fmt.Errorf("failed creating user indexes: %w", err)
	}

	shops := db.Collection(ShopsCollection)
	_, err = shops.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "category_name", Value: 1}},
		},
	})
	if err != nil {
		logger.Error("Failed to create shop indexes", zap.Error(err))
		return fmt.Errorf("failed creating shop indexes: %w", err)
	}

	logger.Info("Database indexes ensured")
	return nil
}
