package health

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	config "gitlab.com/plantai/plantai.server/src/production/PAI.Config"
)

// ConnectMongoWithTimeout creates a MongoDB connection and pings the primary
func ConnectMongoWithTimeout(cfg config.MongoConfig) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("MONGODB_URI is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)

	// Atlas clusters need TLS 1.2+
	if strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		clientOptions.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	clientOptions.SetServerSelectionTimeout(cfg.ConnectTimeout)
	clientOptions.SetConnectTimeout(cfg.ConnectTimeout)
	clientOptions.SetTimeout(cfg.OperationTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping MongoDB: %w", err)
	}

	return client, nil
}
