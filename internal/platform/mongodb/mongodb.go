// Package mongodb provides a shared MongoDB client factory with OpenTelemetry
// command monitoring and fail-fast connection checks.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

// Connect opens a MongoDB client, instruments every command with
// OpenTelemetry and verifies the connection with a primary ping.
func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := append([]*options.ClientOptions{
		options.Client().ApplyURI(uri).SetMonitor(otelmongo.NewMonitor()),
	}, extra...)

	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
