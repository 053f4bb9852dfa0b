// Package store persists per-user watch progress. It offers a MongoDB
// implementation for production, a Postgres implementation for deployments
// that already run the shared relational cluster, and an in-memory one for
// development and tests.
package store

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/stream-platform/internal/platform/db"
	"github.com/example/stream-platform/internal/platform/mongodb"
)

// ProgressStore is the persistence contract for watch progress.
type ProgressStore interface {
	// Upsert atomically creates or updates the record identified by the
	// params' (user_id, media_id, media_type) tuple and returns the stored
	// state. Concurrent writes to the same tuple resolve in arrival order.
	Upsert(ctx context.Context, p UpsertParams) (ProgressRecord, error)
	// Get returns the record for the tuple, or ErrNotFound.
	Get(ctx context.Context, userID, mediaID string, mediaType MediaType) (ProgressRecord, error)
	// List returns the user's records matching q, newest played first.
	List(ctx context.Context, userID string, q Query) ([]ProgressRecord, error)
	// Ping reports backend health for readiness checks.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Config selects and configures the store backend.
type Config struct {
	MongoURI    string
	MongoDB     string
	DatabaseURL string
	Production  bool
}

// New creates the best available progress store: MongoDB when a URI is
// configured, then Postgres, then the in-memory fallback. In production the
// fallback is refused so a misconfigured deployment fails at startup instead
// of silently losing history.
func New(ctx context.Context, cfg Config, log *zap.Logger) (ProgressStore, error) {
	switch {
	case cfg.MongoURI != "":
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		s := NewMongoStore(client, cfg.MongoDB)
		if err := s.EnsureIndexes(ctx); err != nil {
			log.Warn("mongo ensure indexes failed", zap.Error(err))
		}
		log.Info("progress store ready", zap.String("backend", "mongo"))
		return s, nil
	case cfg.DatabaseURL != "":
		pool, err := db.OpenDSN(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("progress store ready", zap.String("backend", "postgres"))
		return NewPostgresStore(pool), nil
	default:
		if cfg.Production {
			return nil, errors.New("production requires HISTORY_MONGO_URI or DATABASE_URL; refusing in-memory progress store")
		}
		log.Warn("no store configured, using in-memory progress store (development only)")
		return NewMemoryStore(), nil
	}
}
