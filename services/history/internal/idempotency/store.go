// Package idempotency tracks processed progress event IDs so a re-published
// or redelivered event is applied once. Redis is preferred for its cheap
// SETNX with expiry; Postgres works where Redis is not deployed; the
// in-memory store is for development only.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Store answers "has this event been processed?" and records it atomically.
type Store interface {
	// Check records eventID and reports whether it was already seen inside
	// the retention window.
	Check(ctx context.Context, eventID string) (duplicate bool, err error)
	// Close releases backend resources.
	Close()
}

// NewStore creates the best available dedupe store: Redis > Postgres >
// in-memory. In production the in-memory fallback is refused; its state dies
// with the process and every redelivery would look fresh.
func NewStore(ctx context.Context, redisDSN, databaseURL string, ttl time.Duration, isProd bool, log *zap.Logger) (Store, error) {
	switch {
	case strings.TrimSpace(redisDSN) != "":
		return newRedisStore(ctx, redisDSN, ttl, log)
	case strings.TrimSpace(databaseURL) != "":
		return newPostgresStore(ctx, databaseURL, log)
	default:
		if isProd {
			return nil, errors.New("production requires REDIS_DSN or DATABASE_URL for event dedupe")
		}
		log.Warn("event dedupe falling back to in-memory store (development only)")
		return newMemoryStore(ttl), nil
	}
}
