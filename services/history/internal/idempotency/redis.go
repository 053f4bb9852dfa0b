package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "history:event:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisStore(ctx context.Context, dsn string, ttl time.Duration, log *zap.Logger) (*redisStore, error) {
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse redis dsn: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("event dedupe using redis")
	return &redisStore{client: client, ttl: ttl}, nil
}

func (s *redisStore) Check(ctx context.Context, eventID string) (bool, error) {
	// SETNX: true means we claimed the key, so the event is fresh.
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+eventID, 1, s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (s *redisStore) Close() {
	_ = s.client.Close()
}
