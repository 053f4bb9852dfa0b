package idempotency

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/example/stream-platform/internal/platform/db"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

// Table processed_events must exist:
//
//	event_id TEXT PRIMARY KEY, processed_at TIMESTAMPTZ NOT NULL
//
// Rows are pruned by a scheduled job, not by this store.
func newPostgresStore(ctx context.Context, databaseURL string, log *zap.Logger) (*postgresStore, error) {
	pool, err := db.OpenDSN(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("event dedupe using postgres")
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Check(ctx context.Context, eventID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO processed_events (event_id, processed_at)
		 VALUES ($1, now())
		 ON CONFLICT (event_id) DO NOTHING`, eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 0, nil
}

func (s *postgresStore) Close() {
	s.pool.Close()
}
